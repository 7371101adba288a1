// Package monitor implements -m monitor mode (§6 CLI surface): it
// enumerates keyboards and renders every key press/release live,
// without grabbing any device or creating a virtual one. The rendering
// follows the teacher's internal/tui Elm-architecture split (model.go's
// Init/Update/View, view.go's lipgloss styling) adapted from a
// dictation status screen to a streaming key-event table.
package monitor

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/keyd-go/keyd/internal/keycode"
	"github.com/keyd-go/keyd/internal/keymap"
	"github.com/keyd-go/keyd/internal/wire"
)

// Reader is the subset of an opened device monitor mode needs: raw
// event reads with no grab, matching session.Device minus Path and the
// Grab/Ungrab pair (§6: monitor mode never takes an exclusive grab).
type Reader interface {
	Name() string
	ReadEvent() (wire.Event, error)
	Close() error
}

// Opener opens a device node for read-only observation.
type Opener func(path string) (Reader, error)

// Watcher fans the raw event streams of every opened device into one
// KeyEvent channel, the producer side of the Bubble Tea Model below.
type Watcher struct {
	ch   chan KeyEvent
	wg   sync.WaitGroup
	devs []Reader
	mu   sync.Mutex
}

// Watch opens every path with open and starts a read loop per device,
// each forwarding EV_KEY events into the returned channel. The channel
// is closed once every device loop has exited (device removal or a
// call to Stop).
func Watch(paths []string, open Opener) (*Watcher, error) {
	w := &Watcher{ch: make(chan KeyEvent)}
	for _, path := range paths {
		dev, err := open(path)
		if err != nil {
			continue
		}
		w.devs = append(w.devs, dev)
		w.wg.Add(1)
		go w.readLoop(dev)
	}
	go func() {
		w.wg.Wait()
		close(w.ch)
	}()
	return w, nil
}

// Events returns the channel monitor Model.Update reads from.
func (w *Watcher) Events() <-chan KeyEvent { return w.ch }

// Stop closes every observed device, unblocking its read loop.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, d := range w.devs {
		d.Close()
	}
}

func (w *Watcher) readLoop(dev Reader) {
	defer w.wg.Done()
	name := dev.Name()
	for {
		ev, err := dev.ReadEvent()
		if err != nil {
			return
		}
		if ev.Type != wire.EvKey {
			continue
		}
		w.ch <- KeyEvent{Device: name, Code: ev.Code, Value: ev.Value, At: time.Now()}
	}
}

// maxRows bounds the scrollback the model keeps; older rows are
// dropped so a busy keyboard doesn't grow the model unbounded.
const maxRows = 200

// KeyEvent is one observed physical key event, tagged with the device
// that produced it.
type KeyEvent struct {
	Device string
	Code   keymap.Keycode
	Value  int32
	At     time.Time
}

// keyEventMsg is how a KeyEvent reaches the Bubble Tea update loop.
type keyEventMsg KeyEvent

var (
	hotPink   = lipgloss.Color("#FF6AC1")
	cyan      = lipgloss.Color("#00E5FF")
	teal      = lipgloss.Color("#64FFDA")
	dimmed    = lipgloss.Color("#666666")
	softWhite = lipgloss.Color("#E0E0E0")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(hotPink)
	headerStyle = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	deviceStyle = lipgloss.NewStyle().Foreground(cyan)
	downStyle   = lipgloss.NewStyle().Foreground(teal).Bold(true)
	upStyle     = lipgloss.NewStyle().Foreground(dimmed)
	keyStyle    = lipgloss.NewStyle().Foreground(softWhite)
	quitStyle   = lipgloss.NewStyle().Foreground(dimmed)
)

// Model is the monitor-mode Bubble Tea model: a fixed-capacity ring of
// rendered rows, fed by a channel of observed key events.
type Model struct {
	events <-chan KeyEvent
	rows   []string
}

// New builds a Model that renders events arriving on ch.
func New(ch <-chan KeyEvent) Model {
	return Model{events: ch}
}

func (m Model) Init() tea.Cmd {
	return m.waitForEvent()
}

func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return nil
		}
		return keyEventMsg(ev)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case keyEventMsg:
		m.rows = append(m.rows, renderRow(KeyEvent(msg)))
		if len(m.rows) > maxRows {
			m.rows = m.rows[len(m.rows)-maxRows:]
		}
		return m, m.waitForEvent()
	}
	return m, nil
}

func renderRow(ev KeyEvent) string {
	name := keycode.NameOf(ev.Code)
	if name == "" {
		name = fmt.Sprintf("0x%x", ev.Code)
	}

	var valueLabel string
	switch ev.Value {
	case wire.KeyDown:
		valueLabel = downStyle.Render("down")
	case wire.KeyUp:
		valueLabel = upStyle.Render("up")
	default:
		valueLabel = upStyle.Render("repeat")
	}

	return fmt.Sprintf("%s: %s %s", deviceStyle.Render(ev.Device), keyStyle.Render(name), valueLabel)
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("keyd-go monitor"))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("device: keyname up|down"))
	b.WriteString("\n\n")
	for _, r := range m.rows {
		b.WriteString(r)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(quitStyle.Render("q or ctrl+c to quit"))
	return b.String()
}
