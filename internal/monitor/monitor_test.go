package monitor

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/keyd-go/keyd/internal/wire"
)

type fakeReader struct {
	name   string
	events []wire.Event
	idx    int
	closed bool
}

func (r *fakeReader) Name() string { return r.name }

func (r *fakeReader) ReadEvent() (wire.Event, error) {
	if r.closed || r.idx >= len(r.events) {
		return wire.Event{}, errors.New("closed")
	}
	ev := r.events[r.idx]
	r.idx++
	return ev, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func TestWatchForwardsKeyEventsAndClosesWhenDrained(t *testing.T) {
	dev := &fakeReader{name: "testkbd", events: []wire.Event{
		{Type: wire.EvKey, Code: 30, Value: wire.KeyDown},
		{Type: wire.EvSyn, Code: 0, Value: 0},
		{Type: wire.EvKey, Code: 30, Value: wire.KeyUp},
	}}
	w, err := Watch([]string{"/dev/input/event0"}, func(path string) (Reader, error) {
		return dev, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []KeyEvent
	for ev := range w.Events() {
		got = append(got, ev)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 key events (EV_SYN filtered out), got %d: %+v", len(got), got)
	}
	if got[0].Device != "testkbd" || got[0].Value != wire.KeyDown {
		t.Fatalf("unexpected first event: %+v", got[0])
	}
	if got[1].Value != wire.KeyUp {
		t.Fatalf("unexpected second event: %+v", got[1])
	}
}

func TestWatchStopUnblocksReadLoop(t *testing.T) {
	dev := &fakeReader{name: "testkbd"}
	w, err := Watch([]string{"/dev/input/event1"}, func(path string) (Reader, error) {
		return dev, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w.Stop()

	select {
	case _, ok := <-w.Events():
		if ok {
			t.Fatal("expected no events after immediate Stop")
		}
	case <-time.After(time.Second):
		t.Fatal("Events channel never closed after Stop")
	}
	if !dev.closed {
		t.Fatal("expected device to be closed")
	}
}

func TestModelUpdateAppendsRow(t *testing.T) {
	ch := make(chan KeyEvent, 1)
	ch <- KeyEvent{Device: "kbd0", Code: 30, Value: wire.KeyDown}
	close(ch)

	m := New(ch)
	updated, cmd := m.Update(keyEventMsg{Device: "kbd0", Code: 30, Value: wire.KeyDown})
	mm := updated.(Model)

	if len(mm.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(mm.rows))
	}
	if !strings.Contains(stripANSI(mm.rows[0]), "kbd0") || !strings.Contains(stripANSI(mm.rows[0]), "a") {
		t.Fatalf("unexpected row content: %q", mm.rows[0])
	}
	if cmd == nil {
		t.Fatal("expected a follow-up command to keep waiting for events")
	}
}

func TestModelUpdateTrimsScrollback(t *testing.T) {
	m := Model{}
	for i := 0; i < maxRows+10; i++ {
		updated, _ := m.Update(keyEventMsg{Device: "kbd0", Code: 30, Value: wire.KeyDown})
		m = updated.(Model)
	}
	if len(m.rows) != maxRows {
		t.Fatalf("expected rows capped at %d, got %d", maxRows, len(m.rows))
	}
}

func TestModelQuitsOnCtrlC(t *testing.T) {
	m := Model{}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected tea.Quit command on ctrl+c")
	}
}

// stripANSI removes lipgloss SGR escape sequences so assertions can
// check row content without depending on color-profile detection.
func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape && r == 'm':
			inEscape = false
		case !inEscape:
			b.WriteRune(r)
		}
	}
	return b.String()
}
