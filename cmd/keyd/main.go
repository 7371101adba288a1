package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/keyd-go/keyd/internal/config"
	"github.com/keyd-go/keyd/internal/discover"
	"github.com/keyd-go/keyd/internal/engine"
	"github.com/keyd-go/keyd/internal/keycode"
	"github.com/keyd-go/keyd/internal/keymap"
	"github.com/keyd-go/keyd/internal/lockfile"
	"github.com/keyd-go/keyd/internal/monitor"
	"github.com/keyd-go/keyd/internal/session"
	"github.com/keyd-go/keyd/internal/vinput"
)

const version = "0.1.0"

// reexecEnv flags a process as the daemonized child so -d doesn't
// double-fork itself recursively.
const reexecEnv = "KEYD_REEXEC"

const hotplugInterval = 2 * time.Second

func main() {
	daemonize := flag.Bool("d", false, "daemonize (detach and redirect output to the log file)")
	monitorMode := flag.Bool("m", false, "monitor mode: print every key press/release, no grabs")
	listKeys := flag.Bool("l", false, "list every known key name and exit")
	showVersion := flag.Bool("v", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("keyd-go " + version)
		return
	}
	if *listKeys {
		runListKeys()
		return
	}

	if *monitorMode {
		if err := runMonitor(); err != nil {
			log.Fatalf("monitor: %v", err)
		}
		return
	}

	dbg := newLogger()

	if *daemonize && os.Getenv(reexecEnv) == "" {
		if err := reexecDetached(); err != nil {
			log.Fatalf("daemonize: %v", err)
		}
		return
	}

	if err := runDaemon(dbg); err != nil {
		log.Fatalf("%v", err)
	}
}

// newLogger enables diagnostic logging per §6's KEYD_DEBUG contract.
func newLogger() *log.Logger {
	if os.Getenv("KEYD_DEBUG") == "1" {
		return log.New(os.Stderr, "[keyd] ", log.Ltime|log.Lmicroseconds)
	}
	return log.New(io.Discard, "", 0)
}

func runListKeys() {
	for _, e := range keycode.All() {
		fmt.Println(e.Name)
		if e.AltName != "" {
			fmt.Println(e.AltName)
		}
		if e.ShiftedName != "" {
			fmt.Println(e.ShiftedName)
		}
	}
}

// reexecDetached implements -d's double-fork contract: re-launch this
// binary with stdout/stderr redirected to the log file and a new
// session, then let the original process return immediately. A real
// fork() is unsafe once the Go runtime has started goroutines, so a
// detached re-exec stands in for it, matching how Go daemons commonly
// approximate double-fork.
func reexecDetached() error {
	logPath := logFilePath()
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", logPath, err)
	}
	defer logFile.Close()

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	args := make([]string, 0, len(os.Args))
	for _, a := range os.Args[1:] {
		if a != "-d" {
			args = append(args, a)
		}
	}

	cmd := exec.Command(self, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = append(os.Environ(), reexecEnv+"=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start detached process: %w", err)
	}
	fmt.Fprintf(os.Stdout, "keyd-go daemonized (pid %d), logging to %s\n", cmd.Process.Pid, logPath)
	return nil
}

func logFilePath() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir + "/keyd-go.log"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/keyd-go.log"
	}
	return home + "/.local/state/keyd-go.log"
}

// runMonitor implements -m: enumerate keyboards, open each without
// grabbing, and render live key events (§6).
func runMonitor() error {
	paths, err := discover.Snapshot(discover.DefaultLister, discover.DefaultOpener)
	if err != nil {
		return fmt.Errorf("enumerate keyboards: %w", err)
	}
	if len(paths) == 0 {
		fmt.Println("no keyboards found")
		return nil
	}

	w, err := monitor.Watch(paths, monitorOpener)
	if err != nil {
		return fmt.Errorf("watch keyboards: %w", err)
	}
	defer w.Stop()

	p := tea.NewProgram(monitor.New(w.Events()))
	_, err = p.Run()
	return err
}

func monitorOpener(path string) (monitor.Reader, error) {
	return session.Open(path)
}

// runDaemon implements the no-args foreground-daemon CLI surface: it
// acquires the lock, creates the virtual devices, loads the keymap
// config, brings up a session per managed keyboard, and watches for
// hotplug until a termination signal arrives (§4.6, §4.7, §5).
func runDaemon(dbg *log.Logger) error {
	lock, err := lockfile.Acquire(lockPath())
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer lock.Release()

	out, err := vinput.New()
	if err != nil {
		return fmt.Errorf("create virtual devices: %w", err)
	}
	defer out.Close()

	discover.ExcludeName(vinput.VirtualKeyboardName)
	discover.ExcludeName(vinput.VirtualPointerName)

	cfg, err := config.Load(config.DefaultDir())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	mgr := newManager(cfg, out, dbg)

	paths, err := discover.Snapshot(discover.DefaultLister, discover.DefaultOpener)
	if err != nil {
		return fmt.Errorf("enumerate keyboards: %w", err)
	}
	for _, p := range paths {
		mgr.add(p)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	hotplug := discover.Watch(watchCtx, discover.DefaultLister, discover.DefaultOpener, hotplugInterval)

	for {
		select {
		case ev, ok := <-hotplug:
			if !ok {
				continue
			}
			if ev.Removed {
				mgr.remove(ev.Path)
			} else {
				mgr.add(ev.Path)
			}
		case <-sig:
			cancelWatch()
			mgr.stopAll()
			return nil
		}
	}
}

func lockPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/keyd-go.lock"
	}
	return "/tmp/keyd-go.lock"
}

// manager owns one session per managed device path, keyed by path
// rather than threaded through intrusive next-pointers (§9).
type manager struct {
	cfg *config.Config
	out *vinput.Output
	log *log.Logger

	mu       sync.Mutex
	sessions map[string]*session.Session
}

func newManager(cfg *config.Config, out *vinput.Output, logger *log.Logger) *manager {
	return &manager{cfg: cfg, out: out, log: logger, sessions: make(map[string]*session.Session)}
}

func (m *manager) add(path string) {
	m.mu.Lock()
	if _, exists := m.sessions[path]; exists {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	name, err := deviceName(path)
	if err != nil {
		m.log.Printf("skip %s: %v", path, err)
		return
	}

	kc, warn, ok := m.cfg.ForDevice(name)
	if !ok {
		m.log.Printf("skip %s (%q): no matching keyboard configuration", path, name)
		return
	}
	if warn {
		m.log.Printf("%s (%q): no exact match, using default configuration", path, name)
	}

	layers, layout, modlayout, err := kc.Build()
	if err != nil {
		m.log.Printf("skip %s (%q): build keymap: %v", path, name, err)
		return
	}

	kbd := &keymap.Keyboard{DevicePath: path, Name: name, Layers: layers, Layout: layout, Modlayout: modlayout}
	proc := engine.New(kbd, m.out)

	dev, err := session.Open(path)
	if err != nil {
		m.log.Printf("skip %s: open: %v", path, err)
		return
	}

	if err := session.NeutralityWait([]session.Device{dev}); err != nil {
		m.log.Printf("%s: neutrality wait: %v", path, err)
	}

	s := session.New(dev, proc, m.log)

	m.mu.Lock()
	m.sessions[path] = s
	m.mu.Unlock()

	go func() {
		if err := s.Run(); err != nil {
			m.log.Printf("%s: session ended: %v", path, err)
		}
		m.mu.Lock()
		delete(m.sessions, path)
		m.mu.Unlock()
	}()
}

func (m *manager) remove(path string) {
	m.mu.Lock()
	s, ok := m.sessions[path]
	delete(m.sessions, path)
	m.mu.Unlock()
	if ok {
		s.Stop()
	}
}

func (m *manager) stopAll() {
	m.mu.Lock()
	sessions := make([]*session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()
	for _, s := range sessions {
		s.Stop()
	}
}

func deviceName(path string) (string, error) {
	dev, err := discover.DefaultOpener(path)
	if err != nil {
		return "", err
	}
	defer dev.Close()
	return dev.Name(), nil
}
