package discover

import (
	"context"
	"testing"
	"time"
)

type fakeDevice struct {
	name       string
	hasRel     bool
	hasLetters bool
}

func (d *fakeDevice) Name() string       { return d.name }
func (d *fakeDevice) HasRelAxes() bool   { return d.hasRel }
func (d *fakeDevice) HasLetterKeys() bool { return d.hasLetters }
func (d *fakeDevice) Close() error       { return nil }

func fakeRegistry() (Lister, Opener, *[]string) {
	paths := []string{}
	devices := map[string]*fakeDevice{}
	list := func() ([]string, error) { return append([]string(nil), paths...), nil }
	open := func(path string) (Device, error) { return devices[path], nil }
	return list, open, &paths
}

func TestSnapshotFiltersNonKeyboards(t *testing.T) {
	list, open, paths := fakeRegistry()
	*paths = []string{"/dev/input/event1", "/dev/input/event2", "/dev/input/event10"}

	devs := map[string]*fakeDevice{
		"/dev/input/event1":  {name: "mouse", hasRel: true, hasLetters: false},
		"/dev/input/event2":  {name: "keyboard", hasRel: false, hasLetters: true},
		"/dev/input/event10": {name: "power button", hasRel: false, hasLetters: false},
	}
	realOpen := func(path string) (Device, error) { return devs[path], nil }
	_ = open

	got, err := Snapshot(list, realOpen)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "/dev/input/event2" {
		t.Fatalf("got %v, want only event2", got)
	}
}

func TestSnapshotExcludesVirtualDeviceNames(t *testing.T) {
	ExcludeName("keyd-go virtual keyboard test")
	list, _, paths := fakeRegistry()
	*paths = []string{"/dev/input/event3"}
	devs := map[string]*fakeDevice{
		"/dev/input/event3": {name: "keyd-go virtual keyboard test", hasRel: false, hasLetters: true},
	}
	open := func(path string) (Device, error) { return devs[path], nil }

	got, err := Snapshot(list, open)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected virtual device excluded, got %v", got)
	}
}

func TestSnapshotSortsNumerically(t *testing.T) {
	list, _, paths := fakeRegistry()
	*paths = []string{"/dev/input/event10", "/dev/input/event2"}
	devs := map[string]*fakeDevice{
		"/dev/input/event10": {name: "kbd-a", hasLetters: true},
		"/dev/input/event2":  {name: "kbd-b", hasLetters: true},
	}
	open := func(path string) (Device, error) { return devs[path], nil }

	got, err := Snapshot(list, open)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/dev/input/event2", "/dev/input/event10"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestWatchReportsAddAndRemove(t *testing.T) {
	list, _, paths := fakeRegistry()
	devs := map[string]*fakeDevice{
		"/dev/input/event5": {name: "kbd", hasLetters: true},
	}
	open := func(path string) (Device, error) { return devs[path], nil }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := Watch(ctx, list, open, 5*time.Millisecond)

	*paths = []string{"/dev/input/event5"}
	select {
	case ev := <-events:
		if ev.Removed || ev.Path != "/dev/input/event5" {
			t.Fatalf("expected add event for event5, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for add event")
	}

	*paths = nil
	select {
	case ev := <-events:
		if !ev.Removed || ev.Path != "/dev/input/event5" {
			t.Fatalf("expected remove event for event5, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for remove event")
	}
}
