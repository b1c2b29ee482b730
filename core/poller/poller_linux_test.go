//go:build linux

package poller

import (
	"os"
	"testing"
	"time"
)

func TestEpollReportsReadable(t *testing.T) {
	p, err := NewPoller()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	rfd := int(r.Fd())
	if err := p.Add(rfd, Readable); err != nil {
		t.Fatal(err)
	}

	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}

	var events []Event
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		events, err = p.Wait(100)
		if err != nil {
			t.Fatal(err)
		}
		if len(events) > 0 {
			break
		}
	}

	if len(events) != 1 || events[0].FD != rfd || events[0].Events&Readable == 0 {
		t.Fatalf("events = %+v, want one Readable event for fd %d", events, rfd)
	}
}

func TestEpollRemove(t *testing.T) {
	p, err := NewPoller()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	rfd := int(r.Fd())
	if err := p.Add(rfd, Readable); err != nil {
		t.Fatal(err)
	}
	if err := p.Remove(rfd); err != nil {
		t.Fatal(err)
	}

	w.Write([]byte("x"))
	events, err := p.Wait(100)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %+v, want none after Remove", events)
	}
}
