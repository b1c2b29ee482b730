package server

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/searchktools/reactor-httpd/config"
	"github.com/searchktools/reactor-httpd/core/httpd"
	"github.com/searchktools/reactor-httpd/core/poller"
	"golang.org/x/sys/unix"
)

func TestTriggerModes(t *testing.T) {
	cases := []struct {
		mode             int
		connET, listenET bool
	}{
		{0, false, false},
		{1, true, false},
		{2, false, true},
		{3, true, true},
		{99, true, true},
	}
	for _, c := range cases {
		gotConn, gotListen := triggerModes(c.mode)
		if gotConn != c.connET || gotListen != c.listenET {
			t.Errorf("triggerModes(%d) = (%v, %v), want (%v, %v)", c.mode, gotConn, gotListen, c.connET, c.listenET)
		}
	}
}

func TestServeStaticFileEndToEnd(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("HELLO WORLD"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Port:        19191,
		TriggerMode: 3,
		DocRoot:     dir,
		CGIDir:      dir,
		Workers:     2,
		MaxConns:    1024,
	}
	s := New(cfg, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	var conn net.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", "127.0.0.1:19191")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("could not connect: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := io.ReadAll(conn)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp) == 0 {
		t.Fatal("empty response")
	}
	got := string(resp)
	if !strings.HasPrefix(got, "HTTP/1.1 200 OK") || !strings.Contains(got, "HELLO WORLD") {
		t.Fatalf("response = %q", got)
	}

	s.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

// TestConcurrentCloseIsSingleWinner exercises the race a worker goroutine
// calling requestClose and the reactor goroutine calling closeConn on the
// same fd can hit in practice (a read fails in a worker at the same moment
// the idle timer expires). Exactly one of them must win the close and the
// conn must be returned to the pool exactly once, regardless of which side
// wins.
func TestConcurrentCloseIsSingleWinner(t *testing.T) {
	cfg := &config.Config{Workers: 1, MaxConns: 64}
	s := New(cfg, nil)

	p, err := poller.NewPoller()
	if err != nil {
		t.Fatal(err)
	}
	s.poll = p
	defer s.poll.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer unix.Close(fds[1])

	conn := s.live.Get().(*httpd.Conn)
	conn.Init(fds[0], "test", false)
	s.conns[conn.FD] = conn
	if err := s.poll.Add(conn.FD, poller.Readable|poller.OneShot); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.requestClose(conn) }()
	go func() { defer wg.Done(); s.closeConn(conn.FD) }()
	wg.Wait()

	s.drainClosed()

	if _, ok := s.conns[conn.FD]; ok {
		t.Fatal("conn still present in table after concurrent close")
	}
	_, puts, _ := s.live.Stats()
	if puts != 1 {
		t.Fatalf("puts = %d, want exactly 1", puts)
	}
}
