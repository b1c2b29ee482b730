package datecache

import (
	"strings"
	"testing"
	"time"
)

func TestHeaderFormat(t *testing.T) {
	c := New()
	h := c.Header()
	if !strings.HasPrefix(h, "Date: ") {
		t.Fatalf("Header() = %q, want prefix %q", h, "Date: ")
	}
	if !strings.HasSuffix(h, "GMT\r\n") {
		t.Fatalf("Header() = %q, want suffix GMT\\r\\n", h)
	}
}

func TestStartStopRefreshes(t *testing.T) {
	c := New()
	c.Start()
	defer c.Stop()

	first := c.Header()
	time.Sleep(1200 * time.Millisecond)
	second := c.Header()

	if first == "" || second == "" {
		t.Fatal("empty header")
	}
	if first == second {
		t.Fatalf("Header() = %q both before and after 1.2s, want a refreshed value", first)
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	c := New()
	c.Stop()
}
