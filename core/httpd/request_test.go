package httpd

import (
	"testing"

	"github.com/searchktools/reactor-httpd/core/buffer"
)

func TestParseSimpleGet(t *testing.T) {
	buf := buffer.New(256)
	buf.AppendString("GET / HTTP/1.1\r\nHost: x\r\n\r\n")

	r := NewRequest()
	ok, err := r.Parse(buf)
	if err != nil || !ok {
		t.Fatalf("Parse() = %v, %v", ok, err)
	}
	if r.Method != "GET" || r.Path != "/index.html" || r.Version != "HTTP/1.1" {
		t.Fatalf("got %q %q %q", r.Method, r.Path, r.Version)
	}
	if r.Headers["Host"] != "x" {
		t.Fatalf("Host header = %q", r.Headers["Host"])
	}
	if r.State != StateFinish {
		t.Fatalf("State = %v, want StateFinish", r.State)
	}
}

func TestParseBadRequestLine(t *testing.T) {
	buf := buffer.New(64)
	buf.AppendString("FOO\r\n\r\n")

	r := NewRequest()
	ok, err := r.Parse(buf)
	if ok || err != ErrBadRequest {
		t.Fatalf("Parse() = %v, %v, want false, ErrBadRequest", ok, err)
	}
}

func TestParseEmptyBufferReturnsFalse(t *testing.T) {
	buf := buffer.New(16)
	r := NewRequest()
	ok, err := r.Parse(buf)
	if ok || err != nil {
		t.Fatalf("Parse() = %v, %v, want false, nil", ok, err)
	}
}

func TestParsePostForm(t *testing.T) {
	buf := buffer.New(256)
	buf.AppendString("POST /cgi-bin/echo.py HTTP/1.1\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		"Content-Length: 5\r\n\r\nx=abc")

	r := NewRequest()
	ok, err := r.Parse(buf)
	if err != nil || !ok {
		t.Fatalf("Parse() = %v, %v", ok, err)
	}
	if r.Form["x"] != "abc" {
		t.Fatalf("Form[x] = %q, want abc", r.Form["x"])
	}
	if !r.IsCGI() {
		t.Fatal("expected IsCGI() true")
	}
}

func TestKeepAlive(t *testing.T) {
	buf := buffer.New(256)
	buf.AppendString("GET /a.png HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	r := NewRequest()
	if _, err := r.Parse(buf); err != nil {
		t.Fatal(err)
	}
	if !r.KeepAlive() {
		t.Fatal("expected KeepAlive() true")
	}
}

func TestIncompleteRequestWaitsForMoreBytes(t *testing.T) {
	buf := buffer.New(64)
	buf.AppendString("GET / HTTP/1.1\r\nHost: x")
	r := NewRequest()
	ok, err := r.Parse(buf)
	if err != nil || !ok {
		t.Fatalf("Parse() = %v, %v", ok, err)
	}
	if r.State == StateFinish {
		t.Fatal("should not have reached FINISH with an incomplete header line")
	}

	buf.AppendString("\r\n\r\n")
	ok, err = r.Parse(buf)
	if err != nil || !ok || r.State != StateFinish {
		t.Fatalf("Parse() after more bytes = %v, %v, state %v", ok, err, r.State)
	}
}

func TestAPIPathPreserved(t *testing.T) {
	buf := buffer.New(64)
	buf.AppendString("GET /api/widgets HTTP/1.1\r\n\r\n")
	r := NewRequest()
	if _, err := r.Parse(buf); err != nil {
		t.Fatal(err)
	}
	if r.Path != "/api/widgets" {
		t.Fatalf("Path = %q, want /api/widgets", r.Path)
	}
}
