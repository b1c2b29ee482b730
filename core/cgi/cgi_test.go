package cgi

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestRunWithOwnContentType(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	dir := t.TempDir()
	writeScript(t, dir, "echo.py", "import sys\nsys.stdout.write('Content-Type: text/plain\\r\\n\\r\\nabc')\n")

	res, err := Run(context.Background(), dir, Request{
		Method:        "POST",
		ScriptPath:    "echo.py",
		ContentType:   "application/x-www-form-urlencoded",
		ContentLength: 5,
		Body:          []byte("x=abc"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(res.Header, []byte("HTTP/1.1 200 OK\r\n")) {
		t.Fatalf("header = %q", res.Header)
	}
	if !bytes.Contains(res.Body, []byte("abc")) {
		t.Fatalf("body = %q", res.Body)
	}
}

func TestRunMissingScript(t *testing.T) {
	dir := t.TempDir()
	_, err := Run(context.Background(), dir, Request{Method: "GET", ScriptPath: "nope.py"})
	if err != os.ErrNotExist {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
}
