package httpd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestInitServesStaticFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "HELLO")

	resp := NewResponse()
	defer resp.Unmap()

	if err := resp.Init(dir, "/index.html", false, unset, "Date: x\r\n"); err != nil {
		t.Fatal(err)
	}
	if resp.Code != 200 {
		t.Fatalf("Code = %d, want 200", resp.Code)
	}
	if string(resp.FileBytes()) != "HELLO" {
		t.Fatalf("FileBytes() = %q, want %q", resp.FileBytes(), "HELLO")
	}
	header := string(resp.HeaderBytes())
	if !strings.Contains(header, "HTTP/1.1 200 OK") || !strings.Contains(header, "Content-length: 5") {
		t.Fatalf("header = %q", header)
	}
}

func TestInitMissingFileIs404(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "404.html", "NF")

	resp := NewResponse()
	defer resp.Unmap()

	if err := resp.Init(dir, "/missing.html", false, unset, "Date: x\r\n"); err != nil {
		t.Fatal(err)
	}
	if resp.Code != 404 {
		t.Fatalf("Code = %d, want 404", resp.Code)
	}
	if string(resp.FileBytes()) != "NF" {
		t.Fatalf("FileBytes() = %q, want %q", resp.FileBytes(), "NF")
	}
}

func TestInitForcedBadRequest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "400.html", "BAD")

	resp := NewResponse()
	defer resp.Unmap()

	if err := resp.Init(dir, "/whatever", false, 400, "Date: x\r\n"); err != nil {
		t.Fatal(err)
	}
	if resp.Code != 400 {
		t.Fatalf("Code = %d, want 400", resp.Code)
	}
}

func TestInitReleasesPriorMapping(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.html", "AAAA")
	writeFile(t, dir, "b.html", "B")

	resp := NewResponse()
	defer resp.Unmap()

	if err := resp.Init(dir, "/a.html", false, unset, "Date: x\r\n"); err != nil {
		t.Fatal(err)
	}
	first := resp.FileBytes()
	if string(first) != "AAAA" {
		t.Fatalf("first FileBytes() = %q", first)
	}

	if err := resp.Init(dir, "/b.html", false, unset, "Date: x\r\n"); err != nil {
		t.Fatal(err)
	}
	if string(resp.FileBytes()) != "B" {
		t.Fatalf("second FileBytes() = %q, want %q", resp.FileBytes(), "B")
	}
}
