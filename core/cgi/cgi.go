// Package cgi executes CGI scripts: it pipes the request body to a python3
// child process's stdin, builds the CGI environment, and captures stdout as
// the response body.
package cgi

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/searchktools/reactor-httpd/core/pools"
)

// Request is the subset of an HTTP request the CGI environment is built
// from.
type Request struct {
	Method        string
	ScriptPath    string // path with the /cgi-bin/ prefix already stripped
	Query         string
	RemoteAddr    string
	UserAgent     string
	ContentType   string
	ContentLength int
	Body          []byte
}

// Result is the outcome of running a CGI script.
type Result struct {
	Header []byte
	Body   []byte
}

const serverProtocol = "HTTP/1.1"
const gatewayInterface = "CGI/1.1"

// Run executes the script named by req.ScriptPath under cgiDir. If the
// script does not exist it returns (nil, os.ErrNotExist) so the caller can
// respond 404; any other failure to spawn returns a wrapped error for the
// caller to turn into a 500 page.
func Run(ctx context.Context, cgiDir string, req Request) (*Result, error) {
	scriptPath := filepath.Join(cgiDir, req.ScriptPath)
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, os.ErrNotExist
	}

	cmd := exec.CommandContext(ctx, "python3", scriptPath)
	cmd.Env = buildEnv(req, scriptPath)

	if req.ContentLength > 0 {
		cmd.Stdin = bytes.NewReader(req.Body)
	}

	// CGI output is typically a few KiB of rendered HTML; pool the capture
	// buffer instead of letting each invocation grow its own from scratch.
	bufPtr := pools.AcquireBuffer(pools.MediumBufferSize)
	defer pools.ReleaseBuffer(bufPtr)
	stdout := bytes.NewBuffer(*bufPtr)
	cmd.Stdout = stdout

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("cgi: %s: %w", scriptPath, err)
	}

	body := append([]byte(nil), stdout.Bytes()...)
	return composeResponse(body), nil
}

func buildEnv(req Request, scriptPath string) []string {
	env := os.Environ()
	env = append(env,
		"GATEWAY_INTERFACE="+gatewayInterface,
		"SERVER_PROTOCOL="+serverProtocol,
		"REQUEST_METHOD="+req.Method,
		"SCRIPT_NAME="+scriptPath,
		"PATH_INFO="+req.ScriptPath,
		"QUERY_STRING="+req.Query,
		"SERVER_SOFTWARE=reactor-httpd",
		"REMOTE_ADDR="+req.RemoteAddr,
		"HTTP_USER_AGENT="+req.UserAgent,
	)
	if req.Method == "POST" {
		env = append(env,
			"CONTENT_TYPE=application/x-www-form-urlencoded",
			"CONTENT_LENGTH="+strconv.Itoa(req.ContentLength),
		)
	}
	return env
}

// composeResponse prefixes the captured stdout with a status line, and with
// a full header block when the script didn't emit its own Content-Type.
func composeResponse(output []byte) *Result {
	if bytes.Contains(output, []byte("Content-Type:")) {
		header := []byte(serverProtocol + " 200 OK\r\n")
		return &Result{Header: header, Body: output}
	}

	header := fmt.Sprintf(
		"%s 200 OK\r\nContent-Type: text/html\r\nConnection: close\r\nContent-Length: %d\r\n\r\n",
		serverProtocol, len(output),
	)
	return &Result{Header: []byte(header), Body: output}
}

// SpawnErrorPage renders the 500 diagnostic page for a failed spawn/exec.
func SpawnErrorPage(err error) []byte {
	body := fmt.Sprintf(
		"<html><title>Error</title><body bgcolor=\"ffffff\">500 : Internal Server Error\r\n<p>%s</p><hr><em>reactor-httpd</em></body></html>",
		strings.ReplaceAll(err.Error(), "\n", " "),
	)
	header := fmt.Sprintf(
		"%s 500 Internal Server Error\r\nContent-Type: text/html\r\nConnection: close\r\nContent-Length: %d\r\n\r\n",
		serverProtocol, len(body),
	)
	return append([]byte(header), body...)
}
