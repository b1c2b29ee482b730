package httpd

import (
	"fmt"
	"os"

	"github.com/searchktools/reactor-httpd/core/fdutil"
	"golang.org/x/sys/unix"
)

// statusText is the fixed status-line text table; any code outside it is
// coerced to 400.
var statusText = map[int]string{
	200: "OK",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
}

// errorPage maps an error status to the document-root-relative page served
// in its place.
var errorPage = map[int]string{
	400: "/400.html",
	403: "/403.html",
	404: "/404.html",
}

// unset is the "let Init decide from stat" sentinel for Init's code
// parameter, matching the connection state machine passing -1 on a
// successfully parsed request and an explicit 400 on a parse failure.
const unset = -1

// Response builds an HTTP/1.1 response: status line, headers, and either an
// mmap'd static file or an inline HTML error body.
type Response struct {
	Code      int
	KeepAlive bool

	header  []byte
	mapping []byte
	file    fdutil.FD
}

// NewResponse returns an empty Response.
func NewResponse() *Response {
	return &Response{file: fdutil.New(fdutil.Invalid)}
}

// Init builds the response for (docRoot, path). code is unset (-1) to let
// Init stat the file and decide 200/403/404 itself, or a specific error
// code (e.g. 400 from a parser failure) to force an error page regardless
// of what's on disk. Any mapping held by a previous response is released
// first. dateHeader is the pre-formatted "Date: ...\r\n" line from the date
// cache.
func (r *Response) Init(docRoot, path string, keepAlive bool, code int, dateHeader string) error {
	r.Unmap()

	fullPath := docRoot + path
	if code == unset {
		code = statForCode(fullPath)
	}

	if _, ok := errorPage[code]; ok {
		path = errorPage[code]
		fullPath = docRoot + path
	}

	r.Code = code
	r.KeepAlive = keepAlive

	fd, err := unix.Open(fullPath, unix.O_RDONLY, 0)
	if err != nil {
		r.buildErrorResponse(code, dateHeader)
		return nil
	}
	r.file.Reset(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		r.file.Close()
		r.buildErrorResponse(500, dateHeader)
		return nil
	}

	size := int(st.Size)
	if size > 0 {
		mapping, err := unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_PRIVATE)
		if err != nil {
			r.buildErrorResponse(500, dateHeader)
			return nil
		}
		r.mapping = mapping
	}

	r.header = buildHeader(code, keepAlive, contentTypeFor(path), dateHeader, size)
	return nil
}

func statForCode(fullPath string) int {
	st, err := os.Stat(fullPath)
	if err != nil {
		return 404
	}
	if st.IsDir() {
		return 404
	}
	if st.Mode().Perm()&0004 == 0 {
		return 403
	}
	return 200
}

func statusTextFor(code int) (int, string) {
	if text, ok := statusText[code]; ok {
		return code, text
	}
	return 400, statusText[400]
}

func buildHeader(code int, keepAlive bool, contentType, dateHeader string, contentLength int) []byte {
	code, text := statusTextFor(code)
	conn := "close"
	if keepAlive {
		conn = "keep-alive"
	}
	return []byte(fmt.Sprintf(
		"HTTP/1.1 %d %s\r\nConnection: %s\r\nContent-Type: %s\r\n%sContent-length: %d\r\n\r\n",
		code, text, conn, contentType, dateHeader, contentLength,
	))
}

func errorHTML(code int) []byte {
	_, text := statusTextFor(code)
	body := fmt.Sprintf(
		"<html><title>Error</title><body bgcolor=\"ffffff\">%d : %s\r\n<p>reactor-httpd can't find the file you requested.</p><hr><em>reactor-httpd</em></body></html>",
		code, text,
	)
	return []byte(body)
}

func (r *Response) buildErrorResponse(code int, dateHeader string) {
	body := errorHTML(code)
	r.Code = code
	r.header = append(buildHeader(code, r.KeepAlive, "text/html", dateHeader, len(body)), body...)
	r.mapping = nil
}

// HeaderBytes returns the status-line+headers (and, for inline error pages,
// the body appended directly after them).
func (r *Response) HeaderBytes() []byte { return r.header }

// FileBytes returns the mmap'd static file body, or nil when this response
// has no separate file payload (inline error page, or CGI response which
// does not use Response at all).
func (r *Response) FileBytes() []byte { return r.mapping }

// FileFD returns the backing file descriptor for a static-file response, or
// fdutil.Invalid when this response has no open file to send (inline error
// page, or a zero-length file with nothing left to stream).
func (r *Response) FileFD() int {
	if r.mapping == nil {
		return fdutil.Invalid
	}
	return r.file.Get()
}

// FileSize returns the length of the mmap'd file body.
func (r *Response) FileSize() int { return len(r.mapping) }

// Unmap releases any held mmap region and closes the backing file
// descriptor. Safe to call repeatedly.
func (r *Response) Unmap() {
	if r.mapping != nil {
		unix.Munmap(r.mapping)
		r.mapping = nil
	}
	r.file.Close()
}
