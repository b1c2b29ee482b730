package httpd

import (
	"bytes"
	"strings"

	"github.com/searchktools/reactor-httpd/core/buffer"
)

// ParseState is a request parser's position in the incremental state
// machine driven by the bytes available so far.
type ParseState int

const (
	StateRequestLine ParseState = iota
	StateHeaders
	StateBody
	StateFinish
)

// Request holds one HTTP/1.1 request's parsed fields. Header keys are kept
// exactly as received (no case normalization) and form fields are not
// URL-decoded, both deliberate simplifications this server preserves.
type Request struct {
	State   ParseState
	Method  string
	Path    string
	Version string
	Headers map[string]string
	Form    map[string]string
	Body    []byte
}

// NewRequest returns a Request ready to parse.
func NewRequest() *Request {
	r := &Request{}
	r.Reset()
	return r
}

// Reset reinitializes the request for reuse on a kept-alive connection.
func (r *Request) Reset() {
	r.State = StateRequestLine
	r.Method = ""
	r.Path = ""
	r.Version = ""
	r.Headers = make(map[string]string)
	r.Form = make(map[string]string)
	r.Body = nil
}

// KeepAlive reports whether this request asked to keep the connection open:
// true iff the Connection header is exactly "keep-alive" and the version is
// HTTP/1.1.
func (r *Request) KeepAlive() bool {
	return r.Headers["Connection"] == "keep-alive" && r.Version == "HTTP/1.1"
}

// IsCGI reports whether the path names a CGI script.
func (r *Request) IsCGI() bool {
	return strings.HasPrefix(r.Path, "/cgi-bin/")
}

const crlf = "\r\n"

// Parse consumes as many complete lines as are available in buf, advancing
// through REQUEST_LINE, HEADERS and BODY. It returns false only when buf is
// empty on entry or the request line is malformed (the caller should
// respond 400 in that case); otherwise it returns true once FINISH is
// reached or the buffer runs out of complete lines.
func (r *Request) Parse(buf *buffer.Buffer) (bool, error) {
	if buf.ReadableBytes() == 0 {
		return false, nil
	}

	for r.State != StateFinish {
		data := buf.Peek()
		if r.State == StateBody {
			// Body consumes one line, with no Content-Length enforcement
			// and no further line-splitting: whatever is on the line is
			// the entire body, a deliberate simplification carried from
			// the original implementation.
			idx := bytes.Index(data, []byte(crlf))
			var line []byte
			if idx < 0 {
				line = data
				buf.Advance(len(data))
			} else {
				line = data[:idx]
				buf.Advance(idx + len(crlf))
			}
			r.Body = append([]byte(nil), line...)
			r.parseFormBody()
			r.State = StateFinish
			break
		}

		idx := bytes.Index(data, []byte(crlf))
		if idx < 0 {
			// Incomplete line: wait for more bytes on the next read.
			break
		}
		line := data[:idx]
		buf.Advance(idx + len(crlf))

		switch r.State {
		case StateRequestLine:
			if !r.parseRequestLine(line) {
				return false, ErrBadRequest
			}
			r.State = StateHeaders
		case StateHeaders:
			if len(line) == 0 {
				r.State = StateBody
				break
			}
			r.parseHeaderLine(line)
		}
	}

	return true, nil
}

func (r *Request) parseRequestLine(line []byte) bool {
	first := bytes.IndexByte(line, ' ')
	if first < 0 {
		return false
	}
	rest := line[first+1:]
	second := bytes.IndexByte(rest, ' ')
	if second < 0 {
		return false
	}

	method := string(line[:first])
	path := string(rest[:second])
	version := string(rest[second+1:])

	if !strings.HasPrefix(version, "HTTP/") {
		return false
	}

	r.Method = method
	r.Path = canonicalizePath(path)
	r.Version = version
	return true
}

// canonicalizePath applies the fixed rewrite rules: "/" and "/index" both
// resolve to "/index.html"; anything under "/api/" is left untouched so a
// document root that happens to hold an api/ directory of static files
// isn't mangled by the shorthand rules.
func canonicalizePath(path string) string {
	if strings.HasPrefix(path, "/api/") {
		return path
	}
	switch path {
	case "/":
		return "/index.html"
	case "/index":
		return "/index.html"
	default:
		return path
	}
}

func (r *Request) parseHeaderLine(line []byte) {
	colon := bytes.IndexByte(line, ':')
	if colon < 0 {
		return
	}
	key := string(line[:colon])
	value := line[colon+1:]
	// Trim only the single leading space after the colon, matching the
	// original parser rather than trimming all leading whitespace.
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	r.Headers[key] = string(value)
}

func (r *Request) parseFormBody() {
	if r.Method != "POST" || r.Headers["Content-Type"] != "application/x-www-form-urlencoded" {
		return
	}
	for _, pair := range strings.Split(string(r.Body), "&") {
		eq := strings.IndexByte(pair, '=')
		if eq < 0 {
			continue
		}
		// No URL-decoding: a deliberate simplification.
		r.Form[pair[:eq]] = pair[eq+1:]
	}
}
