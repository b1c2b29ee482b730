package httpd

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"

	"github.com/searchktools/reactor-httpd/core/buffer"
	"github.com/searchktools/reactor-httpd/core/cgi"
	"github.com/searchktools/reactor-httpd/core/fdutil"
	"golang.org/x/sys/unix"
)

const maxReadPerWakeup = 64 * 1024
const fdInvalid = -1

// Conn binds a byte buffer, request parser and response builder to a single
// fd, and implements its read/process/write state machine. It is owned
// exclusively by whichever worker is currently executing its closure; the
// reactor never touches a Conn's buffers directly.
type Conn struct {
	FD            int
	Addr          string
	EdgeTriggered bool

	readBuf *buffer.Buffer
	req     *Request
	resp    *Response

	pending [][]byte // iovec-equivalent payload queued for Write
	closed  atomic.Bool
}

// NewConn returns a Conn ready for Init.
func NewConn() *Conn {
	return &Conn{
		readBuf: buffer.New(4096),
		req:     NewRequest(),
		resp:    NewResponse(),
	}
}

// Init prepares the connection for a freshly accepted fd. Must be called
// exactly once per accept before any other method.
func (c *Conn) Init(fd int, addr string, edgeTriggered bool) {
	c.FD = fd
	c.Addr = addr
	c.EdgeTriggered = edgeTriggered
	c.readBuf.Reset()
	c.req.Reset()
	c.pending = nil
	c.closed.Store(false)
}

// Read drains the socket into the read buffer. In edge-triggered mode it
// loops until EAGAIN or 64 KiB has been consumed this call, matching the
// "drain until would-block" contract edge triggering requires.
func (c *Conn) Read() (int, error) {
	total := 0
	for {
		n, err := c.readBuf.ReadFD(c.FD)
		if n < 0 {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				break
			}
			if total == 0 {
				return 0, err
			}
			break
		}
		if n == 0 {
			if total == 0 {
				return 0, ErrPeerClosed
			}
			break
		}
		total += n
		if !c.EdgeTriggered || total >= maxReadPerWakeup {
			break
		}
	}
	return total, nil
}

// Process parses whatever is in the read buffer and, once a full request
// has arrived, builds a response (static file or CGI). It returns true when
// a response is ready to write, false when more bytes are needed before
// parsing can complete.
func (c *Conn) Process(docRoot, cgiDir, dateHeader string) (bool, error) {
	ok, err := c.req.Parse(c.readBuf)
	if err == ErrBadRequest {
		c.resp.Init(docRoot, c.req.Path, false, 400, dateHeader)
		c.pending = [][]byte{c.resp.HeaderBytes(), c.resp.FileBytes()}
		return true, nil
	}
	if !ok {
		return false, nil
	}
	if c.req.State != StateFinish {
		return false, nil
	}

	if c.req.IsCGI() {
		c.runCGI(docRoot, cgiDir, dateHeader)
	} else {
		c.resp.Init(docRoot, c.req.Path, c.req.KeepAlive(), unset, dateHeader)
		c.pending = [][]byte{c.resp.HeaderBytes(), c.resp.FileBytes()}
	}
	return true, nil
}

func (c *Conn) runCGI(docRoot, cgiDir, dateHeader string) {
	scriptPath, query, _ := strings.Cut(strings.TrimPrefix(c.req.Path, "/cgi-bin/"), "?")

	result, err := cgi.Run(context.Background(), cgiDir, cgi.Request{
		Method:        c.req.Method,
		ScriptPath:    scriptPath,
		Query:         query,
		RemoteAddr:    c.Addr,
		UserAgent:     c.req.Headers["User-Agent"],
		ContentType:   c.req.Headers["Content-Type"],
		ContentLength: len(c.req.Body),
		Body:          c.req.Body,
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.resp.Init(docRoot, c.req.Path, false, 404, dateHeader)
			c.pending = [][]byte{c.resp.HeaderBytes(), c.resp.FileBytes()}
			return
		}
		c.pending = [][]byte{cgi.SpawnErrorPage(err)}
		return
	}
	c.pending = [][]byte{result.Header, result.Body}
}

// KeepAlive reports whether the just-processed request asked to keep the
// connection alive. CGI responses always close, matching the original's
// always-close CGI behavior; their composed header carries Connection: close
// only when the script emitted no Content-Type of its own.
func (c *Conn) KeepAlive() bool {
	if c.req.IsCGI() {
		return false
	}
	return c.req.KeepAlive()
}

// PendingWriteBytes reports how many response bytes remain unwritten.
func (c *Conn) PendingWriteBytes() int {
	n := 0
	for _, b := range c.pending {
		n += len(b)
	}
	return n
}

// Write flushes as much of the pending response as the socket accepts right
// now, advancing past fully or partially written buffers. Returns
// ErrWouldBlock (not an error the caller should close on) when the socket
// is not currently writable. A non-keepalive static-file response takes the
// opportunistic sendfile(2) fast path (see canSendFile); everything else
// uses the vectored writev path.
func (c *Conn) Write() (int, error) {
	if c.canSendFile() {
		return c.writeSendFile()
	}
	return c.writeVectored()
}

// canSendFile reports whether this response can stream its body straight
// from its backing file via sendfile(2) instead of through the mmap'd
// writev path: a real static file (not CGI output, which has no backing
// fd), and not keep-alive, since the fast path is a one-shot supplement for
// a connection that is about to close rather than a second mode a
// keep-alive connection would need to juggle across requests.
func (c *Conn) canSendFile() bool {
	if c.req.IsCGI() || c.KeepAlive() {
		return false
	}
	return sendFileSupported && c.resp.FileFD() != fdutil.Invalid
}

// writeVectored is the default write path: header and (for static files)
// mmap'd body go out together via a single vectored write.
func (c *Conn) writeVectored() (int, error) {
	total := 0
	for c.PendingWriteBytes() > 0 {
		iovecs := make([]unix.Iovec, 0, len(c.pending))
		for _, b := range c.pending {
			if len(b) == 0 {
				continue
			}
			iv := unix.Iovec{Base: &b[0]}
			iv.SetLen(len(b))
			iovecs = append(iovecs, iv)
		}
		if len(iovecs) == 0 {
			break
		}

		n, err := unix.Writev(c.FD, iovecs)
		if n > 0 {
			total += n
			c.advance(n)
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return total, ErrWouldBlock
			}
			return total, err
		}
		if n == 0 {
			break
		}
		if !c.EdgeTriggered {
			break
		}
	}
	return total, nil
}

func (c *Conn) advance(n int) {
	for n > 0 && len(c.pending) > 0 {
		head := c.pending[0]
		if n < len(head) {
			c.pending[0] = head[n:]
			return
		}
		n -= len(head)
		c.pending = c.pending[1:]
	}
}

// Close releases the response's mmap mapping and the socket. Safe to call
// concurrently from a worker goroutine and the reactor goroutine racing on
// the same fd (one path through the poller's error/hangup/timeout dispatch,
// the other through a worker's failed read/write); only the first caller
// performs the close and reports true.
func (c *Conn) Close() bool {
	if !c.closed.CompareAndSwap(false, true) {
		return false
	}
	c.resp.Unmap()
	unix.Close(c.FD)
	return true
}

// BeginNext clears the request and response state so a keep-alive
// connection can parse its next request, without touching the fd, address
// or edge-trigger mode.
func (c *Conn) BeginNext() {
	c.req.Reset()
	c.resp.Unmap()
	c.pending = nil
}

// Reset fully clears the connection for return to a pool. It satisfies
// pools.ConnectionPoolable so a *Conn can be recycled across accepts.
func (c *Conn) Reset() {
	c.FD = fdInvalid
	c.Addr = ""
	c.EdgeTriggered = false
	c.readBuf.Reset()
	c.req.Reset()
	c.resp.Unmap()
	c.pending = nil
	c.closed.Store(true)
}

// SetFD satisfies pools.ConnectionPoolable.
func (c *Conn) SetFD(fd int) {
	c.FD = fd
}
