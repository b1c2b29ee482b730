//go:build linux

package httpd

import (
	"github.com/searchktools/reactor-httpd/core/sendfile"
	"golang.org/x/sys/unix"
)

// sendFileSupported gates Conn's opportunistic TCP_CORK + sendfile(2) write
// path to platforms core/sendfile actually supports it on; TCP_CORK is
// Linux-only.
const sendFileSupported = true

// writeSendFile is the non-keepalive static-file fast path: the header is
// written the ordinary way (it's a few hundred bytes, not worth corking on
// its own), then the file body streams straight from the page cache to the
// socket via sendfile(2) instead of through the mmap'd writev path. Resumes
// correctly across EAGAIN: the byte offset into the file is always derived
// from how much of the body slice advance has already trimmed off, so a
// later call picks up exactly where the last one left off.
func (c *Conn) writeSendFile() (int, error) {
	total := 0
	for len(c.pending) > 1 {
		n, err := unix.Write(c.FD, c.pending[0])
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
			return total, nil
		}
	}
	if len(c.pending) == 0 {
		return total, nil
	}

	body := c.pending[0]
	if len(body) == 0 {
		c.pending = nil
		return total, nil
	}

	offset := int64(c.resp.FileSize() - len(body))
	n, err := sendfile.SendFromFD(c.FD, c.resp.FileFD(), offset, len(body))
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
	return total, nil
}
