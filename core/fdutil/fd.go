// Package fdutil provides an owning file-descriptor handle, the Go
// equivalent of the RAII unique_fd used throughout the reactor this server
// is modeled on.
package fdutil

import "golang.org/x/sys/unix"

// FD owns a raw file descriptor and closes it exactly once.
type FD struct {
	fd int
}

// Invalid is the sentinel value for a handle that owns nothing.
const Invalid = -1

// New wraps an already-open descriptor.
func New(fd int) FD {
	return FD{fd: fd}
}

// Get returns the underlying descriptor, or Invalid if none is owned.
func (h *FD) Get() int {
	return h.fd
}

// Valid reports whether the handle owns an open descriptor.
func (h *FD) Valid() bool {
	return h.fd >= 0
}

// Release gives up ownership without closing, returning the raw descriptor.
func (h *FD) Release() int {
	fd := h.fd
	h.fd = Invalid
	return fd
}

// Reset closes the currently owned descriptor (if any) and takes ownership
// of fd.
func (h *FD) Reset(fd int) error {
	err := h.Close()
	h.fd = fd
	return err
}

// Close closes the owned descriptor if one is held. Idempotent.
func (h *FD) Close() error {
	if h.fd < 0 {
		return nil
	}
	err := unix.Close(h.fd)
	h.fd = Invalid
	return err
}
