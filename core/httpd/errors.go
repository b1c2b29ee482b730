package httpd

import "errors"

// Sentinel errors the connection state machine and its callers distinguish.
var (
	ErrBadRequest    = errors.New("httpd: malformed request line")
	ErrWouldBlock    = errors.New("httpd: operation would block")
	ErrPeerClosed    = errors.New("httpd: peer closed connection")
	ErrConnReset     = errors.New("httpd: connection reset")
	ErrCGISpawn      = errors.New("httpd: cgi spawn failed")
	ErrLimitExceeded = errors.New("httpd: connection limit exceeded")
)
