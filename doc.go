/*
Package fastserver implements reactor-httpd, a single-host, epoll/kqueue
driven HTTP/1.1 server for static files and CGI scripts.

The server runs one reactor goroutine that owns a listening socket, a
readiness poller and a min-heap timer wheel for idle-connection eviction,
and offloads per-connection read/write/process work onto a fixed worker
pool backed by a lock-free MPMC ring buffer. There is no routing layer:
a request either names a file under the document root or a script under
/cgi-bin/, and the server resolves it directly.

Quick Start

	package main

	import (
	    "github.com/searchktools/reactor-httpd/app"
	    "github.com/searchktools/reactor-httpd/config"
	)

	func main() {
	    cfg := config.New()
	    mgr := config.NewManager()
	    application := app.New(cfg, mgr)
	    application.Run()
	}

Modules

  - app: process lifecycle and signal-driven graceful shutdown
  - config: flag-parsed startup configuration plus a live-adjustable Manager
  - core/server: the reactor loop binding poller, timers, worker pool and connections
  - core/poller: epoll (Linux) and kqueue (BSD/macOS) readiness multiplexing
  - core/timer: min-heap deadline wheel for idle-connection timeouts
  - core/workerpool: fixed, core-pinned worker pool over an MPMC ring
  - core/queue: the lock-free MPMC ring buffer backing the worker pool
  - core/httpd: connection state machine, HTTP/1.1 parsing, static response building
  - core/cgi: CGI/1.1 subprocess execution for /cgi-bin/ scripts
  - core/buffer: growable read/write byte buffer with vectored socket I/O
  - core/fdutil: scoped file-descriptor ownership
  - core/datecache: once-per-second cached Date header
  - core/pools: object pooling for connections, buffers and byte slices
  - core/sendfile: optional TCP_CORK+sendfile fast path for non-keep-alive static-file responses
*/
package fastserver
