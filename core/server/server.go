// Package server implements the reactor loop: it owns the listening socket,
// the readiness poller, the timer heap and the worker pool, and drives the
// connection table that every accepted socket lives in. The reactor
// goroutine alone mutates the connection table and timer heap; workers
// mutate only the Conn they were handed, reporting closes back over a
// channel rather than touching shared state directly.
package server

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/searchktools/reactor-httpd/config"
	"github.com/searchktools/reactor-httpd/core/datecache"
	"github.com/searchktools/reactor-httpd/core/fdutil"
	"github.com/searchktools/reactor-httpd/core/httpd"
	"github.com/searchktools/reactor-httpd/core/pools"
	"github.com/searchktools/reactor-httpd/core/poller"
	"github.com/searchktools/reactor-httpd/core/timer"
	"github.com/searchktools/reactor-httpd/core/workerpool"
	"golang.org/x/sys/unix"
)

// maxFD is the soft ceiling on simultaneously open connections; the server
// starts refusing new ones at maxFD-100 to leave headroom for the listener
// and any fds the process needs for its own housekeeping.
const maxFD = 65536

// Server is the reactor: a single event loop thread plus a pinned worker
// pool it offloads per-connection I/O to. The connection table (conns) and
// timer heap are mutated exclusively by the reactor goroutine; a worker that
// decides a connection must close reports that decision on closed instead
// of touching either structure itself.
type Server struct {
	cfg    *config.Config
	mgr    *config.Manager
	listen fdutil.FD
	poll   poller.Poller
	timers *timer.Heap
	pool   *workerpool.Pool
	dates  *datecache.Cache
	conns  map[int]*httpd.Conn
	live   *pools.ConnectionPool
	closed chan *httpd.Conn

	connET   bool
	listenET bool
	stopping bool
}

// New creates a Server from cfg. mgr, if non-nil, is consulted on every
// accept and every deadline refresh for the live-adjustable
// "idle-timeout-ms" and "max-conns" keys (see config.Manager); pass nil to
// rely solely on cfg's startup values.
func New(cfg *config.Config, mgr *config.Manager) *Server {
	connET, listenET := triggerModes(cfg.TriggerMode)
	return &Server{
		cfg:      cfg,
		mgr:      mgr,
		listen:   fdutil.New(fdutil.Invalid),
		timers:   timer.New(),
		pool:     workerpool.New(cfg.Workers),
		dates:    datecache.New(),
		conns:    make(map[int]*httpd.Conn),
		live:     pools.NewConnectionPool(maxFD, func() any { return httpd.NewConn() }),
		closed:   make(chan *httpd.Conn, maxFD),
		connET:   connET,
		listenET: listenET,
	}
}

// triggerModes decodes the 0-3 trigger-mode flag: bit 0 selects
// edge-triggering for connections, bit 1 for the listener. Any value
// outside 0-3 defaults to both edge-triggered.
func triggerModes(mode int) (connET, listenET bool) {
	switch mode {
	case 0:
		return false, false
	case 1:
		return true, false
	case 2:
		return false, true
	case 3:
		return true, true
	default:
		return true, true
	}
}

// Run sets up the listening socket and runs the reactor loop until Stop is
// called. It blocks until the loop exits.
func (s *Server) Run() error {
	if err := s.initSocket(); err != nil {
		return fmt.Errorf("server: listen setup: %w", err)
	}

	p, err := poller.NewPoller()
	if err != nil {
		return fmt.Errorf("server: poller: %w", err)
	}
	s.poll = p

	listenInterest := poller.Readable
	if s.listenET {
		listenInterest |= poller.EdgeTriggered
	}
	if err := s.poll.Add(s.listen.Get(), listenInterest); err != nil {
		return fmt.Errorf("server: register listener: %w", err)
	}

	s.dates.Start()
	defer s.dates.Stop()

	log.Printf("reactor-httpd listening on :%d (trigger-mode=%d, workers=%d)", s.cfg.Port, s.cfg.TriggerMode, s.pool.Workers())

	// Bound each wait so a Stop request is noticed even when no deadline or
	// event is due.
	const maxWaitMS = 500
	for !s.stopping {
		waitMS := s.timers.Tick(time.Now())
		if waitMS < 0 || waitMS > maxWaitMS {
			waitMS = maxWaitMS
		}
		events, err := s.poll.Wait(int(waitMS))
		if err != nil {
			log.Printf("poll wait: %v", err)
			continue
		}

		for _, ev := range events {
			s.dispatch(ev)
		}

		s.drainClosed()
	}

	s.shutdown()
	return nil
}

func (s *Server) dispatch(ev poller.Event) {
	if ev.FD == s.listen.Get() {
		s.acceptLoop()
		return
	}

	conn, ok := s.conns[ev.FD]
	if !ok {
		return
	}

	if ev.Events&(poller.Error|poller.Hangup|poller.PeerClosed) != 0 {
		s.closeConn(ev.FD)
		return
	}

	if ev.Events&poller.Readable != 0 {
		s.refreshDeadline(conn.FD)
		s.pool.Submit(func() { s.onRead(conn) })
		return
	}
	if ev.Events&poller.Writable != 0 {
		s.refreshDeadline(conn.FD)
		s.pool.Submit(func() { s.onWrite(conn) })
	}
}

func (s *Server) acceptLoop() {
	for {
		fd, sa, err := unix.Accept4(s.listen.Get(), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			return
		}

		if len(s.conns) >= s.connLimit() {
			unix.Write(fd, []byte("HTTP/1.1 503 Service Unavailable\r\nConnection: close\r\nContent-Length: 12\r\n\r\nServer busy!"))
			unix.Close(fd)
			continue
		}

		setConnSocketOpts(fd)

		conn := s.live.Get().(*httpd.Conn)
		conn.Init(fd, peerString(sa), s.connET)
		s.conns[fd] = conn

		s.timers.Add(fd, time.Now().Add(s.idleTimeout()), func() { s.closeConn(fd) })

		interest := poller.Readable | poller.PeerClosed | poller.OneShot
		if s.connET {
			interest |= poller.EdgeTriggered
		}
		if err := s.poll.Add(fd, interest); err != nil {
			s.closeConn(fd)
		}
	}
}

// onRead, onWrite and the helpers they call (rearm, requestClose) run on a
// worker goroutine, never on the reactor goroutine. They touch only the
// Conn they were handed and the poller (epoll_ctl/kevent registration is
// safe to call concurrently with the reactor's blocked Wait) — never
// s.conns or s.timers, which belong to the reactor alone.
func (s *Server) onRead(conn *httpd.Conn) {
	if _, err := conn.Read(); err != nil {
		s.requestClose(conn)
		return
	}

	ready, err := conn.Process(s.cfg.DocRoot, s.cfg.CGIDir, s.dates.Header())
	if err != nil {
		s.requestClose(conn)
		return
	}
	if !ready {
		s.rearm(conn, poller.Readable|poller.PeerClosed)
		return
	}
	s.rearm(conn, poller.Writable|poller.PeerClosed)
}

func (s *Server) onWrite(conn *httpd.Conn) {
	_, err := conn.Write()
	switch err {
	case nil:
		if conn.PendingWriteBytes() > 0 {
			s.rearm(conn, poller.Writable|poller.PeerClosed)
			return
		}
		if !conn.KeepAlive() {
			s.requestClose(conn)
			return
		}
		conn.BeginNext()
		ready, perr := conn.Process(s.cfg.DocRoot, s.cfg.CGIDir, s.dates.Header())
		if perr != nil {
			s.requestClose(conn)
			return
		}
		if ready {
			s.rearm(conn, poller.Writable|poller.PeerClosed)
		} else {
			s.rearm(conn, poller.Readable|poller.PeerClosed)
		}
	case httpd.ErrWouldBlock:
		s.rearm(conn, poller.Writable|poller.PeerClosed)
	default:
		s.requestClose(conn)
	}
}

// rearm re-registers interest for conn's fd. conn.EdgeTriggered and conn.FD
// are fixed for the lifetime of the connection once accepted, so reading
// them here needs no synchronization with the reactor.
func (s *Server) rearm(conn *httpd.Conn, interest poller.Interest) {
	interest |= poller.OneShot
	if conn.EdgeTriggered {
		interest |= poller.EdgeTriggered
	}
	if err := s.poll.Modify(conn.FD, interest); err != nil {
		s.requestClose(conn)
	}
}

// requestClose is the worker-safe half of connection teardown: it performs
// the parts that only touch this conn and the poller, then hands the conn
// to the reactor goroutine over closed for the s.conns/s.timers bookkeeping
// that isn't safe to do from here. If conn.Close lost the race (the reactor
// already closed this fd via a timer expiry or a poll error event), there is
// nothing left for this worker to do.
func (s *Server) requestClose(conn *httpd.Conn) {
	if !conn.Close() {
		return
	}
	s.poll.Remove(conn.FD)
	select {
	case s.closed <- conn:
	default:
		log.Printf("server: closed channel full, dropping conn fd=%d", conn.FD)
	}
}

func (s *Server) refreshDeadline(fd int) {
	s.timers.Add(fd, time.Now().Add(s.idleTimeout()), func() { s.closeConn(fd) })
}

// drainClosed runs on the reactor goroutine, reconciling s.conns/s.timers
// with every close a worker reported via requestClose since the last pass.
func (s *Server) drainClosed() {
	for {
		select {
		case conn := <-s.closed:
			if _, ok := s.conns[conn.FD]; ok {
				delete(s.conns, conn.FD)
				s.timers.Remove(conn.FD)
			}
			s.live.Put(conn)
		default:
			return
		}
	}
}

// closeConn is the reactor-goroutine path: called directly from dispatch on
// a poll error/hangup/peer-closed event, and from a timer's expiry callback
// (invoked synchronously from within Tick, itself only ever called by the
// reactor). It owns s.conns and s.timers directly rather than going through
// closed, since it already runs on the one goroutine allowed to touch them.
func (s *Server) closeConn(fd int) {
	conn, ok := s.conns[fd]
	if !ok {
		return
	}
	delete(s.conns, fd)
	s.timers.Remove(fd)
	s.poll.Remove(fd)
	if conn.Close() {
		s.live.Put(conn)
	}
}

func (s *Server) connLimit() int {
	limit := s.cfg.MaxConns
	if s.mgr != nil {
		if v := s.mgr.GetInt("max-conns", 0); v > 0 {
			limit = v
		}
	}
	if limit <= 0 {
		limit = maxFD
	}
	return limit - 100
}

func (s *Server) idleTimeout() time.Duration {
	ms := s.cfg.IdleTimeoutMS
	if s.mgr != nil {
		if v := s.mgr.GetInt("idle-timeout-ms", 0); v > 0 {
			ms = v
		}
	}
	if ms <= 0 {
		return 365 * 24 * time.Hour // effectively disabled
	}
	return time.Duration(ms) * time.Millisecond
}

// LiveConnections returns the number of currently open connections, the
// Go rendering of the original's userCount gauge.
func (s *Server) LiveConnections() int {
	return len(s.conns)
}

// Stop requests the reactor loop to exit after its current wait. It does
// not block; Run returns once the loop notices.
func (s *Server) Stop() {
	s.stopping = true
}

func (s *Server) shutdown() {
	for fd := range s.conns {
		s.closeConn(fd)
	}
	s.pool.Close()
	if s.poll != nil {
		s.poll.Close()
	}
	s.listen.Close()
}

func (s *Server) initSocket() error {
	if s.cfg.Port < 1024 || s.cfg.Port > 65535 {
		return fmt.Errorf("port %d out of range [1024, 65535]", s.cfg.Port)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return err
	}
	s.listen.Reset(fd)

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		return err
	}
	if s.cfg.Linger {
		linger := unix.Linger{Onoff: 1, Linger: 1}
		if err := unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &linger); err != nil {
			return err
		}
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		return err
	}
	const sockBuf = 256 * 1024
	unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, sockBuf)
	unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, sockBuf)

	addr := &unix.SockaddrInet4{Port: s.cfg.Port}
	if err := unix.Bind(fd, addr); err != nil {
		return err
	}
	if err := unix.Listen(fd, 1024); err != nil {
		return err
	}
	return unix.SetNonblock(fd, true)
}

func setConnSocketOpts(fd int) {
	unix.SetNonblock(fd, true)
	unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
}

func peerString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3], a.Port)
	case *unix.SockaddrInet6:
		return fmt.Sprintf("[%x]:%s", a.Addr, strconv.Itoa(a.Port))
	default:
		return ""
	}
}
