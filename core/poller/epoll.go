//go:build linux

package poller

import "golang.org/x/sys/unix"

// EpollPoller is the Linux epoll backend.
type EpollPoller struct {
	epfd   int
	events []unix.EpollEvent
}

// NewPoller creates a new Poller (Linux).
func NewPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &EpollPoller{
		epfd:   epfd,
		events: make([]unix.EpollEvent, 1024),
	}, nil
}

func toEpollEvents(i Interest) uint32 {
	var ev uint32
	if i&Readable != 0 {
		ev |= unix.EPOLLIN
	}
	if i&Writable != 0 {
		ev |= unix.EPOLLOUT
	}
	if i&PeerClosed != 0 {
		ev |= unix.EPOLLRDHUP
	}
	if i&Error != 0 {
		ev |= unix.EPOLLERR
	}
	if i&Hangup != 0 {
		ev |= unix.EPOLLHUP
	}
	if i&EdgeTriggered != 0 {
		ev |= unix.EPOLLET
	}
	if i&OneShot != 0 {
		ev |= unix.EPOLLONESHOT
	}
	return ev
}

func fromEpollEvents(ev uint32) Interest {
	var i Interest
	if ev&unix.EPOLLIN != 0 {
		i |= Readable
	}
	if ev&unix.EPOLLOUT != 0 {
		i |= Writable
	}
	if ev&unix.EPOLLRDHUP != 0 {
		i |= PeerClosed
	}
	if ev&unix.EPOLLERR != 0 {
		i |= Error
	}
	if ev&unix.EPOLLHUP != 0 {
		i |= Hangup
	}
	return i
}

// Add registers fd with epoll for the given interest set.
func (p *EpollPoller) Add(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

// Modify updates fd's interest set, used to re-arm one-shot registrations.
func (p *EpollPoller) Modify(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

// Remove deregisters fd.
func (p *EpollPoller) Remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks for ready descriptors.
func (p *EpollPoller) Wait(timeoutMS int) ([]Event, error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMS)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		out[i] = Event{
			FD:     int(p.events[i].Fd),
			Events: fromEpollEvents(p.events[i].Events),
		}
	}
	return out, nil
}

// Close closes the epoll instance.
func (p *EpollPoller) Close() error {
	return unix.Close(p.epfd)
}

// SetNonblock sets non-blocking mode on fd.
func SetNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}
