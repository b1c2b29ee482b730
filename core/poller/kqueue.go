//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package poller

import "golang.org/x/sys/unix"

// KqueuePoller is the BSD/Darwin kqueue backend, carried for development
// off Linux; the production reactor targets the epoll backend.
type KqueuePoller struct {
	kqfd    int
	events  []unix.Kevent_t
	oneshot map[int]bool
}

// NewPoller creates a new Poller (BSD/Darwin).
func NewPoller() (Poller, error) {
	kqfd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &KqueuePoller{
		kqfd:    kqfd,
		events:  make([]unix.Kevent_t, 1024),
		oneshot: make(map[int]bool),
	}, nil
}

func kqueueFlags(i Interest) uint16 {
	flags := uint16(unix.EV_ADD | unix.EV_ENABLE)
	if i&EdgeTriggered != 0 {
		flags |= unix.EV_CLEAR
	}
	if i&OneShot != 0 {
		flags |= unix.EV_ONESHOT
	}
	return flags
}

func (p *KqueuePoller) register(fd int, interest Interest) error {
	flags := kqueueFlags(interest)
	var changes []unix.Kevent_t
	if interest&Readable != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if interest&Writable != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kqfd, changes, nil, nil)
	return err
}

// Add registers fd for the given interest set.
func (p *KqueuePoller) Add(fd int, interest Interest) error {
	p.oneshot[fd] = interest&OneShot != 0
	return p.register(fd, interest)
}

// Modify re-registers fd, used to re-arm one-shot registrations or flip
// read/write interest.
func (p *KqueuePoller) Modify(fd int, interest Interest) error {
	p.oneshot[fd] = interest&OneShot != 0
	return p.register(fd, interest)
}

// Remove deregisters fd for both read and write filters.
func (p *KqueuePoller) Remove(fd int) error {
	delete(p.oneshot, fd)
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, err := unix.Kevent(p.kqfd, changes, nil, nil)
	return err
}

// Wait blocks for ready descriptors.
func (p *KqueuePoller) Wait(timeoutMS int) ([]Event, error) {
	var ts *unix.Timespec
	if timeoutMS >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMS / 1000),
			Nsec: int64((timeoutMS % 1000) * 1_000_000),
		}
	}

	n, err := unix.Kevent(p.kqfd, nil, p.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	merged := make(map[int]Interest, n)
	for i := 0; i < n; i++ {
		ev := p.events[i]
		fd := int(ev.Ident)
		var in Interest
		switch ev.Filter {
		case unix.EVFILT_READ:
			in |= Readable
		case unix.EVFILT_WRITE:
			in |= Writable
		}
		if ev.Flags&unix.EV_EOF != 0 {
			in |= PeerClosed
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			in |= Error
		}
		merged[fd] |= in
	}

	out := make([]Event, 0, len(merged))
	for fd, in := range merged {
		out = append(out, Event{FD: fd, Events: in})
	}
	return out, nil
}

// Close closes the kqueue instance.
func (p *KqueuePoller) Close() error {
	return unix.Close(p.kqfd)
}

// SetNonblock sets non-blocking mode on fd.
func SetNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}
