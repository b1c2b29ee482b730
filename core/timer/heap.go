// Package timer implements a min-heap timer wheel keyed by file descriptor,
// used to expire idle connections. An auxiliary fd-to-index map lets the
// reactor update or cancel a connection's deadline in O(log n) whenever
// activity is observed on it, without a linear heap scan.
package timer

import "time"

type node struct {
	fd       int
	deadline time.Time
	cb       func()
}

// Heap is a min-heap of per-connection deadlines ordered by expiry time.
// Not safe for concurrent use; callers (the reactor loop) own it exclusively.
type Heap struct {
	nodes []node
	index map[int]int // fd -> position in nodes
}

// New creates an empty Heap.
func New() *Heap {
	return &Heap{index: make(map[int]int)}
}

// Add schedules cb to run at deadline for fd, replacing any existing
// schedule for the same fd in place (matches addTimer's insert-or-update
// behavior rather than allowing duplicate entries per fd).
func (h *Heap) Add(fd int, deadline time.Time, cb func()) {
	if i, ok := h.index[fd]; ok {
		h.nodes[i].deadline = deadline
		h.nodes[i].cb = cb
		h.siftdown(i)
		h.siftup(i)
		return
	}
	h.nodes = append(h.nodes, node{fd: fd, deadline: deadline, cb: cb})
	i := len(h.nodes) - 1
	h.index[fd] = i
	h.siftup(i)
}

// Remove cancels the schedule for fd, if any.
func (h *Heap) Remove(fd int) {
	i, ok := h.index[fd]
	if !ok {
		return
	}
	h.removeAt(i)
}

func (h *Heap) removeAt(i int) {
	last := len(h.nodes) - 1
	h.swap(i, last)
	removedFD := h.nodes[last].fd
	h.nodes = h.nodes[:last]
	delete(h.index, removedFD)
	if i < len(h.nodes) {
		h.siftdown(i)
		h.siftup(i)
	}
}

// Tick runs every node whose deadline has passed and returns the number of
// milliseconds until the next deadline, or -1 if the heap is empty.
func (h *Heap) Tick(now time.Time) int64 {
	for len(h.nodes) > 0 && !h.nodes[0].deadline.After(now) {
		n := h.nodes[0]
		h.removeAt(0)
		if n.cb != nil {
			n.cb()
		}
	}
	if len(h.nodes) == 0 {
		return -1
	}
	wait := h.nodes[0].deadline.Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait.Milliseconds()
}

// Len returns the number of scheduled entries.
func (h *Heap) Len() int { return len(h.nodes) }

func (h *Heap) swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
	h.index[h.nodes[i].fd] = i
	h.index[h.nodes[j].fd] = j
}

func (h *Heap) siftup(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.nodes[i].deadline.Before(h.nodes[parent].deadline) {
			break
		}
		h.swap(i, parent)
		i = parent
	}
}

func (h *Heap) siftdown(i int) {
	n := len(h.nodes)
	for {
		left, right := 2*i+1, 2*i+2
		smallest := i
		if left < n && h.nodes[left].deadline.Before(h.nodes[smallest].deadline) {
			smallest = left
		}
		if right < n && h.nodes[right].deadline.Before(h.nodes[smallest].deadline) {
			smallest = right
		}
		if smallest == i {
			return
		}
		h.swap(i, smallest)
		i = smallest
	}
}
