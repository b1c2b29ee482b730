//go:build linux

package workerpool

import "golang.org/x/sys/unix"

// pinToCore binds the calling OS thread to a single CPU core. Best-effort:
// a failure here (restricted container, cgroup cpuset) is not fatal, it just
// leaves the worker unpinned.
func pinToCore(core int) {
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	_ = unix.SchedSetaffinity(0, &set)
}
