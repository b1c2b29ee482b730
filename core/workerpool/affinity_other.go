//go:build !linux

package workerpool

// pinToCore is a no-op on platforms without sched_setaffinity (darwin/bsd
// development machines); the pool still runs, just without core pinning.
func pinToCore(core int) {}
