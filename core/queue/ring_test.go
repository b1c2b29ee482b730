package queue

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestEnqueueDequeueOrder(t *testing.T) {
	r := NewRing[int](4)
	for i := 0; i < 4; i++ {
		if !r.TryEnqueue(i) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	if r.TryEnqueue(99) {
		t.Fatal("expected queue full")
	}
	for i := 0; i < 4; i++ {
		v, ok := r.TryDequeue()
		if !ok || v != i {
			t.Fatalf("dequeue = %d,%v want %d,true", v, ok, i)
		}
	}
	if _, ok := r.TryDequeue(); ok {
		t.Fatal("expected queue empty")
	}
}

func TestCapacityRoundsToPowerOfTwo(t *testing.T) {
	r := NewRing[int](5)
	if len(r.slots) != 8 {
		t.Fatalf("capacity = %d, want 8", len(r.slots))
	}
}

func TestConcurrentProducersConsumers(t *testing.T) {
	r := NewRing[int](64)
	const n = 10000
	var wg sync.WaitGroup

	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n/4; i++ {
				for !r.TryEnqueue(1) {
				}
			}
		}()
	}

	done := make(chan struct{})
	var consumed atomic.Int64
	var cwg sync.WaitGroup
	for c := 0; c < 4; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				select {
				case <-done:
					for {
						if _, ok := r.TryDequeue(); ok {
							consumed.Add(1)
						} else {
							return
						}
					}
				default:
					if _, ok := r.TryDequeue(); ok {
						consumed.Add(1)
					}
				}
			}
		}()
	}

	wg.Wait()
	close(done)
	cwg.Wait()

	if consumed.Load() != n {
		t.Fatalf("consumed %d, want %d", consumed.Load(), n)
	}
}
