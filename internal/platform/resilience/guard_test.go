package resilience

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestGuard_TryAcquire(t *testing.T) {
	t.Parallel()

	var g Guard
	release, ok := g.TryAcquire("lock-picks")
	if !ok {
		t.Fatalf("expected first acquire to succeed")
	}
	if _, ok := g.TryAcquire("lock-picks"); ok {
		t.Fatalf("expected second acquire to fail while held")
	}
	if _, ok := g.TryAcquire("auto-complete-drafts"); !ok {
		t.Fatalf("expected other key to be independent")
	}

	release()
	release()
	if g.Held("lock-picks") {
		t.Fatalf("expected key to be released")
	}
	if _, ok := g.TryAcquire("lock-picks"); !ok {
		t.Fatalf("expected acquire after release to succeed")
	}
}

func TestGuard_ConcurrentAcquireHasOneWinner(t *testing.T) {
	t.Parallel()

	var g Guard
	var winners atomic.Int32
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := g.TryAcquire("job"); ok {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
}
