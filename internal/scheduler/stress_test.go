package scheduler

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEngineStressConcurrentSubmit(t *testing.T) {
	engine := NewEngine(4096, nil)
	engine.Start()
	defer engine.Stop()

	const workers = 8
	const perWorker = 200
	total := workers * perWorker

	// The counter is only touched from jobs, so a plain int is race free
	// as long as jobs run one at a time.
	counter := 0
	var inFlight int32
	var overlap atomic.Bool

	now := time.Now()
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		w := w
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				delay := time.Duration((w+i)%50+10) * time.Millisecond
				name := fmt.Sprintf("w%d-%d", w, i)
				err := engine.SubmitAt(name, now.Add(delay), func() error {
					if atomic.AddInt32(&inFlight, 1) != 1 {
						overlap.Store(true)
					}
					counter++
					atomic.AddInt32(&inFlight, -1)
					return nil
				})
				if err != nil {
					t.Errorf("submit failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	deadline := time.After(5 * time.Second)
	received := 0
	for received < total {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting jobs: received=%d total=%d dropped=%d", received, total, engine.Dropped())
		case <-engine.C():
			received++
		}
	}

	if overlap.Load() {
		t.Fatal("jobs ran concurrently")
	}
	if counter != total {
		t.Fatalf("unexpected run count: got=%d want=%d", counter, total)
	}
	if engine.Dropped() != 0 {
		t.Fatalf("expected zero drops with active consumer, got=%d", engine.Dropped())
	}
}
