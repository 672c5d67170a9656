package common

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCallGuardRejectsNestedEntry(t *testing.T) {
	guard := &CallGuard{}
	if err := guard.Enter(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := guard.Enter(); !errors.Is(err, ErrReentrantCall) {
		t.Fatalf("expected ErrReentrantCall, got %v", err)
	}
	guard.Exit()
	if err := guard.Enter(); err != nil {
		t.Fatalf("guard should be reusable after exit: %v", err)
	}
	guard.Exit()
}

func TestCallGuardSerializesGoroutines(t *testing.T) {
	guard := &CallGuard{}
	const workers = 4

	var inFlight, maxInFlight int
	var track sync.Mutex
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := guard.Enter(); err != nil {
				errs[i] = err
				return
			}
			track.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			track.Unlock()

			time.Sleep(10 * time.Millisecond)

			track.Lock()
			inFlight--
			track.Unlock()
			guard.Exit()
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d rejected: %v", i, err)
		}
	}
	if maxInFlight != 1 {
		t.Fatalf("expected serialized execution, saw %d concurrent holders", maxInFlight)
	}
}

func TestGoroutineIDStable(t *testing.T) {
	id := goroutineID()
	if id <= 0 {
		t.Fatalf("expected positive goroutine id, got %d", id)
	}
	if again := goroutineID(); again != id {
		t.Fatalf("goroutine id changed within a goroutine: %d then %d", id, again)
	}

	done := make(chan int64, 1)
	go func() { done <- goroutineID() }()
	if other := <-done; other == id {
		t.Fatalf("distinct goroutines reported the same id %d", id)
	}
}
