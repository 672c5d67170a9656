package common

import (
	"bytes"
	"errors"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// ErrReentrantCall is returned when a call re-enters a guarded scope that it
// already holds.
var ErrReentrantCall = errors.New("reentrant call rejected")

// CallGuard serializes guarded scopes. Independent callers on other
// goroutines block until the current call finishes; a callback that re-enters
// on the owning goroutine fails immediately instead of deadlocking or
// interleaving mid-call.
type CallGuard struct {
	mu    sync.Mutex
	owner atomic.Int64
}

// Enter acquires the guard, blocking behind other goroutines. Entry from the
// goroutine that already holds the guard fails with ErrReentrantCall.
func (g *CallGuard) Enter() error {
	if g == nil {
		return errors.New("call guard not initialised")
	}
	id := goroutineID()
	if g.owner.Load() == id {
		return ErrReentrantCall
	}
	g.mu.Lock()
	g.owner.Store(id)
	return nil
}

// Exit releases the guard. It must be called exactly once per successful
// Enter, on every return path.
func (g *CallGuard) Exit() {
	if g == nil {
		return
	}
	g.owner.Store(0)
	g.mu.Unlock()
}

var goroutinePrefix = []byte("goroutine ")

// goroutineID parses the current goroutine's id out of the stack header
// ("goroutine 123 [running]:"); the runtime exposes no direct accessor.
// Goroutine ids start at 1, so 0 marks the guard as free.
func goroutineID() int64 {
	var buf [64]byte
	header := buf[:runtime.Stack(buf[:], false)]
	header = bytes.TrimPrefix(header, goroutinePrefix)
	idx := bytes.IndexByte(header, ' ')
	if idx <= 0 {
		return -1
	}
	id, err := strconv.ParseInt(string(header[:idx]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
