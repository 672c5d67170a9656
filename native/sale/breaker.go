package sale

import (
	"fmt"
	"math/big"
)

// BreakerState is the rolling-window volume monitor. The tripped flag is
// sticky: once set it blocks every purchase until a manual reset or until a
// fresh window naturally starts.
type BreakerState struct {
	WindowVolume *big.Int
	WindowStart  int64
	Tripped      bool
	TrippedAt    int64
}

// NewBreakerState returns an empty state whose window starts at now.
func NewBreakerState(now int64) BreakerState {
	return BreakerState{WindowVolume: big.NewInt(0), WindowStart: now}
}

// Copy returns a deep copy so callers never share the volume pointer.
func (bs BreakerState) Copy() BreakerState {
	clone := bs
	if bs.WindowVolume != nil {
		clone.WindowVolume = new(big.Int).Set(bs.WindowVolume)
	} else {
		clone.WindowVolume = big.NewInt(0)
	}
	return clone
}

// AdvanceBreaker applies the lazy window-reset transition: when the window has
// elapsed the volume is zeroed, the window restarts at now, and a stale trip
// auto-heals. The input state is not mutated.
func AdvanceBreaker(state BreakerState, now int64, windowSeconds uint64) BreakerState {
	next := state.Copy()
	if windowSeconds == 0 {
		return next
	}
	if now >= state.WindowStart+int64(windowSeconds) {
		next.WindowVolume = big.NewInt(0)
		next.WindowStart = now
		next.Tripped = false
		next.TrippedAt = 0
	}
	return next
}

// AdmitBreaker checks the quantity against the window threshold. When the
// projected volume exceeds the threshold the returned state is tripped and the
// triggering purchase itself is rejected. The caller must persist the returned
// state in both outcomes so a trip is durable.
func AdmitBreaker(state BreakerState, quantity, threshold *big.Int, now int64) (BreakerState, error) {
	if quantity == nil || quantity.Sign() <= 0 {
		return state, fmt.Errorf("%w: breaker quantity", ErrInvalidAmount)
	}
	next := state.Copy()
	if next.Tripped {
		return next, ErrBreakerTripped
	}
	projected := new(big.Int).Add(next.WindowVolume, quantity)
	if threshold != nil && threshold.Sign() > 0 && projected.Cmp(threshold) > 0 {
		next.Tripped = true
		next.TrippedAt = now
		return next, ErrBreakerTripped
	}
	next.WindowVolume = projected
	return next, nil
}
