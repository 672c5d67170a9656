package sale

import (
	"fmt"
	"math/big"
)

const secondsPerDay = 86400

// DailySales tracks the calendar-day cumulative sold volume. The day index is
// floor(unix / 86400); the record rolls to (today, 0) the first time a new day
// is touched.
type DailySales struct {
	Day    uint64
	Volume *big.Int
}

// Copy returns a deep copy so callers never share the volume pointer.
func (ds DailySales) Copy() DailySales {
	clone := ds
	if ds.Volume != nil {
		clone.Volume = new(big.Int).Set(ds.Volume)
	} else {
		clone.Volume = big.NewInt(0)
	}
	return clone
}

// DayIndex derives the calendar-day bucket for a unix timestamp.
func DayIndex(now int64) uint64 {
	if now < 0 {
		return 0
	}
	return uint64(now) / secondsPerDay
}

// EffectiveDailyVolume returns the volume the quota comparison should use: the
// stored volume when the record is for today, zero when the day has rolled
// over. The rollover itself is applied transactionally with settlement, not
// during validation.
func EffectiveDailyVolume(state DailySales, now int64) *big.Int {
	if state.Day != DayIndex(now) || state.Volume == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(state.Volume)
}

// CheckDailyQuota rejects when the projected day volume would exceed the cap.
func CheckDailyQuota(state DailySales, quantity, cap *big.Int, now int64) error {
	if quantity == nil || quantity.Sign() <= 0 {
		return fmt.Errorf("%w: quota quantity", ErrInvalidAmount)
	}
	if cap == nil || cap.Sign() <= 0 {
		return nil
	}
	projected := new(big.Int).Add(EffectiveDailyVolume(state, now), quantity)
	if projected.Cmp(cap) > 0 {
		return ErrDailyQuotaExceeded
	}
	return nil
}

// ApplyDailyVolume rolls the record to today when needed and adds the
// quantity. The input state is not mutated.
func ApplyDailyVolume(state DailySales, quantity *big.Int, now int64) DailySales {
	next := DailySales{Day: DayIndex(now), Volume: EffectiveDailyVolume(state, now)}
	if quantity != nil && quantity.Sign() > 0 {
		next.Volume.Add(next.Volume, quantity)
	}
	return next
}
