package sale

import (
	"errors"
	"math/big"
	"testing"
)

func TestDayIndexBoundaries(t *testing.T) {
	cases := []struct {
		now  int64
		want uint64
	}{
		{0, 0},
		{86399, 0},
		{86400, 1},
		{2 * 86400, 2},
		{2*86400 - 1, 1},
		{-5, 0},
	}
	for _, tc := range cases {
		if got := DayIndex(tc.now); got != tc.want {
			t.Fatalf("DayIndex(%d) = %d, want %d", tc.now, got, tc.want)
		}
	}
}

func TestEffectiveDailyVolumeRollsOver(t *testing.T) {
	state := DailySales{Day: 3, Volume: big.NewInt(500)}

	sameDay := EffectiveDailyVolume(state, 3*86400+100)
	if sameDay.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected 500 within the day, got %s", sameDay)
	}
	nextDay := EffectiveDailyVolume(state, 4*86400)
	if nextDay.Sign() != 0 {
		t.Fatalf("expected zero after rollover, got %s", nextDay)
	}
	lastSecond := EffectiveDailyVolume(state, 4*86400-1)
	if lastSecond.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected 500 at the day's final second, got %s", lastSecond)
	}
}

func TestCheckDailyQuota(t *testing.T) {
	now := int64(3*86400 + 100)
	state := DailySales{Day: 3, Volume: big.NewInt(60)}

	if err := CheckDailyQuota(state, big.NewInt(40), big.NewInt(100), now); err != nil {
		t.Fatalf("projected volume equal to the cap must pass: %v", err)
	}
	if err := CheckDailyQuota(state, big.NewInt(41), big.NewInt(100), now); !errors.Is(err, ErrDailyQuotaExceeded) {
		t.Fatalf("expected ErrDailyQuotaExceeded, got %v", err)
	}
	// Yesterday's volume does not count against today.
	if err := CheckDailyQuota(state, big.NewInt(100), big.NewInt(100), now+86400); err != nil {
		t.Fatalf("expected fresh quota on the next day: %v", err)
	}
	// A nil or non-positive cap disables the quota.
	if err := CheckDailyQuota(state, big.NewInt(1_000_000), nil, now); err != nil {
		t.Fatalf("nil cap must disable the quota: %v", err)
	}
	if err := CheckDailyQuota(state, big.NewInt(1_000_000), big.NewInt(0), now); err != nil {
		t.Fatalf("zero cap must disable the quota: %v", err)
	}
}

func TestApplyDailyVolume(t *testing.T) {
	state := DailySales{Day: 3, Volume: big.NewInt(60)}

	sameDay := ApplyDailyVolume(state, big.NewInt(40), 3*86400+200)
	if sameDay.Day != 3 || sameDay.Volume.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected day 3 volume 100, got %+v", sameDay)
	}
	rolled := ApplyDailyVolume(state, big.NewInt(40), 4*86400)
	if rolled.Day != 4 || rolled.Volume.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("expected day 4 volume 40, got %+v", rolled)
	}
	if state.Volume.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("input state mutated: %s", state.Volume)
	}
}
