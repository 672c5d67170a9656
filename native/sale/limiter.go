package sale

import "math/big"

// IdentityRecord tracks per-buyer activity. Cumulative fields only grow; the
// record is created lazily on first reference and never deleted.
type IdentityRecord struct {
	LastPurchaseTime int64
	LastPurchaseSlot uint64
	Purchased        *big.Int
	Spent            *big.Int
}

// Copy returns a deep copy to shield callers from accidental mutation.
func (r IdentityRecord) Copy() IdentityRecord {
	clone := r
	if r.Purchased != nil {
		clone.Purchased = new(big.Int).Set(r.Purchased)
	} else {
		clone.Purchased = big.NewInt(0)
	}
	if r.Spent != nil {
		clone.Spent = new(big.Int).Set(r.Spent)
	} else {
		clone.Spent = big.NewInt(0)
	}
	return clone
}

// CheckRateLimit evaluates the admission throttle for one caller. slotCount is
// the number of purchases already settled in the current execution slot.
//
// The check is pure: recording the caller's cooldown state is a separate step
// that runs only when the request actually settles, so a request rejected by a
// downstream guard never tightens the caller's throttle.
func CheckRateLimit(record IdentityRecord, slotCount uint64, now int64, params SecurityParams) error {
	if !params.RateLimitEnabled {
		return nil
	}
	if record.LastPurchaseTime > 0 && now < record.LastPurchaseTime+int64(params.MinInterval) {
		return ErrRateLimited
	}
	if params.MaxPerSlot > 0 && slotCount >= params.MaxPerSlot {
		return ErrRateLimited
	}
	return nil
}

// RecordPurchase folds a settled purchase into the identity record. The input
// record is not mutated.
func RecordPurchase(record IdentityRecord, quantity, paid *big.Int, now int64, slot uint64) IdentityRecord {
	next := record.Copy()
	next.LastPurchaseTime = now
	next.LastPurchaseSlot = slot
	if quantity != nil {
		next.Purchased.Add(next.Purchased, quantity)
	}
	if paid != nil {
		next.Spent.Add(next.Spent, paid)
	}
	return next
}
