package sale

import "math/big"

// purchaseContext carries one admission attempt through the guard pipeline.
// All state fields are authoritative snapshots taken under the engine's call
// guard; guards read them and never write engine state.
type purchaseContext struct {
	Caller   [20]byte
	Quantity *big.Int
	// Payment is the supplied payment amount. It is nil for CanPurchase,
	// which skips the payment-sufficiency guard.
	Payment *big.Int
	Now     int64
	Slot    uint64

	State     SaleState
	Available *big.Int
	Breaker   BreakerState // already advanced to Now
	Daily     DailySales
	Buyer     IdentityRecord
	SlotCount uint64
	Denied    bool

	Sale     SaleParams
	Security SecurityParams

	// Required is the exact payment the purchase needs. Filled by the
	// payment guard.
	Required *big.Int
}

// guard is one named precondition in the admission pipeline.
type guard struct {
	name  string
	check func(*purchaseContext) error
}

// purchaseGuards is the fixed admission order. Cheap stateless checks run
// first; the circuit breaker is deliberately absent because its admission
// step mutates state and the engine runs it only after every guard here has
// passed.
func purchaseGuards() []guard {
	return []guard{
		{name: "sale-active", check: checkSaleOpen},
		{name: "bounds", check: checkBounds},
		{name: "denylist", check: checkDenylist},
		{name: "rate-limit", check: checkRateLimit},
		{name: "payment", check: checkPayment},
		{name: "daily-quota", check: checkDailyQuota},
	}
}

// evaluateGuards runs the pipeline and stops at the first rejection.
func evaluateGuards(ctx *purchaseContext) error {
	for _, g := range purchaseGuards() {
		if err := g.check(ctx); err != nil {
			return err
		}
	}
	return nil
}

func checkSaleOpen(ctx *purchaseContext) error {
	if ctx.State.Paused {
		return ErrPaused
	}
	if !ctx.State.Active {
		return ErrSaleInactive
	}
	if ctx.Breaker.Tripped {
		return ErrBreakerTripped
	}
	return nil
}

func checkBounds(ctx *purchaseContext) error {
	if ctx.Quantity == nil || ctx.Quantity.Sign() <= 0 {
		return ErrZeroQuantity
	}
	if ctx.Quantity.Cmp(ctx.Sale.MinPurchase) < 0 {
		return ErrBelowMinimum
	}
	if ctx.Quantity.Cmp(ctx.Sale.MaxPurchase) > 0 {
		return ErrAboveMaximum
	}
	if ctx.Available == nil || ctx.Quantity.Cmp(ctx.Available) > 0 {
		return ErrInsufficientInventory
	}
	return nil
}

func checkDenylist(ctx *purchaseContext) error {
	if ctx.Denied {
		return ErrDenylisted
	}
	return nil
}

func checkRateLimit(ctx *purchaseContext) error {
	return CheckRateLimit(ctx.Buyer, ctx.SlotCount, ctx.Now, ctx.Security)
}

func checkPayment(ctx *purchaseContext) error {
	required, err := QuoteToPayment(ctx.Quantity, ctx.State.Price)
	if err != nil {
		return err
	}
	ctx.Required = required
	if ctx.Payment == nil {
		return nil
	}
	if ctx.Payment.Cmp(required) < 0 {
		return ErrInsufficientPayment
	}
	return nil
}

func checkDailyQuota(ctx *purchaseContext) error {
	return CheckDailyQuota(ctx.Daily, ctx.Quantity, ctx.Sale.DailyCap, ctx.Now)
}
