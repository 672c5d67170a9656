package sale

import "errors"

var (
	// ErrSaleInactive indicates the operator has switched the sale off.
	ErrSaleInactive = errors.New("sale: sale not active")
	// ErrPaused indicates the emergency pause suspends the whole pipeline.
	ErrPaused = errors.New("sale: engine paused")
	// ErrBreakerTripped indicates the rolling-window circuit breaker blocks purchases.
	ErrBreakerTripped = errors.New("sale: circuit breaker tripped")
	// ErrBelowMinimum indicates the requested quantity is under the per-purchase floor.
	ErrBelowMinimum = errors.New("sale: quantity below minimum purchase")
	// ErrAboveMaximum indicates the requested quantity exceeds the per-purchase ceiling.
	ErrAboveMaximum = errors.New("sale: quantity above maximum purchase")
	// ErrInsufficientInventory indicates the live asset balance cannot cover the request.
	ErrInsufficientInventory = errors.New("sale: insufficient inventory")
	// ErrDenylisted indicates the caller identity is barred from purchasing.
	ErrDenylisted = errors.New("sale: identity denylisted")
	// ErrRateLimited indicates the caller violated the cooldown or per-slot cap.
	ErrRateLimited = errors.New("sale: rate limited")
	// ErrDailyQuotaExceeded indicates the calendar-day volume cap would be exceeded.
	ErrDailyQuotaExceeded = errors.New("sale: daily quota exceeded")
	// ErrInsufficientPayment indicates the supplied payment is below the required amount.
	ErrInsufficientPayment = errors.New("sale: insufficient payment")
	// ErrTransferFailed indicates an external asset or payment move did not complete.
	ErrTransferFailed = errors.New("sale: transfer failed")
	// ErrReentrancy indicates a call re-entered the engine while another call was live.
	ErrReentrancy = errors.New("sale: reentrant call rejected")
	// ErrUnauthorized indicates the caller lacks the required capability.
	ErrUnauthorized = errors.New("sale: caller lacks required role")
	// ErrDirectPayment indicates an unstructured payment transfer was sent to the engine.
	ErrDirectPayment = errors.New("sale: direct payment transfers rejected")

	// ErrZeroQuantity indicates a quote or purchase for zero asset units.
	ErrZeroQuantity = errors.New("sale: quantity must be positive")
	// ErrZeroPayment indicates a quote for zero payment units.
	ErrZeroPayment = errors.New("sale: payment must be positive")
	// ErrZeroPrice indicates an operation that requires a configured price.
	ErrZeroPrice = errors.New("sale: price must be positive")
	// ErrRoundsToZero indicates a conversion result that vanishes after fixed-point scaling.
	ErrRoundsToZero = errors.New("sale: amount rounds to zero")
	// ErrPriceOutOfBounds indicates a price outside the global [MinPrice, MaxPrice] range.
	ErrPriceOutOfBounds = errors.New("sale: price outside global bounds")
	// ErrPriceCooldown indicates a price update before the cooldown elapsed.
	ErrPriceCooldown = errors.New("sale: price update cooldown active")
	// ErrPriceDelta indicates a price update moving more than 10% in one step.
	ErrPriceDelta = errors.New("sale: price change exceeds allowed delta")
	// ErrDenylistAdmin indicates an attempt to denylist an administrator identity.
	ErrDenylistAdmin = errors.New("sale: cannot denylist an administrator")
	// ErrInvalidAmount indicates a nil, negative, or otherwise malformed amount.
	ErrInvalidAmount = errors.New("sale: invalid amount")
)

// RejectReason is the stable identifier handed back to callers and attached to
// audit events when a request is refused.
type RejectReason string

const (
	ReasonNone                  RejectReason = ""
	ReasonSaleInactive          RejectReason = "sale_inactive"
	ReasonPaused                RejectReason = "paused"
	ReasonBreakerTripped        RejectReason = "breaker_tripped"
	ReasonBelowMinimum          RejectReason = "below_minimum"
	ReasonAboveMaximum          RejectReason = "above_maximum"
	ReasonInsufficientInventory RejectReason = "insufficient_inventory"
	ReasonDenylisted            RejectReason = "denylisted"
	ReasonRateLimited           RejectReason = "rate_limited"
	ReasonDailyQuotaExceeded    RejectReason = "daily_quota_exceeded"
	ReasonInsufficientPayment   RejectReason = "insufficient_payment"
	ReasonTransferFailed        RejectReason = "transfer_failed"
)

var reasonByErr = []struct {
	err    error
	reason RejectReason
}{
	{ErrSaleInactive, ReasonSaleInactive},
	{ErrPaused, ReasonPaused},
	{ErrBreakerTripped, ReasonBreakerTripped},
	{ErrBelowMinimum, ReasonBelowMinimum},
	{ErrAboveMaximum, ReasonAboveMaximum},
	{ErrInsufficientInventory, ReasonInsufficientInventory},
	{ErrDenylisted, ReasonDenylisted},
	{ErrRateLimited, ReasonRateLimited},
	{ErrDailyQuotaExceeded, ReasonDailyQuotaExceeded},
	{ErrInsufficientPayment, ReasonInsufficientPayment},
	{ErrTransferFailed, ReasonTransferFailed},
}

// Reason maps a pipeline error to its stable rejection identifier. Errors that
// are not admission rejections map to ReasonNone.
func Reason(err error) RejectReason {
	if err == nil {
		return ReasonNone
	}
	for _, entry := range reasonByErr {
		if errors.Is(err, entry.err) {
			return entry.reason
		}
	}
	return ReasonNone
}
