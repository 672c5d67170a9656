package sale

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"salegate/core/types"
	"salegate/crypto"
)

const (
	EventTypePurchaseCompleted  = "sale.purchase.completed"
	EventTypePurchaseMonitored  = "sale.monitor.purchase"
	EventTypeBreakerTripped     = "sale.breaker.tripped"
	EventTypeBreakerReset       = "sale.breaker.reset"
	EventTypePriceUpdated       = "sale.price.updated"
	EventTypeActiveUpdated      = "sale.active.updated"
	EventTypeInventoryDeposited = "sale.inventory.deposited"
	EventTypeDenylistUpdated    = "sale.denylist.updated"
	EventTypePauseUpdated       = "sale.pause.updated"
	EventTypeEmergencyRecovered = "sale.emergency.recovered"
)

// PurchaseCompleted is the audit event for every settled purchase.
type PurchaseCompleted struct {
	ID        [32]byte
	Buyer     [20]byte
	Quantity  *big.Int
	Paid      *big.Int
	Refund    *big.Int
	Slot      uint64
	Timestamp int64
}

func (PurchaseCompleted) EventType() string { return EventTypePurchaseCompleted }

// Event renders the canonical attribute map.
func (e PurchaseCompleted) Event() *types.Event {
	return &types.Event{
		Type: EventTypePurchaseCompleted,
		Attributes: map[string]string{
			"id":        hex.EncodeToString(e.ID[:]),
			"buyer":     crypto.FormatAddress(e.Buyer),
			"quantity":  formatAmount(e.Quantity),
			"paid":      formatAmount(e.Paid),
			"refund":    formatAmount(e.Refund),
			"slot":      strconv.FormatUint(e.Slot, 10),
			"timestamp": formatInt(e.Timestamp),
		},
	}
}

// PurchaseMonitored is the security-monitoring companion of every settled
// purchase, carrying the post-settlement guard counters.
type PurchaseMonitored struct {
	ID           [32]byte
	Buyer        [20]byte
	WindowVolume *big.Int
	DailyVolume  *big.Int
	TotalSold    *big.Int
	Timestamp    int64
}

func (PurchaseMonitored) EventType() string { return EventTypePurchaseMonitored }

func (e PurchaseMonitored) Event() *types.Event {
	return &types.Event{
		Type: EventTypePurchaseMonitored,
		Attributes: map[string]string{
			"id":           hex.EncodeToString(e.ID[:]),
			"buyer":        crypto.FormatAddress(e.Buyer),
			"windowVolume": formatAmount(e.WindowVolume),
			"dailyVolume":  formatAmount(e.DailyVolume),
			"totalSold":    formatAmount(e.TotalSold),
			"timestamp":    formatInt(e.Timestamp),
		},
	}
}

// BreakerTripped is emitted when an admission attempt flips the breaker.
type BreakerTripped struct {
	Buyer        [20]byte
	Attempted    *big.Int
	WindowVolume *big.Int
	Threshold    *big.Int
	Timestamp    int64
}

func (BreakerTripped) EventType() string { return EventTypeBreakerTripped }

func (e BreakerTripped) Event() *types.Event {
	return &types.Event{
		Type: EventTypeBreakerTripped,
		Attributes: map[string]string{
			"buyer":        crypto.FormatAddress(e.Buyer),
			"attempted":    formatAmount(e.Attempted),
			"windowVolume": formatAmount(e.WindowVolume),
			"threshold":    formatAmount(e.Threshold),
			"timestamp":    formatInt(e.Timestamp),
		},
	}
}

// BreakerReset is emitted on a privileged manual reset.
type BreakerReset struct {
	Actor     [20]byte
	Timestamp int64
}

func (BreakerReset) EventType() string { return EventTypeBreakerReset }

func (e BreakerReset) Event() *types.Event {
	return &types.Event{
		Type: EventTypeBreakerReset,
		Attributes: map[string]string{
			"actor":     crypto.FormatAddress(e.Actor),
			"timestamp": formatInt(e.Timestamp),
		},
	}
}

// PriceUpdated carries the before/after values of an operator price change.
type PriceUpdated struct {
	Actor     [20]byte
	OldPrice  *big.Int
	NewPrice  *big.Int
	Timestamp int64
}

func (PriceUpdated) EventType() string { return EventTypePriceUpdated }

func (e PriceUpdated) Event() *types.Event {
	return &types.Event{
		Type: EventTypePriceUpdated,
		Attributes: map[string]string{
			"actor":     crypto.FormatAddress(e.Actor),
			"oldPrice":  formatAmount(e.OldPrice),
			"newPrice":  formatAmount(e.NewPrice),
			"timestamp": formatInt(e.Timestamp),
		},
	}
}

// ActiveUpdated is emitted when the sale is switched on or off.
type ActiveUpdated struct {
	Actor     [20]byte
	Active    bool
	Timestamp int64
}

func (ActiveUpdated) EventType() string { return EventTypeActiveUpdated }

func (e ActiveUpdated) Event() *types.Event {
	return &types.Event{
		Type: EventTypeActiveUpdated,
		Attributes: map[string]string{
			"actor":     crypto.FormatAddress(e.Actor),
			"active":    strconv.FormatBool(e.Active),
			"timestamp": formatInt(e.Timestamp),
		},
	}
}

// InventoryDeposited is emitted when an inventory admin tops up the engine.
type InventoryDeposited struct {
	Actor     [20]byte
	Amount    *big.Int
	Timestamp int64
}

func (InventoryDeposited) EventType() string { return EventTypeInventoryDeposited }

func (e InventoryDeposited) Event() *types.Event {
	return &types.Event{
		Type: EventTypeInventoryDeposited,
		Attributes: map[string]string{
			"actor":     crypto.FormatAddress(e.Actor),
			"amount":    formatAmount(e.Amount),
			"timestamp": formatInt(e.Timestamp),
		},
	}
}

// DenylistUpdated is emitted for every denylist addition or removal.
type DenylistUpdated struct {
	Actor     [20]byte
	Target    [20]byte
	Denied    bool
	Reason    string
	Timestamp int64
}

func (DenylistUpdated) EventType() string { return EventTypeDenylistUpdated }

func (e DenylistUpdated) Event() *types.Event {
	return &types.Event{
		Type: EventTypeDenylistUpdated,
		Attributes: map[string]string{
			"actor":     crypto.FormatAddress(e.Actor),
			"target":    crypto.FormatAddress(e.Target),
			"denied":    strconv.FormatBool(e.Denied),
			"reason":    e.Reason,
			"timestamp": formatInt(e.Timestamp),
		},
	}
}

// PauseUpdated is emitted on emergency pause and unpause.
type PauseUpdated struct {
	Actor     [20]byte
	Paused    bool
	Timestamp int64
}

func (PauseUpdated) EventType() string { return EventTypePauseUpdated }

func (e PauseUpdated) Event() *types.Event {
	return &types.Event{
		Type: EventTypePauseUpdated,
		Attributes: map[string]string{
			"actor":     crypto.FormatAddress(e.Actor),
			"paused":    strconv.FormatBool(e.Paused),
			"timestamp": formatInt(e.Timestamp),
		},
	}
}

// EmergencyRecovered is emitted when stranded funds are swept.
type EmergencyRecovered struct {
	Actor     [20]byte
	Ledger    string
	Amount    *big.Int
	Timestamp int64
}

func (EmergencyRecovered) EventType() string { return EventTypeEmergencyRecovered }

func (e EmergencyRecovered) Event() *types.Event {
	return &types.Event{
		Type: EventTypeEmergencyRecovered,
		Attributes: map[string]string{
			"actor":     crypto.FormatAddress(e.Actor),
			"ledger":    e.Ledger,
			"amount":    formatAmount(e.Amount),
			"timestamp": formatInt(e.Timestamp),
		},
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
