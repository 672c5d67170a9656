package sale

import (
	"fmt"
	"math/big"
	"strings"
)

// Storage abstracts the subset of key-value functionality required by the
// sale ledger. storage.KVStore is the production implementation.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// SaleState is the mutable slice of the sale configuration: the live price,
// the activation flag, the emergency pause flag, and the price-change clock.
type SaleState struct {
	Price           *big.Int
	Active          bool
	Paused          bool
	LastPriceUpdate int64
}

// Copy returns a deep copy of the state.
func (s SaleState) Copy() SaleState {
	clone := s
	if s.Price != nil {
		clone.Price = new(big.Int).Set(s.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return clone
}

type storedSaleState struct {
	Price           string
	Active          bool
	Paused          bool
	LastPriceUpdate uint64
}

type storedAmount struct {
	Amount string
}

type storedBuyerRecord struct {
	LastPurchaseTime uint64
	LastPurchaseSlot uint64
	Purchased        string
	Spent            string
}

type storedBreaker struct {
	WindowVolume string
	WindowStart  uint64
	Tripped      bool
	TrippedAt    uint64
}

type storedDaily struct {
	Day    uint64
	Volume string
}

type storedDenylistEntry struct {
	Denied    bool
	Reason    string
	UpdatedAt uint64
}

type storedSlotCount struct {
	Count uint64
}

// Ledger persists the engine's aggregate counters, per-identity records,
// guard state and denylist in the underlying key-value store.
type Ledger struct {
	store Storage
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

// SaleState loads the mutable sale state. The boolean reports whether any
// state has been persisted yet.
func (l *Ledger) SaleState() (SaleState, bool, error) {
	if l == nil || l.store == nil {
		return SaleState{}, false, fmt.Errorf("ledger not initialised")
	}
	var stored storedSaleState
	ok, err := l.store.KVGet(stateKeyBytes, &stored)
	if err != nil || !ok {
		return SaleState{}, false, err
	}
	price, err := parseStoredAmount(stored.Price)
	if err != nil {
		return SaleState{}, false, fmt.Errorf("ledger: sale state price: %w", err)
	}
	return SaleState{
		Price:           price,
		Active:          stored.Active,
		Paused:          stored.Paused,
		LastPriceUpdate: int64(stored.LastPriceUpdate),
	}, true, nil
}

// PutSaleState persists the mutable sale state.
func (l *Ledger) PutSaleState(state SaleState) error {
	stored := storedSaleState{
		Price:  amountToString(state.Price),
		Active: state.Active,
		Paused: state.Paused,
	}
	if state.LastPriceUpdate > 0 {
		stored.LastPriceUpdate = uint64(state.LastPriceUpdate)
	}
	return l.store.KVPut(stateKeyBytes, stored)
}

// TotalSold returns the aggregate sold volume in asset smallest units.
func (l *Ledger) TotalSold() (*big.Int, error) {
	var stored storedAmount
	ok, err := l.store.KVGet(totalSoldKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return parseStoredAmount(stored.Amount)
}

// PutTotalSold persists the aggregate sold volume.
func (l *Ledger) PutTotalSold(total *big.Int) error {
	return l.store.KVPut(totalSoldKey, storedAmount{Amount: amountToString(total)})
}

// Buyer loads the per-identity record, returning an empty record when the
// identity has never purchased.
func (l *Ledger) Buyer(addr [20]byte) (IdentityRecord, error) {
	var stored storedBuyerRecord
	ok, err := l.store.KVGet(buyerKey(addr), &stored)
	if err != nil {
		return IdentityRecord{}, err
	}
	record := IdentityRecord{Purchased: big.NewInt(0), Spent: big.NewInt(0)}
	if !ok {
		return record, nil
	}
	record.LastPurchaseTime = int64(stored.LastPurchaseTime)
	record.LastPurchaseSlot = stored.LastPurchaseSlot
	if record.Purchased, err = parseStoredAmount(stored.Purchased); err != nil {
		return IdentityRecord{}, fmt.Errorf("ledger: buyer purchased: %w", err)
	}
	if record.Spent, err = parseStoredAmount(stored.Spent); err != nil {
		return IdentityRecord{}, fmt.Errorf("ledger: buyer spent: %w", err)
	}
	return record, nil
}

// PutBuyer persists the per-identity record.
func (l *Ledger) PutBuyer(addr [20]byte, record IdentityRecord) error {
	stored := storedBuyerRecord{
		LastPurchaseSlot: record.LastPurchaseSlot,
		Purchased:        amountToString(record.Purchased),
		Spent:            amountToString(record.Spent),
	}
	if record.LastPurchaseTime > 0 {
		stored.LastPurchaseTime = uint64(record.LastPurchaseTime)
	}
	return l.store.KVPut(buyerKey(addr), stored)
}

// Breaker loads the circuit-breaker state. The boolean reports whether a
// state record exists yet.
func (l *Ledger) Breaker() (BreakerState, bool, error) {
	var stored storedBreaker
	ok, err := l.store.KVGet(breakerKeyBytes, &stored)
	if err != nil || !ok {
		return BreakerState{}, false, err
	}
	volume, err := parseStoredAmount(stored.WindowVolume)
	if err != nil {
		return BreakerState{}, false, fmt.Errorf("ledger: breaker volume: %w", err)
	}
	return BreakerState{
		WindowVolume: volume,
		WindowStart:  int64(stored.WindowStart),
		Tripped:      stored.Tripped,
		TrippedAt:    int64(stored.TrippedAt),
	}, true, nil
}

// PutBreaker persists the circuit-breaker state.
func (l *Ledger) PutBreaker(state BreakerState) error {
	stored := storedBreaker{
		WindowVolume: amountToString(state.WindowVolume),
		Tripped:      state.Tripped,
	}
	if state.WindowStart > 0 {
		stored.WindowStart = uint64(state.WindowStart)
	}
	if state.TrippedAt > 0 {
		stored.TrippedAt = uint64(state.TrippedAt)
	}
	return l.store.KVPut(breakerKeyBytes, stored)
}

// Daily loads the calendar-day volume record.
func (l *Ledger) Daily() (DailySales, error) {
	var stored storedDaily
	ok, err := l.store.KVGet(dailyKeyBytes, &stored)
	if err != nil {
		return DailySales{}, err
	}
	if !ok {
		return DailySales{Volume: big.NewInt(0)}, nil
	}
	volume, err := parseStoredAmount(stored.Volume)
	if err != nil {
		return DailySales{}, fmt.Errorf("ledger: daily volume: %w", err)
	}
	return DailySales{Day: stored.Day, Volume: volume}, nil
}

// PutDaily persists the calendar-day volume record.
func (l *Ledger) PutDaily(state DailySales) error {
	return l.store.KVPut(dailyKeyBytes, storedDaily{Day: state.Day, Volume: amountToString(state.Volume)})
}

// Denylisted reports whether the identity is barred and, when it is, the
// operator-supplied reason.
func (l *Ledger) Denylisted(addr [20]byte) (bool, string, error) {
	var stored storedDenylistEntry
	ok, err := l.store.KVGet(denylistKey(addr), &stored)
	if err != nil || !ok {
		return false, "", err
	}
	return stored.Denied, stored.Reason, nil
}

// SetDenylisted flips the denylist entry for the identity. Entries are never
// deleted; removal flips the flag to false.
func (l *Ledger) SetDenylisted(addr [20]byte, denied bool, reason string, now int64) error {
	stored := storedDenylistEntry{Denied: denied, Reason: strings.TrimSpace(reason)}
	if now > 0 {
		stored.UpdatedAt = uint64(now)
	}
	return l.store.KVPut(denylistKey(addr), stored)
}

// SlotCount returns the number of purchases settled in the execution slot.
func (l *Ledger) SlotCount(slot uint64) (uint64, error) {
	var stored storedSlotCount
	ok, err := l.store.KVGet(slotKey(slot), &stored)
	if err != nil || !ok {
		return 0, err
	}
	return stored.Count, nil
}

// PutSlotCount persists the per-slot purchase counter.
func (l *Ledger) PutSlotCount(slot uint64, count uint64) error {
	return l.store.KVPut(slotKey(slot), storedSlotCount{Count: count})
}

func parseStoredAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid stored amount %q", value)
	}
	return amount, nil
}

func amountToString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
