package sale

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"salegate/core/events"
	"salegate/native/common"
)

// Capability names checked through the RoleChecker. Each privileged surface
// requires its own capability so price control, pausing, fund sweeps, and
// breaker resets can be held by different identities.
const (
	RoleSaleAdmin      = "ROLE_SALE_ADMIN"
	RoleOperations     = "ROLE_SALE_OPERATIONS"
	RoleInventoryAdmin = "ROLE_INVENTORY_ADMIN"
	RolePauser         = "ROLE_PAUSER"
	RoleEmergency      = "ROLE_EMERGENCY"
)

// TokenLedger is the external asset ledger: the engine only needs balance
// reads and transfers.
type TokenLedger interface {
	BalanceOf(addr [20]byte) (*big.Int, error)
	Transfer(from, to [20]byte, amount *big.Int) error
}

// PaymentLedger is the external payment ledger. Identical shape to
// TokenLedger; a distinct type keeps the two wires impossible to cross.
type PaymentLedger interface {
	BalanceOf(addr [20]byte) (*big.Int, error)
	Transfer(from, to [20]byte, amount *big.Int) error
}

// RoleChecker is the external capability service: does identity X hold
// role R?
type RoleChecker interface {
	HasRole(role string, addr []byte) bool
}

// RecoverTarget selects which ledger an emergency sweep drains.
type RecoverTarget string

const (
	RecoverAsset   RecoverTarget = "asset"
	RecoverPayment RecoverTarget = "payment"
)

// Receipt summarises a settled purchase for the caller.
type Receipt struct {
	ID        [32]byte
	Quantity  *big.Int
	Paid      *big.Int
	Refund    *big.Int
	Slot      uint64
	Timestamp int64
}

// Stats is the read-only aggregate snapshot of the sale.
type Stats struct {
	Price          *big.Int
	Active         bool
	Paused         bool
	TotalSold      *big.Int
	Available      *big.Int
	WindowVolume   *big.Int
	WindowStart    int64
	BreakerTripped bool
	DailyVolume    *big.Int
	DailyDay       uint64
}

// IdentityStats is the read-only per-buyer snapshot.
type IdentityStats struct {
	LastPurchaseTime int64
	LastPurchaseSlot uint64
	Purchased        *big.Int
	Spent            *big.Int
	Denylisted       bool
	DenyReason       string
}

// Engine is the guarded exchange engine. All mutable state lives behind its
// ledger; every entry point runs under a guard that serializes concurrent
// callers and rejects a reentrant invocation from an interaction callback
// outright.
type Engine struct {
	guard    common.CallGuard
	ledger   *Ledger
	token    TokenLedger
	payments PaymentLedger
	roles    RoleChecker
	emitter  events.Emitter

	engineAddr [20]byte
	sale       SaleParams
	security   SecurityParams

	nowFn  func() int64
	slotFn func() uint64
}

// NewEngine wires the engine against its external collaborators and persists
// the initial sale state when none exists yet. The sale starts inactive; the
// operator switches it on explicitly.
func NewEngine(ledger *Ledger, token TokenLedger, payments PaymentLedger, roles RoleChecker, engineAddr [20]byte, saleParams SaleParams, securityParams SecurityParams) (*Engine, error) {
	if ledger == nil {
		return nil, fmt.Errorf("sale engine: ledger required")
	}
	if token == nil {
		return nil, fmt.Errorf("sale engine: token ledger required")
	}
	if payments == nil {
		return nil, fmt.Errorf("sale engine: payment ledger required")
	}
	if roles == nil {
		return nil, fmt.Errorf("sale engine: role checker required")
	}
	var zero [20]byte
	if engineAddr == zero {
		return nil, fmt.Errorf("sale engine: engine address must not be zero")
	}
	if saleParams.Price == nil || saleParams.Price.Cmp(MinPrice) < 0 || saleParams.Price.Cmp(MaxPrice) > 0 {
		return nil, fmt.Errorf("sale engine: %w", ErrPriceOutOfBounds)
	}
	if saleParams.MinPurchase == nil || saleParams.MaxPurchase == nil || saleParams.MinPurchase.Sign() <= 0 || saleParams.MinPurchase.Cmp(saleParams.MaxPurchase) > 0 {
		return nil, fmt.Errorf("sale engine: purchase bounds inconsistent")
	}
	if saleParams.Treasury == zero {
		return nil, fmt.Errorf("sale engine: treasury must not be zero")
	}
	if saleParams.Admin == zero {
		return nil, fmt.Errorf("sale engine: admin must not be zero")
	}
	e := &Engine{
		ledger:     ledger,
		token:      token,
		payments:   payments,
		roles:      roles,
		emitter:    events.NoopEmitter{},
		engineAddr: engineAddr,
		sale:       saleParams,
		security:   securityParams,
		nowFn:      func() int64 { return time.Now().Unix() },
		slotFn:     func() uint64 { return 0 },
	}
	if _, found, err := ledger.SaleState(); err != nil {
		return nil, err
	} else if !found {
		initial := SaleState{Price: new(big.Int).Set(saleParams.Price)}
		if err := ledger.PutSaleState(initial); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// SetEmitter configures the audit event sink. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the engine clock for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetSlotFunc overrides the execution-slot source. The slot is the smallest
// unit of serialized execution ordering; the rate limiter caps purchases per
// slot.
func (e *Engine) SetSlotFunc(slot func() uint64) {
	if slot == nil {
		e.slotFn = func() uint64 { return 0 }
		return
	}
	e.slotFn = slot
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) enter() error {
	if err := e.guard.Enter(); err != nil {
		return ErrReentrancy
	}
	return nil
}

func (e *Engine) requireRole(addr [20]byte, role string) error {
	if e.roles.HasRole(role, addr[:]) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnauthorized, role)
}

// stateSnapshot captures the stored values a purchase mutates so a failed
// interaction can roll every effect back.
type stateSnapshot struct {
	totalSold *big.Int
	buyer     IdentityRecord
	buyerAddr [20]byte
	slot      uint64
	slotCount uint64
	daily     DailySales
	breaker   BreakerState
}

// Purchase runs the full admission pipeline and, when every guard passes,
// settles atomically: effects are written first, then the asset moves to the
// buyer, the exact required payment is forwarded to the treasury, and any
// surplus is refunded. A failed interaction rolls all effects back.
func (e *Engine) Purchase(caller [20]byte, quantity, payment *big.Int) (*Receipt, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.guard.Exit()
	if payment == nil || payment.Sign() <= 0 {
		return nil, fmt.Errorf("%w: payment", ErrInvalidAmount)
	}
	now := e.nowFn()
	slot := e.slotFn()
	ctx, err := e.buildContext(caller, quantity, payment, now, slot)
	if err != nil {
		return nil, err
	}
	if err := evaluateGuards(ctx); err != nil {
		return nil, err
	}
	priorBreaker := ctx.Breaker.Copy()
	// The breaker admission runs after every other guard because it is the
	// only precondition with a side effect: a trip must stick even though
	// the triggering purchase is rejected.
	if e.security.BreakerEnabled {
		next, admitErr := AdmitBreaker(ctx.Breaker, quantity, e.security.BreakerThreshold, now)
		if admitErr != nil {
			if errors.Is(admitErr, ErrBreakerTripped) {
				if perr := e.ledger.PutBreaker(next); perr != nil {
					return nil, perr
				}
				e.emit(BreakerTripped{
					Buyer:        caller,
					Attempted:    new(big.Int).Set(quantity),
					WindowVolume: next.WindowVolume,
					Threshold:    new(big.Int).Set(e.security.BreakerThreshold),
					Timestamp:    now,
				})
			}
			return nil, admitErr
		}
		ctx.Breaker = next
	}
	required := ctx.Required
	refund := new(big.Int).Sub(payment, required)

	totalSold, err := e.ledger.TotalSold()
	if err != nil {
		return nil, err
	}
	snap := stateSnapshot{
		totalSold: totalSold,
		buyer:     ctx.Buyer.Copy(),
		buyerAddr: caller,
		slot:      slot,
		slotCount: ctx.SlotCount,
		daily:     ctx.Daily.Copy(),
		breaker:   priorBreaker,
	}

	newTotal := new(big.Int).Add(totalSold, quantity)
	newBuyer := RecordPurchase(ctx.Buyer, quantity, required, now, slot)
	newDaily := ApplyDailyVolume(ctx.Daily, quantity, now)
	if err := e.applyEffects(newTotal, caller, newBuyer, slot, ctx.SlotCount+1, newDaily, ctx.Breaker); err != nil {
		return nil, err
	}

	id := purchaseID(caller, quantity, now, slot)
	if err := e.settle(caller, quantity, payment, required, refund); err != nil {
		if rerr := e.rollback(snap); rerr != nil {
			return nil, errors.Join(fmt.Errorf("%w: %v", ErrTransferFailed, err), rerr)
		}
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	e.emit(PurchaseCompleted{
		ID:        id,
		Buyer:     caller,
		Quantity:  new(big.Int).Set(quantity),
		Paid:      new(big.Int).Set(required),
		Refund:    refund,
		Slot:      slot,
		Timestamp: now,
	})
	e.emit(PurchaseMonitored{
		ID:           id,
		Buyer:        caller,
		WindowVolume: ctx.Breaker.WindowVolume,
		DailyVolume:  newDaily.Volume,
		TotalSold:    newTotal,
		Timestamp:    now,
	})
	return &Receipt{
		ID:        id,
		Quantity:  new(big.Int).Set(quantity),
		Paid:      new(big.Int).Set(required),
		Refund:    new(big.Int).Set(refund),
		Slot:      slot,
		Timestamp: now,
	}, nil
}

func (e *Engine) buildContext(caller [20]byte, quantity, payment *big.Int, now int64, slot uint64) (*purchaseContext, error) {
	state, found, err := e.ledger.SaleState()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("sale engine: state not initialised")
	}
	available, err := e.token.BalanceOf(e.engineAddr)
	if err != nil {
		return nil, fmt.Errorf("sale engine: inventory balance: %w", err)
	}
	breaker, breakerFound, err := e.ledger.Breaker()
	if err != nil {
		return nil, err
	}
	if !breakerFound {
		breaker = NewBreakerState(now)
	}
	if e.security.BreakerEnabled {
		breaker = AdvanceBreaker(breaker, now, e.security.BreakerWindow)
	}
	daily, err := e.ledger.Daily()
	if err != nil {
		return nil, err
	}
	buyer, err := e.ledger.Buyer(caller)
	if err != nil {
		return nil, err
	}
	slotCount, err := e.ledger.SlotCount(slot)
	if err != nil {
		return nil, err
	}
	denied, _, err := e.ledger.Denylisted(caller)
	if err != nil {
		return nil, err
	}
	ctx := &purchaseContext{
		Caller:    caller,
		Quantity:  quantity,
		Payment:   payment,
		Now:       now,
		Slot:      slot,
		State:     state,
		Available: available,
		Breaker:   breaker,
		Daily:     daily,
		Buyer:     buyer,
		SlotCount: slotCount,
		Denied:    denied,
		Sale:      e.sale,
		Security:  e.security,
	}
	return ctx, nil
}

// applyEffects durably writes every ledger mutation before any external
// interaction runs.
func (e *Engine) applyEffects(total *big.Int, buyerAddr [20]byte, buyer IdentityRecord, slot, slotCount uint64, daily DailySales, breaker BreakerState) error {
	if err := e.ledger.PutTotalSold(total); err != nil {
		return err
	}
	if err := e.ledger.PutBuyer(buyerAddr, buyer); err != nil {
		return err
	}
	if err := e.ledger.PutSlotCount(slot, slotCount); err != nil {
		return err
	}
	if err := e.ledger.PutDaily(daily); err != nil {
		return err
	}
	if e.security.BreakerEnabled {
		if err := e.ledger.PutBreaker(breaker); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) rollback(snap stateSnapshot) error {
	var errs []error
	if err := e.ledger.PutTotalSold(snap.totalSold); err != nil {
		errs = append(errs, err)
	}
	if err := e.ledger.PutBuyer(snap.buyerAddr, snap.buyer); err != nil {
		errs = append(errs, err)
	}
	if err := e.ledger.PutSlotCount(snap.slot, snap.slotCount); err != nil {
		errs = append(errs, err)
	}
	if err := e.ledger.PutDaily(snap.daily); err != nil {
		errs = append(errs, err)
	}
	if e.security.BreakerEnabled {
		if err := e.ledger.PutBreaker(snap.breaker); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// settle performs the interaction sequence. Completed transfers are reversed
// in order when a later one fails so no value is stranded mid-settlement.
func (e *Engine) settle(buyer [20]byte, quantity, payment, required, refund *big.Int) error {
	type move struct {
		transfer func(from, to [20]byte, amount *big.Int) error
		from, to [20]byte
		amount   *big.Int
	}
	moves := []move{
		{e.payments.Transfer, buyer, e.engineAddr, payment},
		{e.token.Transfer, e.engineAddr, buyer, quantity},
		{e.payments.Transfer, e.engineAddr, e.sale.Treasury, required},
	}
	if refund.Sign() > 0 {
		moves = append(moves, move{e.payments.Transfer, e.engineAddr, buyer, refund})
	}
	for i, m := range moves {
		if err := m.transfer(m.from, m.to, m.amount); err != nil {
			for j := i - 1; j >= 0; j-- {
				done := moves[j]
				// Best effort: the forward transfer succeeded moments
				// ago, so the reversal is expected to succeed too.
				_ = done.transfer(done.to, done.from, done.amount)
			}
			return err
		}
	}
	return nil
}

func purchaseID(caller [20]byte, quantity *big.Int, now int64, slot uint64) [32]byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, caller[:]...)
	buf = append(buf, quantity.Bytes()...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(now))
	buf = append(buf, ts[:]...)
	var sl [8]byte
	binary.BigEndian.PutUint64(sl[:], slot)
	buf = append(buf, sl[:]...)
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256(buf))
	return id
}

// CanPurchase reports whether a purchase of the given quantity would be
// admitted right now, reproducing the live pipeline's ordering and reasons
// without mutating anything. Payment sufficiency is not evaluated because no
// payment accompanies the probe.
func (e *Engine) CanPurchase(caller [20]byte, quantity *big.Int) (bool, RejectReason, error) {
	if err := e.enter(); err != nil {
		return false, ReasonNone, err
	}
	defer e.guard.Exit()
	now := e.nowFn()
	slot := e.slotFn()
	ctx, err := e.buildContext(caller, quantity, nil, now, slot)
	if err != nil {
		return false, ReasonNone, err
	}
	if err := evaluateGuards(ctx); err != nil {
		if reason := Reason(err); reason != ReasonNone {
			return false, reason, nil
		}
		return false, ReasonNone, err
	}
	if e.security.BreakerEnabled {
		if _, err := AdmitBreaker(ctx.Breaker, quantity, e.security.BreakerThreshold, now); err != nil {
			return false, Reason(err), nil
		}
	}
	return true, ReasonNone, nil
}

// QuotePayment returns the payment required for the quantity at the live
// price.
func (e *Engine) QuotePayment(quantity *big.Int) (*big.Int, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.guard.Exit()
	state, _, err := e.ledger.SaleState()
	if err != nil {
		return nil, err
	}
	return QuoteToPayment(quantity, state.Price)
}

// QuoteQuantity returns the quantity the payment buys at the live price.
func (e *Engine) QuoteQuantity(payment *big.Int) (*big.Int, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.guard.Exit()
	state, _, err := e.ledger.SaleState()
	if err != nil {
		return nil, err
	}
	return QuoteToQuantity(payment, state.Price)
}

// AvailableInventory returns the live asset balance held by the engine.
func (e *Engine) AvailableInventory() (*big.Int, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.guard.Exit()
	return e.token.BalanceOf(e.engineAddr)
}

// SaleStats returns the aggregate diagnostics snapshot.
func (e *Engine) SaleStats() (*Stats, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.guard.Exit()
	state, _, err := e.ledger.SaleState()
	if err != nil {
		return nil, err
	}
	total, err := e.ledger.TotalSold()
	if err != nil {
		return nil, err
	}
	available, err := e.token.BalanceOf(e.engineAddr)
	if err != nil {
		return nil, err
	}
	breaker, found, err := e.ledger.Breaker()
	if err != nil {
		return nil, err
	}
	if !found {
		breaker = NewBreakerState(e.nowFn())
	}
	// Report the window the admission path would see: an elapsed window
	// clears a stale trip even though the stored record is updated lazily.
	breaker = AdvanceBreaker(breaker, e.nowFn(), e.security.BreakerWindow)
	daily, err := e.ledger.Daily()
	if err != nil {
		return nil, err
	}
	return &Stats{
		Price:          state.Price,
		Active:         state.Active,
		Paused:         state.Paused,
		TotalSold:      total,
		Available:      available,
		WindowVolume:   breaker.WindowVolume,
		WindowStart:    breaker.WindowStart,
		BreakerTripped: breaker.Tripped,
		DailyVolume:    daily.Volume,
		DailyDay:       daily.Day,
	}, nil
}

// IdentityStats returns the per-buyer diagnostics snapshot.
func (e *Engine) IdentityStats(addr [20]byte) (*IdentityStats, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.guard.Exit()
	record, err := e.ledger.Buyer(addr)
	if err != nil {
		return nil, err
	}
	denied, reason, err := e.ledger.Denylisted(addr)
	if err != nil {
		return nil, err
	}
	return &IdentityStats{
		LastPurchaseTime: record.LastPurchaseTime,
		LastPurchaseSlot: record.LastPurchaseSlot,
		Purchased:        record.Purchased,
		Spent:            record.Spent,
		Denylisted:       denied,
		DenyReason:       reason,
	}, nil
}

// ReceiveDirectPayment rejects unstructured payment transfers into the
// engine. Purchases are the only way to move payment in.
func (e *Engine) ReceiveDirectPayment(from [20]byte, amount *big.Int) error {
	return ErrDirectPayment
}

// UpdatePrice applies an operator price change under the cooldown and
// bounded-delta rules. Invalid updates fail; nothing is clamped.
func (e *Engine) UpdatePrice(caller [20]byte, newPrice *big.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.guard.Exit()
	if err := e.requireRole(caller, RoleOperations); err != nil {
		return err
	}
	if newPrice == nil || newPrice.Sign() <= 0 {
		return ErrZeroPrice
	}
	if newPrice.Cmp(MinPrice) < 0 || newPrice.Cmp(MaxPrice) > 0 {
		return ErrPriceOutOfBounds
	}
	state, _, err := e.ledger.SaleState()
	if err != nil {
		return err
	}
	now := e.nowFn()
	if state.LastPriceUpdate > 0 && e.sale.PriceCooldown > 0 && now < state.LastPriceUpdate+int64(e.sale.PriceCooldown) {
		return ErrPriceCooldown
	}
	oldPrice := new(big.Int).Set(state.Price)
	if oldPrice.Sign() > 0 {
		maxDelta := new(big.Int).Quo(oldPrice, big.NewInt(10))
		delta := new(big.Int).Sub(newPrice, oldPrice)
		if delta.Sign() < 0 {
			delta.Neg(delta)
		}
		if delta.Cmp(maxDelta) > 0 {
			return ErrPriceDelta
		}
	}
	state.Price = new(big.Int).Set(newPrice)
	state.LastPriceUpdate = now
	if err := e.ledger.PutSaleState(state); err != nil {
		return err
	}
	e.emit(PriceUpdated{Actor: caller, OldPrice: oldPrice, NewPrice: new(big.Int).Set(newPrice), Timestamp: now})
	return nil
}

// SetActive toggles the sale on or off.
func (e *Engine) SetActive(caller [20]byte, active bool) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.guard.Exit()
	if err := e.requireRole(caller, RoleOperations); err != nil {
		return err
	}
	state, _, err := e.ledger.SaleState()
	if err != nil {
		return err
	}
	state.Active = active
	if err := e.ledger.PutSaleState(state); err != nil {
		return err
	}
	e.emit(ActiveUpdated{Actor: caller, Active: active, Timestamp: e.nowFn()})
	return nil
}

// DepositInventory moves asset units from the caller into the engine's
// sellable balance.
func (e *Engine) DepositInventory(caller [20]byte, amount *big.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.guard.Exit()
	if err := e.requireRole(caller, RoleInventoryAdmin); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: deposit amount", ErrInvalidAmount)
	}
	if err := e.token.Transfer(caller, e.engineAddr, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	e.emit(InventoryDeposited{Actor: caller, Amount: new(big.Int).Set(amount), Timestamp: e.nowFn()})
	return nil
}

// DenylistAdd bars an identity from purchasing. Identities holding the
// administrator capability cannot be denylisted.
func (e *Engine) DenylistAdd(caller, target [20]byte, reason string) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.guard.Exit()
	if err := e.requireRole(caller, RoleInventoryAdmin); err != nil {
		return err
	}
	if e.roles.HasRole(RoleSaleAdmin, target[:]) {
		return ErrDenylistAdmin
	}
	now := e.nowFn()
	if err := e.ledger.SetDenylisted(target, true, reason, now); err != nil {
		return err
	}
	e.emit(DenylistUpdated{Actor: caller, Target: target, Denied: true, Reason: reason, Timestamp: now})
	return nil
}

// DenylistRemove lifts the bar on an identity. The entry is flipped, not
// deleted.
func (e *Engine) DenylistRemove(caller, target [20]byte) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.guard.Exit()
	if err := e.requireRole(caller, RoleInventoryAdmin); err != nil {
		return err
	}
	now := e.nowFn()
	if err := e.ledger.SetDenylisted(target, false, "", now); err != nil {
		return err
	}
	e.emit(DenylistUpdated{Actor: caller, Target: target, Denied: false, Timestamp: now})
	return nil
}

// Pause suspends the whole purchase pipeline. Breaker and quota state are
// left untouched.
func (e *Engine) Pause(caller [20]byte) error {
	return e.setPaused(caller, RolePauser, true)
}

// Unpause lifts the emergency pause.
func (e *Engine) Unpause(caller [20]byte) error {
	return e.setPaused(caller, RoleInventoryAdmin, false)
}

func (e *Engine) setPaused(caller [20]byte, role string, paused bool) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.guard.Exit()
	if err := e.requireRole(caller, role); err != nil {
		return err
	}
	state, _, err := e.ledger.SaleState()
	if err != nil {
		return err
	}
	state.Paused = paused
	if err := e.ledger.PutSaleState(state); err != nil {
		return err
	}
	e.emit(PauseUpdated{Actor: caller, Paused: paused, Timestamp: e.nowFn()})
	return nil
}

// EmergencyRecover sweeps a stranded asset or payment balance from the
// engine to the caller.
func (e *Engine) EmergencyRecover(caller [20]byte, target RecoverTarget, amount *big.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.guard.Exit()
	if err := e.requireRole(caller, RoleEmergency); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: recover amount", ErrInvalidAmount)
	}
	var transfer func(from, to [20]byte, amount *big.Int) error
	switch target {
	case RecoverAsset:
		transfer = e.token.Transfer
	case RecoverPayment:
		transfer = e.payments.Transfer
	default:
		return fmt.Errorf("sale engine: unknown recover target %q", target)
	}
	if err := transfer(e.engineAddr, caller, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	e.emit(EmergencyRecovered{Actor: caller, Ledger: string(target), Amount: new(big.Int).Set(amount), Timestamp: e.nowFn()})
	return nil
}

// ResetBreaker clears a trip, zeroes the window volume and restarts the
// window. Allowed in every breaker state.
func (e *Engine) ResetBreaker(caller [20]byte) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.guard.Exit()
	if err := e.requireRole(caller, RoleEmergency); err != nil {
		return err
	}
	now := e.nowFn()
	if err := e.ledger.PutBreaker(NewBreakerState(now)); err != nil {
		return err
	}
	e.emit(BreakerReset{Actor: caller, Timestamp: now})
	return nil
}
