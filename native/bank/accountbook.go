package bank

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// AccountBook is a minimal in-process balance ledger. The daemon runs one
// book per denomination ("asset" and "payment") and hands them to the sale
// engine as its TokenLedger and PaymentLedger collaborators. Deployments
// backed by an external chain substitute their own implementations at the
// same interface.
type AccountBook struct {
	mu       sync.RWMutex
	symbol   string
	balances map[[20]byte]*big.Int
}

// NewAccountBook constructs an empty book for the given denomination symbol.
func NewAccountBook(symbol string) *AccountBook {
	return &AccountBook{
		symbol:   strings.TrimSpace(symbol),
		balances: make(map[[20]byte]*big.Int),
	}
}

// Symbol returns the denomination the book tracks.
func (b *AccountBook) Symbol() string { return b.symbol }

// Mint credits freshly issued units to an account. Used for genesis funding
// and deposits entering from outside the book.
func (b *AccountBook) Mint(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("bank: mint amount must be positive")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(addr, amount)
	return nil
}

// BalanceOf returns the current balance of the account. Unknown accounts
// hold zero.
func (b *AccountBook) BalanceOf(addr [20]byte) (*big.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	balance, ok := b.balances[addr]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(balance), nil
}

// Transfer moves units between accounts, failing when the source balance is
// insufficient.
func (b *AccountBook) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("bank: transfer amount must be positive")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	balance, ok := b.balances[from]
	if !ok || balance.Cmp(amount) < 0 {
		return fmt.Errorf("bank: %s balance of %s insufficient", b.symbol, hex.EncodeToString(from[:]))
	}
	balance.Sub(balance, amount)
	b.credit(to, amount)
	return nil
}

func (b *AccountBook) credit(addr [20]byte, amount *big.Int) {
	balance, ok := b.balances[addr]
	if !ok {
		balance = big.NewInt(0)
		b.balances[addr] = balance
	}
	balance.Add(balance, amount)
}
