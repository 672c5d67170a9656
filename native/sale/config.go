package sale

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"salegate/crypto"
)

// PriceScale is the fixed-point base: prices are expressed in payment units
// per whole asset unit, where one whole asset unit is PriceScale smallest
// units.
var PriceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Global price bounds. Operator price updates outside this range are rejected
// outright rather than clamped.
var (
	MinPrice = big.NewInt(1_000_000_000)                             // 1e9
	MaxPrice = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil) // 1e24
)

// SaleConfig captures operator-defined sale parameters parsed from
// configuration. Amounts are textual so TOML files can use scientific
// notation for large integers.
type SaleConfig struct {
	Price                string `toml:"Price"`
	MinPurchase          string `toml:"MinPurchase"`
	MaxPurchase          string `toml:"MaxPurchase"`
	DailyCap             string `toml:"DailyCap"`
	PriceCooldownSeconds int64  `toml:"PriceCooldownSeconds"`
	Treasury             string `toml:"Treasury"`
	Admin                string `toml:"Admin"`
}

// SecurityConfig captures the guard tunables for the purchase pipeline.
type SecurityConfig struct {
	RateLimitEnabled     bool   `toml:"RateLimitEnabled"`
	MinIntervalSeconds   int64  `toml:"MinIntervalSeconds"`
	MaxPurchasesPerSlot  uint64 `toml:"MaxPurchasesPerSlot"`
	BreakerEnabled       bool   `toml:"BreakerEnabled"`
	BreakerThreshold     string `toml:"BreakerThreshold"`
	BreakerWindowSeconds int64  `toml:"BreakerWindowSeconds"`
}

// SaleParams is the runtime-ready interpretation of SaleConfig.
type SaleParams struct {
	Price         *big.Int
	MinPurchase   *big.Int
	MaxPurchase   *big.Int
	DailyCap      *big.Int
	PriceCooldown uint64
	Treasury      [20]byte
	Admin         [20]byte
}

// SecurityParams is the runtime-ready interpretation of SecurityConfig.
type SecurityParams struct {
	RateLimitEnabled bool
	MinInterval      uint64
	MaxPerSlot       uint64
	BreakerEnabled   bool
	BreakerThreshold *big.Int
	BreakerWindow    uint64
}

// Normalise trims whitespace on a defensive copy.
func (sc SaleConfig) Normalise() SaleConfig {
	return SaleConfig{
		Price:                strings.TrimSpace(sc.Price),
		MinPurchase:          strings.TrimSpace(sc.MinPurchase),
		MaxPurchase:          strings.TrimSpace(sc.MaxPurchase),
		DailyCap:             strings.TrimSpace(sc.DailyCap),
		PriceCooldownSeconds: sc.PriceCooldownSeconds,
		Treasury:             strings.TrimSpace(sc.Treasury),
		Admin:                strings.TrimSpace(sc.Admin),
	}
}

// Parameters converts the textual configuration into validated runtime values.
func (sc SaleConfig) Parameters() (SaleParams, error) {
	normalized := sc.Normalise()
	params := SaleParams{}
	price, err := ParseAmount(normalized.Price)
	if err != nil {
		return params, fmt.Errorf("sale config: invalid Price: %w", err)
	}
	if price.Cmp(MinPrice) < 0 || price.Cmp(MaxPrice) > 0 {
		return params, fmt.Errorf("sale config: %w: %s", ErrPriceOutOfBounds, price)
	}
	params.Price = price
	if params.MinPurchase, err = ParseAmount(normalized.MinPurchase); err != nil {
		return params, fmt.Errorf("sale config: invalid MinPurchase: %w", err)
	}
	if params.MaxPurchase, err = ParseAmount(normalized.MaxPurchase); err != nil {
		return params, fmt.Errorf("sale config: invalid MaxPurchase: %w", err)
	}
	if params.MinPurchase.Sign() <= 0 {
		return params, fmt.Errorf("sale config: MinPurchase must be positive")
	}
	if params.MinPurchase.Cmp(params.MaxPurchase) > 0 {
		return params, fmt.Errorf("sale config: MinPurchase exceeds MaxPurchase")
	}
	if params.DailyCap, err = ParseAmount(normalized.DailyCap); err != nil {
		return params, fmt.Errorf("sale config: invalid DailyCap: %w", err)
	}
	if params.DailyCap.Sign() <= 0 {
		return params, fmt.Errorf("sale config: DailyCap must be positive")
	}
	if normalized.PriceCooldownSeconds < 0 {
		return params, fmt.Errorf("sale config: PriceCooldownSeconds must not be negative")
	}
	params.PriceCooldown = uint64(normalized.PriceCooldownSeconds)
	if params.Treasury, err = decodeIdentity(normalized.Treasury); err != nil {
		return params, fmt.Errorf("sale config: invalid Treasury: %w", err)
	}
	if params.Admin, err = decodeIdentity(normalized.Admin); err != nil {
		return params, fmt.Errorf("sale config: invalid Admin: %w", err)
	}
	var zero [20]byte
	if params.Treasury == zero {
		return params, fmt.Errorf("sale config: Treasury must not be the zero address")
	}
	if params.Admin == zero {
		return params, fmt.Errorf("sale config: Admin must not be the zero address")
	}
	return params, nil
}

// Parameters converts the security configuration into validated runtime
// values. Thresholds and durations must be positive whenever the owning
// feature is enabled.
func (sc SecurityConfig) Parameters() (SecurityParams, error) {
	params := SecurityParams{
		RateLimitEnabled: sc.RateLimitEnabled,
		BreakerEnabled:   sc.BreakerEnabled,
	}
	if sc.RateLimitEnabled {
		if sc.MinIntervalSeconds <= 0 {
			return params, fmt.Errorf("security config: MinIntervalSeconds must be positive when rate limiting is enabled")
		}
		if sc.MaxPurchasesPerSlot == 0 {
			return params, fmt.Errorf("security config: MaxPurchasesPerSlot must be positive when rate limiting is enabled")
		}
		params.MinInterval = uint64(sc.MinIntervalSeconds)
		params.MaxPerSlot = sc.MaxPurchasesPerSlot
	}
	if sc.BreakerEnabled {
		threshold, err := ParseAmount(strings.TrimSpace(sc.BreakerThreshold))
		if err != nil {
			return params, fmt.Errorf("security config: invalid BreakerThreshold: %w", err)
		}
		if threshold.Sign() <= 0 {
			return params, fmt.Errorf("security config: BreakerThreshold must be positive when the breaker is enabled")
		}
		if sc.BreakerWindowSeconds <= 0 {
			return params, fmt.Errorf("security config: BreakerWindowSeconds must be positive when the breaker is enabled")
		}
		params.BreakerThreshold = threshold
		params.BreakerWindow = uint64(sc.BreakerWindowSeconds)
	}
	return params, nil
}

func decodeIdentity(value string) ([20]byte, error) {
	var out [20]byte
	if value == "" {
		return out, fmt.Errorf("address required")
	}
	decoded, err := crypto.DecodeAddress(value)
	if err != nil {
		return out, err
	}
	return decoded.Array(), nil
}

// ParseAmount converts a textual integer amount into a big.Int. Underscore
// separators, decimal points and scientific notation are accepted as long as
// the final value is a non-negative integer.
func ParseAmount(value string) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	mantissa := trimmed
	var exponent int64
	if idx := strings.IndexAny(mantissa, "eE"); idx != -1 {
		expPart := strings.TrimSpace(mantissa[idx+1:])
		expValue, err := strconv.ParseInt(expPart, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid scientific notation %q", value)
		}
		exponent = expValue
		mantissa = strings.TrimSpace(mantissa[:idx])
	}
	mantissa = strings.TrimPrefix(mantissa, "+")
	if strings.HasPrefix(mantissa, "-") {
		return nil, fmt.Errorf("amount must not be negative")
	}
	intPart, fracPart, _ := strings.Cut(mantissa, ".")
	if strings.Contains(fracPart, ".") {
		return nil, fmt.Errorf("invalid amount format %q", value)
	}
	digits := intPart + fracPart
	if digits == "" || !isDigits(digits) {
		return nil, fmt.Errorf("invalid amount format %q", value)
	}
	fracLen := int64(len(fracPart))
	for fracLen > 0 && digits[len(digits)-1] == '0' {
		digits = digits[:len(digits)-1]
		fracLen--
	}
	digits = strings.TrimLeft(digits, "0")
	totalExponent := exponent - fracLen
	if totalExponent < 0 && digits != "" {
		return nil, fmt.Errorf("amount %q is not an integer", value)
	}
	if digits == "" {
		return big.NewInt(0), nil
	}
	if totalExponent > 0 {
		digits += strings.Repeat("0", int(totalExponent))
	}
	amount, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount value %q", value)
	}
	return amount, nil
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(value) > 0
}
