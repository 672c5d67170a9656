package sale

import "math/big"

// QuoteToPayment converts an asset quantity (smallest units) into the payment
// amount required at the supplied price. The conversion multiplies before
// dividing so no precision is lost ahead of the final fixed-point scaling.
func QuoteToPayment(quantity, price *big.Int) (*big.Int, error) {
	if quantity == nil || quantity.Sign() <= 0 {
		return nil, ErrZeroQuantity
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrZeroPrice
	}
	payment := new(big.Int).Mul(quantity, price)
	payment.Quo(payment, PriceScale)
	if payment.Sign() == 0 {
		return nil, ErrRoundsToZero
	}
	return payment, nil
}

// QuoteToQuantity converts a payment amount into the asset quantity it buys at
// the supplied price. Inverse of QuoteToPayment up to one smallest unit of
// rounding.
func QuoteToQuantity(payment, price *big.Int) (*big.Int, error) {
	if payment == nil || payment.Sign() <= 0 {
		return nil, ErrZeroPayment
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrZeroPrice
	}
	quantity := new(big.Int).Mul(payment, PriceScale)
	quantity.Quo(quantity, price)
	if quantity.Sign() == 0 {
		return nil, ErrRoundsToZero
	}
	return quantity, nil
}
