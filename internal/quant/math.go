// Package quant holds small, allocation-light decimal helpers shared across
// the governors, the router, and the profit ledger.
package quant

import (
	"github.com/shopspring/decimal"
)

// RoundPrice rounds a price to the specified decimals.
func RoundPrice(price decimal.Decimal, priceDecimals int32) decimal.Decimal {
	return price.Round(priceDecimals)
}

// RoundQuantity rounds a quantity to the specified decimals.
func RoundQuantity(qty decimal.Decimal, qtyDecimals int32) decimal.Decimal {
	return qty.Round(qtyDecimals)
}

// FloorToLot normalizes a quantity down to the nearest lot-size multiple:
// floor(q / lot) * lot. The sign of qty is preserved; magnitude only shrinks.
func FloorToLot(qty, lot decimal.Decimal) decimal.Decimal {
	if lot.IsZero() {
		return qty
	}
	neg := qty.IsNegative()
	abs := qty.Abs()
	units := abs.Div(lot).Floor()
	normalized := units.Mul(lot)
	if neg {
		return normalized.Neg()
	}
	return normalized
}

// NetProfit computes profit after both-side trading fees, expressed in price
// terms (caller multiplies by quantity for USD).
func NetProfit(buyPrice, sellPrice, buyFeeRate, sellFeeRate decimal.Decimal) decimal.Decimal {
	grossProfit := sellPrice.Sub(buyPrice)
	buyFee := buyPrice.Mul(buyFeeRate)
	sellFee := sellPrice.Mul(sellFeeRate)
	return grossProfit.Sub(buyFee).Sub(sellFee)
}

// BpsOf expresses delta as basis points of base (delta/base * 10000). Returns
// zero rather than dividing by zero when base is zero.
func BpsOf(delta, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return delta.Div(base).Mul(decimal.NewFromInt(10000))
}

// Ewma applies an exponentially weighted moving average update:
// (1-alpha)*prev + alpha*sample.
func Ewma(prev, sample, alpha decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(alpha).Mul(prev).Add(alpha.Mul(sample))
}
