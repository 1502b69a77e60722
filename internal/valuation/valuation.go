// Package valuation computes inventory cost basis. All functions are pure.
package valuation

import "github.com/shopspring/decimal"

// WeightedAvgCost blends the running average with an inbound receipt:
//
//	round((preStock*oldAvg + newQty*unitCost) / (preStock + newQty))
//
// Ties round half up (away from zero; costs are never negative). When the
// combined quantity is zero the receipt cost becomes the new average.
func WeightedAvgCost(preStock, oldAvg, newQty, unitCost int64) int64 {
	qty := decimal.NewFromInt(preStock).Add(decimal.NewFromInt(newQty))
	if qty.IsZero() {
		return unitCost
	}
	value := decimal.NewFromInt(preStock).Mul(decimal.NewFromInt(oldAvg)).
		Add(decimal.NewFromInt(newQty).Mul(decimal.NewFromInt(unitCost)))
	return value.DivRound(qty, 0).IntPart()
}

// EffectiveUnitCost returns floor(lineTotal/qty), the discount adjusted unit
// cost of a historical line. fallback is returned for a zero quantity.
func EffectiveUnitCost(lineTotal, qty, fallback int64) int64 {
	if qty == 0 {
		return fallback
	}
	d := decimal.NewFromInt(qty)
	q, r := decimal.NewFromInt(lineTotal).QuoRem(d, 0)
	if !r.IsZero() && r.Sign() != d.Sign() {
		q = q.Sub(decimal.NewFromInt(1))
	}
	return q.IntPart()
}

// ReturnAvgCost is the average after a return re-enters or leaves stock at the
// current average. It always equals oldAvg: returns never revalue a variant.
func ReturnAvgCost(stockBeforeReturn, oldAvg, returnQty int64) int64 {
	qty := decimal.NewFromInt(stockBeforeReturn).Add(decimal.NewFromInt(returnQty))
	if qty.IsZero() {
		return oldAvg
	}
	avg := decimal.NewFromInt(oldAvg)
	value := decimal.NewFromInt(stockBeforeReturn).Mul(avg).Add(decimal.NewFromInt(returnQty).Mul(avg))
	return value.DivRound(qty, 0).IntPart()
}

// LineAmount is the value of qty units at the effective cost of a source line.
func LineAmount(sourceLineTotal, sourceQty, qty int64) int64 {
	unit := EffectiveUnitCost(sourceLineTotal, sourceQty, 0)
	return decimal.NewFromInt(unit).Mul(decimal.NewFromInt(qty)).IntPart()
}
