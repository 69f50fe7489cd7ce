package stocktake

import (
	"sort"

	"github.com/shopspring/decimal"
)

var pctBase = decimal.NewFromInt(100)

// ComputeVariance builds variance rows from counted quantities and the
// system view, applies the threshold flags, and orders the result by
// absolute variance so the worst discrepancies come first.
func ComputeVariance(system map[int64]ProductCount, counted map[int64]int64, thresholdQty *int64, thresholdPct *decimal.Decimal) []Item {
	rows := make([]Item, 0, len(counted))
	for productID, countedQty := range counted {
		product := system[productID]
		row := Item{
			ProductID:  productID,
			SKU:        product.SKU,
			Name:       product.Name,
			SystemQty:  product.CurrentStock,
			CountedQty: countedQty,
			Variance:   countedQty - product.CurrentStock,
		}
		if row.SystemQty != 0 {
			row.VariancePct = decimal.NewFromInt(row.Variance).
				Div(decimal.NewFromInt(row.SystemQty).Abs()).
				Mul(pctBase).Round(2)
		}
		row.Flagged = exceedsThreshold(row, thresholdQty, thresholdPct)
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		vi, vj := abs(rows[i].Variance), abs(rows[j].Variance)
		if vi != vj {
			return vi > vj
		}
		return rows[i].SKU < rows[j].SKU
	})
	return rows
}

func exceedsThreshold(row Item, qty *int64, pct *decimal.Decimal) bool {
	if qty != nil && abs(row.Variance) >= *qty {
		return true
	}
	if pct != nil && row.VariancePct.Abs().GreaterThanOrEqual(*pct) {
		return true
	}
	return false
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
