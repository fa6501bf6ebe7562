package billing

import (
	"github.com/google/uuid"
	"github.com/markit/markit-server/pkg/db/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Totals are the server-computed bill amounts. Returned entries never count.
type Totals struct {
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	GrandTotal decimal.Decimal
}

// keptEntry prices a kept line from the stored variant. Prices include tax,
// so the tax share is value*rate/(100+rate).
func keptEntry(variant models.Variant, itemID uuid.UUID, qty int) models.BillEntry {
	q := decimal.NewFromInt(int64(qty))
	value := variant.DPrice.Mul(q)
	discount := variant.SPrice.Sub(variant.DPrice).Mul(q).Neg()
	return models.BillEntry{
		VariantID: variant.ID,
		ItemID:    itemID,
		Quantity:  qty,
		Rate:      variant.DPrice,
		Discount:  discount.Round(2),
		Tax:       inclusiveTax(value, variant.Tax),
		Value:     value.Round(2),
	}
}

func returnedEntry(variant models.Variant, itemID uuid.UUID, qty int) models.BillEntry {
	return models.BillEntry{
		VariantID: variant.ID,
		ItemID:    itemID,
		Quantity:  qty,
		Rate:      variant.DPrice,
		Discount:  decimal.Zero,
		Tax:       decimal.Zero,
		Value:     variant.DPrice.Mul(decimal.NewFromInt(int64(qty))).Round(2),
		IsReturn:  true,
	}
}

func inclusiveTax(value, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		return decimal.Zero
	}
	return value.Mul(rate).Div(hundred.Add(rate)).Round(2)
}

func computeTotals(entries []models.BillEntry, deliveryFee, waitingFee decimal.Decimal) Totals {
	subtotal := decimal.Zero
	discount := decimal.Zero
	for _, e := range entries {
		if e.IsReturn {
			continue
		}
		subtotal = subtotal.Add(e.Value)
		discount = discount.Add(e.Discount)
	}
	return Totals{
		Subtotal:   subtotal,
		Discount:   discount,
		GrandTotal: subtotal.Add(deliveryFee).Add(waitingFee),
	}
}

var tolerance = decimal.RequireFromString("0.01")

func differs(claimed, computed decimal.Decimal) bool {
	return claimed.Sub(computed).Abs().GreaterThan(tolerance)
}
