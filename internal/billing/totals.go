package billing

import (
	"github.com/shopspring/decimal"

	"propertyfees/internal/core"
)

// ComputeTotals sums prepaid balances and pending amounts over every item,
// and paid amounts over the public items only.
func ComputeTotals(paid core.Mapping[core.PaidItem], prepaid core.Mapping[core.PrepaidItem], pending core.Mapping[core.PendingItem]) core.Totals {
	t := core.Totals{
		PrepaidTotal:    decimal.Zero,
		PaidPublicTotal: decimal.Zero,
		PendingTotal:    decimal.Zero,
	}
	prepaid.Each(func(_ core.ChargeItemKey, it core.PrepaidItem) {
		t.PrepaidTotal = t.PrepaidTotal.Add(it.Balance)
	})
	paid.Each(func(k core.ChargeItemKey, it core.PaidItem) {
		if k.IsPublic() {
			t.PaidPublicTotal = t.PaidPublicTotal.Add(it.Amount)
		}
	})
	pending.Each(func(_ core.ChargeItemKey, it core.PendingItem) {
		t.PendingTotal = t.PendingTotal.Add(it.Amount)
	})
	return t
}
