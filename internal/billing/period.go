package billing

import (
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"propertyfees/internal/vendor"
)

// MergedBill is the latest-period view of one charge item's paid records.
type MergedBill struct {
	vendor.BillRecord
	Amount decimal.Decimal
	Year   string
	Month  string
}

// PeriodKey returns a sortable key for a billing period token such as
// "20251001-20251031" or "202509". Tokens that are not all digits give 0,
// which sorts last and is never merged.
func PeriodKey(token string) int64 {
	part := token
	if i := strings.IndexByte(token, '-'); i >= 0 {
		part = token[:i]
	}
	if !allDigits(part) {
		return 0
	}
	n, err := strconv.ParseInt(part, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// SelectLatest picks the most recent billing period among records and sums
// the amounts of every record in that period. Other fields come from the
// first record of the period in input order.
func SelectLatest(records []vendor.BillRecord) (MergedBill, bool) {
	if len(records) == 0 {
		return MergedBill{}, false
	}

	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b vendor.BillRecord) int {
		ka, kb := PeriodKey(a.BillDate.Value), PeriodKey(b.BillDate.Value)
		switch {
		case ka > kb:
			return -1
		case ka < kb:
			return 1
		}
		return 0
	})

	first := sorted[0]
	top := PeriodKey(first.BillDate.Value)
	if top == 0 {
		return unmerged(first), true
	}

	total := decimal.Zero
	for _, r := range sorted {
		if PeriodKey(r.BillDate.Value) != top {
			break
		}
		total = total.Add(r.BillAmount.Decimal())
	}

	merged := unmerged(first)
	merged.Amount = total
	if year, month, ok := splitPeriod(first.BillDate.Value); ok {
		merged.Year, merged.Month = year, month
	}
	return merged, true
}

func unmerged(r vendor.BillRecord) MergedBill {
	return MergedBill{
		BillRecord: r,
		Amount:     r.BillAmount.Decimal(),
		Year:       r.BillYear.Value,
		Month:      r.BillMonth.Value,
	}
}

// splitPeriod reads year and month from the leading part of a period token.
func splitPeriod(token string) (year, month string, ok bool) {
	part := token
	if i := strings.IndexByte(token, '-'); i >= 0 {
		part = token[:i]
	}
	if len(part) < 6 {
		return "", "", false
	}
	return part[:4], part[4:6], true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
