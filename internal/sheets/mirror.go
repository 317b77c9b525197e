// Package sheets mirrors each refreshed snapshot into a spreadsheet table
// so residents can read the figures without the API.
package sheets

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"propertyfees/internal/core"
	"propertyfees/internal/log"
)

// Header is the first row of every mirrored table.
var Header = []any{"费用类型", "项目", "名称", "金额", "日期", "备注"}

const timeLayout = "2006-01-02 15:04:05"

// Mirror writes the snapshot table on every refresh.
type Mirror struct {
	writer TableWriter
	logger *log.Logger
}

func NewMirror(w TableWriter, logger *log.Logger) *Mirror {
	if logger == nil {
		logger = log.Discard()
	}
	return &Mirror{writer: w, logger: logger.WithComponent(log.ComponentSheets)}
}

// SnapshotUpdated rewrites the table for snap.Year.
func (m *Mirror) SnapshotUpdated(ctx context.Context, snap core.Snapshot) error {
	rows := Rows(snap)
	if err := m.writer.WriteTable(ctx, snap.Year, rows); err != nil {
		return fmt.Errorf("mirror snapshot: %w", err)
	}
	m.logger.InfoContext(ctx, "Snapshot mirrored",
		log.FieldYear, snap.Year,
		log.FieldOperation, log.OpMirror,
		"rows", len(rows))
	return nil
}

// Rows renders snap as a table: header, seven rows per category in
// category order, the three totals and the update time.
func Rows(snap core.Snapshot) [][]any {
	rows := make([][]any, 0, 1+3*len(core.AllItems())+4)
	rows = append(rows, Header)

	snap.Paid.Each(func(k core.ChargeItemKey, it core.PaidItem) {
		rows = append(rows, row(core.Paid, k, it.Amount, it.Date, it.Status))
	})
	snap.Prepaid.Each(func(k core.ChargeItemKey, it core.PrepaidItem) {
		rows = append(rows, row(core.Prepaid, k, it.Balance, "", it.House))
	})
	snap.Pending.Each(func(k core.ChargeItemKey, it core.PendingItem) {
		rows = append(rows, row(core.Pending, k, it.Amount, it.Date, it.Customer))
	})

	rows = append(rows,
		[]any{"合计", "prepaid_total", "预交费用合计", amount(snap.Total.PrepaidTotal), "", ""},
		[]any{"合计", "paid_public_total", "月公摊费", amount(snap.Total.PaidPublicTotal), "", ""},
		[]any{"合计", "pending_total", "待交费用合计", amount(snap.Total.PendingTotal), "", ""},
		[]any{"更新时间", "", "", "", snap.LastUpdate.Format(timeLayout), fmt.Sprintf("%d", snap.Year)},
	)
	return rows
}

func row(cat core.Category, k core.ChargeItemKey, v decimal.Decimal, date, note string) []any {
	return []any{cat.DisplayName(), string(k), k.DisplayName(), amount(v), date, note}
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
