package billing

import (
	"propertyfees/internal/core"
	"propertyfees/internal/vendor"
)

// NormalizePaid groups paid records by charge item and keeps the latest
// period of each. Items without records keep their default.
func NormalizePaid(resp *vendor.PaidResponse) core.Mapping[core.PaidItem] {
	out := core.DefaultPaid()
	if resp == nil {
		return out
	}

	groups := make(map[core.ChargeItemKey][]vendor.BillRecord)
	for _, rec := range resp.Data {
		key := Classify(rec.ChargeItemName.Value)
		if key == core.ItemNone {
			continue
		}
		groups[key] = append(groups[key], rec)
	}

	for key, recs := range groups {
		merged, ok := SelectLatest(recs)
		if !ok {
			continue
		}
		out.Set(key, core.PaidItem{
			Amount:     merged.Amount,
			Year:       merged.Year,
			Month:      merged.Month,
			Date:       merged.BillDate.Value,
			ChargeDate: merged.ShouldChargeDate.Value,
			Status:     merged.ChargeStatus.Or(core.UnknownLabel),
		})
	}
	return out
}

// NormalizePrepaid maps the residence balance lines by label and takes the
// parking balance from its positional slot in the parking response. Parking
// lines in the residence list are not used.
func NormalizePrepaid(res vendor.PrepaidResult) core.Mapping[core.PrepaidItem] {
	out := core.DefaultPrepaid()

	if res.Residence != nil {
		for _, rec := range res.Residence.Data.PreChargeList {
			key := Classify(rec.ChargeItemName.Value)
			if key == core.ItemNone || key == core.ParkingFee {
				continue
			}
			out.Set(key, prepaidItem(rec))
		}
	}

	if rec, ok := vendor.ParkingRecord(res.Parking); ok {
		out.Set(core.ParkingFee, prepaidItem(rec))
	}
	return out
}

func prepaidItem(rec vendor.PreChargeRecord) core.PrepaidItem {
	return core.PrepaidItem{
		Balance:       rec.Balance.Decimal(),
		Customer:      rec.CustomerName.Or(core.UnknownLabel),
		House:         rec.HouseName.Or(core.UnknownLabel),
		ChargeItem:    rec.ChargeItemName.Or(core.UnknownItemLabel),
		SubChargeItem: rec.SubChargeItemName.Value,
		FrozenAmount:  rec.FrozenHanSum.Decimal(),
	}
}

// NormalizePending maps each outstanding bill line by label. When several
// lines share an item the last one wins.
func NormalizePending(resp *vendor.ErpBillResponse) core.Mapping[core.PendingItem] {
	out := core.DefaultPending()
	if resp == nil {
		return out
	}
	for _, rec := range resp.Data.ErpBillList {
		key := Classify(rec.ChargeItemName.Value)
		if key == core.ItemNone {
			continue
		}
		out.Set(key, core.PendingItem{
			Amount:         rec.BillAmount.Decimal(),
			Customer:       rec.CustomerName.Or(core.UnknownLabel),
			ChargeItem:     rec.ChargeItemName.Or(core.UnknownItemLabel),
			Date:           rec.BillDate.Value,
			ChargeDate:     rec.ShouldChargeDate.Value,
			LastReading:    rec.LastReadDegree.Value,
			CurrentReading: rec.CurrentReadDegree.Value,
		})
	}
	return out
}
