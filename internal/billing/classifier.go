// Package billing turns raw vendor records into total charge item mappings.
package billing

import (
	"strings"

	"propertyfees/internal/core"
)

// Rule maps a vendor label phrase to a charge item.
type Rule struct {
	Phrase string
	Item   core.ChargeItemKey
}

// Phrases are vendor literals and must match exactly. Evaluated in order.
// One table serves all three categories, so a pending ERP line labelled only
// 区域公摊电费 is left unmatched, and 车位服务费 also matches pending lines.
var rules = []Rule{
	{"公摊水费", core.WaterFee},
	{"梯灯公摊电费", core.LadderLight},
	{"公共区域公摊电费", core.PublicElectricity},
	{"电梯公摊电费", core.ElevatorElectricity},
	{"水泵公摊电费", core.PumpElectricity},
	{"住宅物业服务费", core.PropertyFee},
	{"车位服务费", core.ParkingFee},
}

// Rules returns a copy of the classification table.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

// Classify returns the item of the first rule whose phrase occurs in label,
// or core.ItemNone.
func Classify(label string) core.ChargeItemKey {
	if label == "" {
		return core.ItemNone
	}
	for _, r := range rules {
		if strings.Contains(label, r.Phrase) {
			return r.Item
		}
	}
	return core.ItemNone
}
