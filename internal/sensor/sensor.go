// Package sensor presents a snapshot as individually addressable values.
package sensor

import (
	"time"

	"github.com/shopspring/decimal"

	"propertyfees/internal/coordinator"
	"propertyfees/internal/core"
)

const (
	Domain       = "hengda_property"
	Manufacturer = "恒大物业"
	Unit         = "元"
	TimeLayout   = "2006-01-02 15:04:05"
)

type Kind string

const (
	KindItem       Kind = "item"
	KindUpdateTime Kind = "update_time"
	KindTotal      Kind = "total"
)

// Device groups the sensors of one category.
type Device struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
}

type Sensor struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Kind       Kind               `json:"kind"`
	Category   core.Category      `json:"category"`
	Item       core.ChargeItemKey `json:"item,omitempty"`
	Value      any                `json:"value"`
	Unit       string             `json:"unit,omitempty"`
	Available  bool               `json:"available"`
	Attributes map[string]any     `json:"attributes"`
	Device     Device             `json:"device"`
}

var totalNames = map[core.Category]struct{ key, name string }{
	core.Prepaid: {"prepaid_total", "预交费用合计"},
	core.Paid:    {"paid_public_total", "月公摊费"},
	core.Pending: {"pending_total", "待交费用合计"},
}

var itemKindLabels = map[core.Category]string{
	core.Paid:    "已交费用",
	core.Prepaid: "预交费用",
	core.Pending: "待交费用",
}

// Build returns every sensor for the given state: per category seven item
// sensors, an update time sensor and a total sensor.
func Build(st *coordinator.State, year int, interval time.Duration) []Sensor {
	var snap *core.Snapshot
	available := false
	if st != nil {
		snap = st.Snapshot
		available = st.Available()
	}

	var out []Sensor
	for _, cat := range core.Categories() {
		dev := Device{
			ID:           Domain + "_" + string(cat),
			Name:         cat.DisplayName(),
			Manufacturer: Manufacturer,
			Model:        cat.DisplayName(),
		}
		for _, item := range core.AllItems() {
			s := Sensor{
				ID:         Domain + "_" + string(cat) + "_" + string(item),
				Name:       item.DisplayName(),
				Kind:       KindItem,
				Category:   cat,
				Item:       item,
				Value:      decimal.Zero,
				Unit:       Unit,
				Available:  available,
				Attributes: map[string]any{},
				Device:     dev,
			}
			if snap != nil {
				s.Value, s.Attributes = itemValue(snap, cat, item)
			}
			out = append(out, s)
		}
		out = append(out, updateTimeSensor(snap, cat, dev, available, year, interval))
		out = append(out, totalSensor(snap, cat, dev, available, year))
	}
	return out
}

// Find returns the sensor with the given id.
func Find(list []Sensor, id string) (Sensor, bool) {
	for _, s := range list {
		if s.ID == id {
			return s, true
		}
	}
	return Sensor{}, false
}

func itemValue(snap *core.Snapshot, cat core.Category, item core.ChargeItemKey) (any, map[string]any) {
	label := itemKindLabels[cat]
	switch cat {
	case core.Paid:
		it, _ := snap.Paid.Get(item)
		return it.Amount, map[string]any{
			"费用类型": label,
			"年份":   it.Year,
			"月份":   it.Month,
			"账单日期": it.Date,
			"应缴日期": it.ChargeDate,
			"缴费状态": it.Status,
		}
	case core.Prepaid:
		it, _ := snap.Prepaid.Get(item)
		return it.Balance, map[string]any{
			"费用类型": label,
			"客户姓名": it.Customer,
			"房产名称": it.House,
			"费用项目": it.ChargeItem,
			"子费用项": it.SubChargeItem,
			"冻结金额": it.FrozenAmount,
		}
	case core.Pending:
		it, _ := snap.Pending.Get(item)
		return it.Amount, map[string]any{
			"费用类型": label,
			"客户姓名": it.Customer,
			"费用项目": it.ChargeItem,
			"账单日期": it.Date,
			"应缴日期": it.ChargeDate,
			"上次读数": it.LastReading,
			"当前读数": it.CurrentReading,
		}
	}
	return decimal.Zero, map[string]any{}
}

func updateTimeSensor(snap *core.Snapshot, cat core.Category, dev Device, available bool, year int, interval time.Duration) Sensor {
	s := Sensor{
		ID:        Domain + "_" + string(cat) + "_update_time",
		Name:      "更新时间",
		Kind:      KindUpdateTime,
		Category:  cat,
		Available: available,
		Device:    dev,
	}

	var next any
	if snap != nil && !snap.LastUpdate.IsZero() {
		s.Value = snap.LastUpdate.Format(TimeLayout)
		if interval > 0 {
			next = snap.LastUpdate.Add(interval).Format(TimeLayout)
		}
	}
	intervalLabel := "未设置"
	if interval > 0 {
		intervalLabel = interval.String()
	}
	s.Attributes = map[string]any{
		"费用类型": cat.DisplayName(),
		"数据年份": year,
		"下次更新": next,
		"更新间隔": intervalLabel,
	}
	return s
}

func totalSensor(snap *core.Snapshot, cat core.Category, dev Device, available bool, year int) Sensor {
	t := totalNames[cat]
	s := Sensor{
		ID:         Domain + "_" + string(cat) + "_" + t.key,
		Name:       t.name,
		Kind:       KindTotal,
		Category:   cat,
		Value:      decimal.Zero,
		Unit:       Unit,
		Available:  available,
		Attributes: map[string]any{},
		Device:     dev,
	}
	if snap == nil {
		return s
	}

	s.Attributes["费用类型"] = cat.DisplayName()
	s.Attributes["年份"] = year
	switch cat {
	case core.Prepaid:
		s.Value = snap.Total.PrepaidTotal
	case core.Pending:
		s.Value = snap.Total.PendingTotal
	case core.Paid:
		s.Value = snap.Total.PaidPublicTotal
		if pe, _ := snap.Paid.Get(core.PublicElectricity); pe.Month != "" {
			s.Attributes["月份"] = pe.Month
		}
		for _, item := range core.PublicItems() {
			it, _ := snap.Paid.Get(item)
			s.Attributes[item.DisplayName()] = it.Amount
		}
	}
	return s
}
