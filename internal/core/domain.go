package core

import "errors"

const (
	ItemNone            ChargeItemKey = ""
	WaterFee            ChargeItemKey = "water_fee"
	LadderLight         ChargeItemKey = "ladder_light"
	PublicElectricity   ChargeItemKey = "public_electricity"
	ElevatorElectricity ChargeItemKey = "elevator_electricity"
	PumpElectricity     ChargeItemKey = "pump_electricity"
	PropertyFee         ChargeItemKey = "property_fee"
	ParkingFee          ChargeItemKey = "parking_fee"
)

const (
	Paid    Category = "paid"
	Prepaid Category = "prepaid"
	Pending Category = "pending"
)

// Placeholder labels used by the vendor UI for missing text fields.
const (
	UnknownLabel     = "未知"
	UnknownItemLabel = "未知项目"
)

type (
	// ChargeItemKey identifies one of the fixed charge items of a household.
	ChargeItemKey string

	// Category is a billing state: paid, prepaid or pending.
	Category string
)

var (
	ErrUnknownItem     = errors.New("unknown charge item")
	ErrUnknownCategory = errors.New("unknown category")
)

var allItems = []ChargeItemKey{
	WaterFee,
	LadderLight,
	PublicElectricity,
	ElevatorElectricity,
	PumpElectricity,
	PropertyFee,
	ParkingFee,
}

// Items summed into the monthly public charge. Property and parking fees are unit specific.
var publicItems = allItems[:5]

var itemNames = map[ChargeItemKey]string{
	WaterFee:            "公摊水费",
	LadderLight:         "梯灯电费",
	PublicElectricity:   "公摊电费",
	ElevatorElectricity: "电梯电费",
	PumpElectricity:     "水泵电费",
	PropertyFee:         "住宅物业费",
	ParkingFee:          "车位服务费",
}

var categoryNames = map[Category]string{
	Paid:    "已交物业费",
	Prepaid: "预交物业费",
	Pending: "待交物业费",
}

// AllItems returns the seven charge items in display order.
func AllItems() []ChargeItemKey {
	return append([]ChargeItemKey(nil), allItems...)
}

// PublicItems returns the building level shared charges.
func PublicItems() []ChargeItemKey {
	return append([]ChargeItemKey(nil), publicItems...)
}

// Categories returns the three billing categories in display order.
func Categories() []Category {
	return []Category{Paid, Prepaid, Pending}
}

// ParseItem converts a key string into a ChargeItemKey.
func ParseItem(s string) (ChargeItemKey, error) {
	k := ChargeItemKey(s)
	if !k.Valid() {
		return ItemNone, ErrUnknownItem
	}
	return k, nil
}

// ParseCategory converts a category string into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", ErrUnknownCategory
	}
	return c, nil
}

// Valid reports whether k is one of the seven fixed items.
func (k ChargeItemKey) Valid() bool {
	_, ok := itemNames[k]
	return ok
}

// IsPublic reports whether k is counted in the monthly public charge.
func (k ChargeItemKey) IsPublic() bool {
	for _, p := range publicItems {
		if p == k {
			return true
		}
	}
	return false
}

// DisplayName returns the label shown to residents.
func (k ChargeItemKey) DisplayName() string {
	if name, ok := itemNames[k]; ok {
		return name
	}
	return string(k)
}

func (k ChargeItemKey) String() string {
	return string(k)
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// DisplayName returns the label shown to residents.
func (c Category) DisplayName() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return string(c)
}

func (c Category) String() string {
	return string(c)
}
