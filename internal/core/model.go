package core

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaidItem is the latest settled bill for one charge item.
type PaidItem struct {
	Amount     decimal.Decimal `json:"amount"`
	Year       string          `json:"year"`
	Month      string          `json:"month"`
	Date       string          `json:"date"`
	ChargeDate string          `json:"charge_date"`
	Status     string          `json:"status"`
}

// PrepaidItem is the balance held in advance for one charge item.
type PrepaidItem struct {
	Balance       decimal.Decimal `json:"balance"`
	Customer      string          `json:"customer"`
	House         string          `json:"house"`
	ChargeItem    string          `json:"charge_item"`
	SubChargeItem string          `json:"sub_charge_item"`
	FrozenAmount  decimal.Decimal `json:"frozen_amount"`
}

// PendingItem is an outstanding bill for one charge item.
type PendingItem struct {
	Amount         decimal.Decimal `json:"amount"`
	Customer       string          `json:"customer"`
	ChargeItem     string          `json:"charge_item"`
	Date           string          `json:"date"`
	ChargeDate     string          `json:"charge_date"`
	LastReading    string          `json:"last_reading"`
	CurrentReading string          `json:"current_reading"`
}

func DefaultPaidItem() PaidItem {
	return PaidItem{Amount: decimal.Zero, Status: UnknownLabel}
}

func DefaultPrepaidItem() PrepaidItem {
	return PrepaidItem{
		Balance:      decimal.Zero,
		Customer:     UnknownLabel,
		House:        UnknownLabel,
		ChargeItem:   UnknownItemLabel,
		FrozenAmount: decimal.Zero,
	}
}

func DefaultPendingItem() PendingItem {
	return PendingItem{
		Amount:     decimal.Zero,
		Customer:   UnknownLabel,
		ChargeItem: UnknownItemLabel,
	}
}

// Mapping holds exactly one item per charge item key. The key set is fixed at
// construction and never changes; Set ignores keys outside it.
type Mapping[T any] struct {
	items map[ChargeItemKey]T
}

// NewMapping returns a mapping with every charge item set to def.
func NewMapping[T any](def T) Mapping[T] {
	m := Mapping[T]{items: make(map[ChargeItemKey]T, len(allItems))}
	for _, k := range allItems {
		m.items[k] = def
	}
	return m
}

func DefaultPaid() Mapping[PaidItem]       { return NewMapping(DefaultPaidItem()) }
func DefaultPrepaid() Mapping[PrepaidItem] { return NewMapping(DefaultPrepaidItem()) }
func DefaultPending() Mapping[PendingItem] { return NewMapping(DefaultPendingItem()) }

// Get returns the item stored for k. Unknown keys yield the zero value and false.
func (m Mapping[T]) Get(k ChargeItemKey) (T, bool) {
	v, ok := m.items[k]
	return v, ok
}

// Set replaces the item for k and reports whether k was accepted.
func (m Mapping[T]) Set(k ChargeItemKey, v T) bool {
	if _, ok := m.items[k]; !ok {
		return false
	}
	m.items[k] = v
	return true
}

// Keys returns the keys present, in display order.
func (m Mapping[T]) Keys() []ChargeItemKey {
	keys := make([]ChargeItemKey, 0, len(m.items))
	for _, k := range allItems {
		if _, ok := m.items[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

func (m Mapping[T]) Len() int {
	return len(m.items)
}

// Each calls fn for every item in display order.
func (m Mapping[T]) Each(fn func(ChargeItemKey, T)) {
	for _, k := range allItems {
		if v, ok := m.items[k]; ok {
			fn(k, v)
		}
	}
}

// Clone returns an independent copy.
func (m Mapping[T]) Clone() Mapping[T] {
	c := Mapping[T]{items: make(map[ChargeItemKey]T, len(m.items))}
	for k, v := range m.items {
		c.items[k] = v
	}
	return c
}

// MarshalJSON encodes the mapping as an object with keys in display order.
func (m Mapping[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, k := range allItems {
		v, ok := m.items[k]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(string(k))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes known keys over the existing items so that fields
// missing from the payload keep their defaults. Unknown keys are skipped.
func (m *Mapping[T]) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if m.items == nil {
		m.items = make(map[ChargeItemKey]T, len(allItems))
	}
	for name, msg := range raw {
		k := ChargeItemKey(name)
		if !k.Valid() {
			continue
		}
		v := m.items[k]
		if err := json.Unmarshal(msg, &v); err != nil {
			return err
		}
		m.items[k] = v
	}
	return nil
}

// Totals are the cross-item sums shown as summary values.
type Totals struct {
	PrepaidTotal    decimal.Decimal `json:"prepaid_total"`
	PaidPublicTotal decimal.Decimal `json:"paid_public_total"`
	PendingTotal    decimal.Decimal `json:"pending_total"`
}

// Snapshot is one complete normalized refresh result. Treat it as read only.
type Snapshot struct {
	Paid       Mapping[PaidItem]    `json:"paid"`
	Prepaid    Mapping[PrepaidItem] `json:"prepaid"`
	Pending    Mapping[PendingItem] `json:"pending"`
	Total      Totals               `json:"total"`
	LastUpdate time.Time            `json:"last_update"`
	Year       int                  `json:"year"`
	Fallbacks  []Category           `json:"fallbacks,omitempty"`
}

// EmptySnapshot returns a snapshot with every category defaulted.
func EmptySnapshot(year int) Snapshot {
	return Snapshot{
		Paid:    DefaultPaid(),
		Prepaid: DefaultPrepaid(),
		Pending: DefaultPending(),
		Total: Totals{
			PrepaidTotal:    decimal.Zero,
			PaidPublicTotal: decimal.Zero,
			PendingTotal:    decimal.Zero,
		},
		Year: year,
	}
}

// UnmarshalJSON fills defaults first so a stored snapshot stays total even if
// it was written with fewer keys.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type plain Snapshot
	p := plain(EmptySnapshot(0))
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Snapshot(p)
	return nil
}

// Clone returns a snapshot that shares no mutable state with s.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Paid = s.Paid.Clone()
	c.Prepaid = s.Prepaid.Clone()
	c.Pending = s.Pending.Clone()
	c.Fallbacks = append([]Category(nil), s.Fallbacks...)
	return c
}

// FellBack reports whether c was substituted with defaults in this snapshot.
func (s Snapshot) FellBack(c Category) bool {
	for _, f := range s.Fallbacks {
		if f == c {
			return true
		}
	}
	return false
}
