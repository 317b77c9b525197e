package amqp

import (
	"encoding/json"
	"time"

	"propertyfees/internal/core"
)

// SnapshotUpdatedMessage announces a refreshed snapshot. It carries the
// totals only; consumers read item details from the HTTP API.
type SnapshotUpdatedMessage struct {
	Year       int             `json:"year"`
	LastUpdate time.Time       `json:"last_update"`
	Total      core.Totals     `json:"total"`
	Fallbacks  []core.Category `json:"fallbacks,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewSnapshotUpdatedMessage summarizes snap.
func NewSnapshotUpdatedMessage(snap core.Snapshot) *SnapshotUpdatedMessage {
	return &SnapshotUpdatedMessage{
		Year:       snap.Year,
		LastUpdate: snap.LastUpdate,
		Total:      snap.Total,
		Fallbacks:  snap.Fallbacks,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SnapshotUpdatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotUpdatedMessageFromJSON creates a message from JSON bytes
func SnapshotUpdatedMessageFromJSON(data []byte) (*SnapshotUpdatedMessage, error) {
	var msg SnapshotUpdatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
