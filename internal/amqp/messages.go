package amqp

import (
	"encoding/json"
	"time"

	"planner/internal/core"
)

// CalculationMessage carries a finished calculation to the journal worker.
// Unlike a sync notification it holds the full event, since the web process
// keeps no copy of its own.
type CalculationMessage struct {
	Event     core.CalculationEvent `json:"event"`
	Timestamp time.Time             `json:"timestamp"`
}

func NewCalculationMessage(e core.CalculationEvent) *CalculationMessage {
	return &CalculationMessage{
		Event:     e,
		Timestamp: time.Now(),
	}
}

func (m *CalculationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func CalculationMessageFromJSON(data []byte) (*CalculationMessage, error) {
	var msg CalculationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
