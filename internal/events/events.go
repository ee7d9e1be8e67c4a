// Package events publishes upload and invoice activity to Kafka.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	UploadItemChanged    EventType = "upload.item.changed"
	UploadBatchCompleted EventType = "upload.batch.completed"
	InvoiceRendered      EventType = "invoice.rendered"
)

// Source is stamped on every event this process emits.
const Source = "billflow-desk"

type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Key       string                 `json:"-"`
	Data      map[string]interface{} `json:"data"`
}

// NewEvent stamps an event with a fresh id and the current time. key picks the Kafka partition.
func NewEvent(eventType EventType, key string, data map[string]interface{}) *Event {
	return &Event{
		ID:        "evt_" + uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    Source,
		Key:       key,
		Data:      data,
	}
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
