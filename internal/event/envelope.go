package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire format every inventory event travels in. Consumers
// dedupe on EventID, so the same envelope may be delivered more than once.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	TraceID   string          `json:"traceId,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// New builds an envelope with a fresh id and timestamp around the given
// domain payload.
func New(eventType, source string, payload interface{}) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return &Envelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Payload:   raw,
	}, nil
}

// Validate rejects incomplete envelopes. A validation failure is a
// programmer error and must never be retried.
func (e *Envelope) Validate() error {
	switch {
	case e.EventID == "":
		return fmt.Errorf("invalid envelope: missing eventId")
	case e.EventType == "":
		return fmt.Errorf("invalid envelope: missing eventType")
	case e.Timestamp.IsZero():
		return fmt.Errorf("invalid envelope: missing timestamp")
	case e.Source == "":
		return fmt.Errorf("invalid envelope: missing source")
	case len(e.Payload) == 0:
		return fmt.Errorf("invalid envelope: missing payload")
	}
	return nil
}
