package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	app "github.com/turtacn/dossier-engine/internal/application/dossier"
	"github.com/turtacn/dossier-engine/pkg/errors"
)

// Topic names.
const (
	TopicCreated   = "dossier.created"
	TopicLifecycle = "dossier.lifecycle"
	TopicAlerts    = "dossier.alerts"
)

const (
	envelopeSource        = "dossier-engine"
	envelopeSchemaVersion = "v1"
)

// Header keys set on every produced message.
const (
	HeaderEventType     = "event_type"
	HeaderTenant        = "tenant_id"
	HeaderSchemaVersion = "schema_version"
)

// Topics lists every topic the engine writes to.
func Topics() []string {
	return []string{TopicCreated, TopicLifecycle, TopicAlerts}
}

// TopicFor routes an event type to its topic.  Alert events go to the
// alerts topic so notification consumers need not read lifecycle traffic.
func TopicFor(t app.EventType) string {
	switch t {
	case app.EventDossierCreated:
		return TopicCreated
	case app.EventAlertRaised, app.EventAlertResolved:
		return TopicAlerts
	default:
		return TopicLifecycle
	}
}

// EventEnvelope wraps an event payload with routing metadata.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	TenantID      string            `json:"tenant_id"`
	DossierID     string            `json:"dossier_id"`
	Reference     string            `json:"reference,omitempty"`
	Payload       json.RawMessage   `json:"payload,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEventEnvelope converts an application event.  Events without an ID get
// a fresh one.
func NewEventEnvelope(e app.Event) (*EventEnvelope, error) {
	id := string(e.ID)
	if id == "" {
		id = uuid.New().String()
	}
	env := &EventEnvelope{
		EventID:       id,
		EventType:     string(e.Type),
		Source:        envelopeSource,
		Timestamp:     e.OccurredAt.UTC(),
		SchemaVersion: envelopeSchemaVersion,
		TenantID:      string(e.TenantID),
		DossierID:     string(e.DossierID),
		Reference:     e.Reference,
	}
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event payload")
		}
		env.Payload = raw
	}
	return env, nil
}

// DecodePayload unmarshals the payload into target.  An absent payload
// leaves target untouched.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal event payload")
	}
	return nil
}

// DecodeEnvelope parses a message value.
func DecodeEnvelope(value []byte) (*EventEnvelope, error) {
	if len(value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	return &env, nil
}
