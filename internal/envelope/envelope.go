// Package envelope implements the structured message format exchanged with
// simulated devices over the duplex channel.
//
// Every message is a JSON object carrying a schema version, a message type,
// its own unique id, a correlation id tying responses back to the request
// that triggered them, a timestamp, a namespaced action, an optional status,
// and free-form payload/meta maps. Envelopes are constructed per message and
// never mutated afterwards.
package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message types. The set is open: unrecognised types pass through parsing
// unchanged so newer peers can introduce types without breaking older ones.
const (
	TypeCommand   = "command"
	TypeQuery     = "query"
	TypeEvent     = "event"
	TypeResponse  = "response"
	TypeError     = "error"
	TypeAck       = "ack"
	TypeHeartbeat = "heartbeat"
	TypeRequest   = "request"
	TypeReport    = "report"
)

// Status values for response/event envelopes. Absent on pure commands.
const (
	StatusSuccess  = "success"
	StatusFailure  = "failure"
	StatusPending  = "pending"
	StatusReceived = "received"
)

// Version is the current envelope schema version.
const Version = 1

// tsFormat is the wire timestamp layout: ISO-8601 UTC, second precision.
const tsFormat = "2006-01-02T15:04:05Z"

// Envelope is a single wire message.
//
// CorrelationID is always populated: it defaults to ID for originating
// messages and carries the triggering request's id on responses and errors.
// Status is omitted from the wire format entirely when empty, keeping
// fire-and-forget commands minimal.
type Envelope struct {
	Version       int            `json:"version"`
	Type          string         `json:"type"`
	ID            string         `json:"id"`
	CorrelationID string         `json:"correlationId"`
	TS            string         `json:"ts"`
	Action        string         `json:"action"`
	Status        string         `json:"status,omitempty"`
	Payload       map[string]any `json:"payload"`
	Meta          map[string]any `json:"meta"`
}

// Option customises an envelope during construction.
type Option func(*Envelope)

// WithType sets the message type (default "command").
func WithType(t string) Option {
	return func(e *Envelope) { e.Type = t }
}

// WithPayload sets the payload map.
func WithPayload(payload map[string]any) Option {
	return func(e *Envelope) { e.Payload = payload }
}

// WithStatus sets the optional status field.
func WithStatus(status string) Option {
	return func(e *Envelope) { e.Status = status }
}

// WithCorrelationID ties this envelope to the message id it answers.
func WithCorrelationID(id string) Option {
	return func(e *Envelope) { e.CorrelationID = id }
}

// WithMeta sets the meta map.
func WithMeta(meta map[string]any) Option {
	return func(e *Envelope) { e.Meta = meta }
}

// WithVersion overrides the schema version.
func WithVersion(v int) Option {
	return func(e *Envelope) { e.Version = v }
}

// WithID overrides the generated message id.
func WithID(id string) Option {
	return func(e *Envelope) { e.ID = id }
}

// WithTS overrides the generated timestamp.
func WithTS(ts string) Option {
	return func(e *Envelope) { e.TS = ts }
}

// New constructs an envelope for the given action.
//
// Defaults: version 1, type "command", a freshly generated id, correlation
// id equal to the id, current UTC timestamp, empty payload and meta.
func New(action string, opts ...Option) Envelope {
	e := Envelope{
		Version: Version,
		Type:    TypeCommand,
		Action:  action,
	}
	for _, opt := range opts {
		opt(&e)
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CorrelationID == "" {
		e.CorrelationID = e.ID
	}
	if e.TS == "" {
		e.TS = Now()
	}
	if e.Payload == nil {
		e.Payload = map[string]any{}
	}
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	return e
}

// Now returns the current UTC time in the wire timestamp format.
func Now() string {
	return time.Now().UTC().Format(tsFormat)
}

// Marshal serialises the envelope to its JSON wire form.
func (e Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshalling envelope: %w", err)
	}
	return data, nil
}

// Parse decodes a wire message, applying the same defaulting rules as New:
// missing version becomes 1, missing type becomes "command", a missing id
// is generated, a missing correlation id mirrors the id, and a missing
// timestamp is stamped now. Unrecognised type or action values pass through
// unchanged.
func Parse(data []byte) (Envelope, error) {
	var raw struct {
		Version       *int           `json:"version"`
		Type          string         `json:"type"`
		ID            string         `json:"id"`
		CorrelationID string         `json:"correlationId"`
		TS            string         `json:"ts"`
		Action        string         `json:"action"`
		Status        string         `json:"status"`
		Payload       map[string]any `json:"payload"`
		Meta          map[string]any `json:"meta"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, fmt.Errorf("parsing envelope: %w", err)
	}

	version := Version
	if raw.Version != nil {
		version = *raw.Version
	}

	return New(raw.Action,
		WithVersion(version),
		WithType(defaultString(raw.Type, TypeCommand)),
		WithID(raw.ID),
		WithCorrelationID(raw.CorrelationID),
		WithTS(raw.TS),
		WithStatus(raw.Status),
		WithPayload(raw.Payload),
		WithMeta(raw.Meta),
	), nil
}

// defaultString returns fallback when s is empty.
func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
