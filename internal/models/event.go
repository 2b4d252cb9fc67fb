package models

import (
	"time"

	"github.com/google/uuid"
)

// Priority ranks how urgently an event should reach the user.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// ParsePriority maps catalog strings to a Priority, defaulting to medium.
func ParsePriority(s string) Priority {
	switch s {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "medium"
	}
}

// SpeechEventType is the reserved type for transcribed speech; it bypasses
// the event catalog and is rendered as display text only.
const SpeechEventType = "speech"

// EventIntent is one classified occurrence awaiting a notification decision.
// Immutable once created.
type EventIntent struct {
	ID         uuid.UUID
	EventType  string
	Confidence float64
	Payload    string
	Timestamp  time.Time
}

// NewEventIntent stamps an intent with an ID and the current time and clamps
// confidence into [0,1].
func NewEventIntent(eventType string, confidence float64, payload string) EventIntent {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return EventIntent{
		ID:         uuid.New(),
		EventType:  eventType,
		Confidence: confidence,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
}
