// Package audit records the invocation, step and outcome trail of
// state-changing commands and fans it out to pluggable sinks.
package audit

import (
	"context"
	"errors"
	"time"
)

// EventKind names one of the three audit record types.
type EventKind string

const (
	KindInvocation EventKind = "invocation"
	KindStep       EventKind = "step"
	KindOutcome    EventKind = "outcome"
)

// Event is a single append-only audit record.
//
// CommandType and Instruction are set on invocations only; Result on steps
// and outcomes only.
type Event struct {
	Kind         EventKind `json:"kind"`
	InvocationID string    `json:"invocation_id"`
	CommandType  string    `json:"command_type,omitempty"`
	Instruction  string    `json:"instruction,omitempty"`
	Result       string    `json:"result,omitempty"`
	At           time.Time `json:"at"`
}

// Sink persists or forwards audit events. Sinks that hold resources may also
// implement io.Closer; the Recorder closes them on shutdown.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// Invocation is an invocation with the steps and outcome recorded for it.
type Invocation struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Instruction string    `json:"instruction"`
	CreatedAt   time.Time `json:"created_at"`
	Steps       []Record  `json:"steps"`
	Outcome     *Record   `json:"outcome,omitempty"`
}

// Record is a step or outcome result.
type Record struct {
	Result    string    `json:"result"`
	CreatedAt time.Time `json:"created_at"`
}

// History reads back recorded invocations.
type History interface {
	// History returns up to limit invocations, newest first. A non-positive
	// limit selects DefaultHistoryLimit.
	History(ctx context.Context, limit int) ([]Invocation, error)
}

// DefaultHistoryLimit bounds History when no limit is given.
const DefaultHistoryLimit = 50

// Errors.
var (
	ErrQueueFull        = errors.New("audit queue full")
	ErrRecorderClosed   = errors.New("audit recorder closed")
	ErrUnknownEventKind = errors.New("unknown audit event kind")
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
