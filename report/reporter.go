// Package report delivers unrecoverable call failures to observability sinks.
// Reporting is fire-and-forget: a sink must swallow its own delivery failures
// and must never block or break the call path that invoked it. Sinks may
// receive the same failure more than once and must tolerate duplicates.
package report

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event describes one unrecoverable failure observed by the interceptor.
type Event struct {
	ID      string    `json:"id"      db:"id"`
	CallID  string    `json:"call_id" db:"call_id"`
	Message string    `json:"message" db:"message"`
	At      time.Time `json:"at"      db:"occurred_at"`
}

// NewEvent builds an Event for err with a fresh ID. Each report gets its own
// ID even when the same error is reported twice, so sinks can keep both.
func NewEvent(callID string, err error) Event {
	return Event{
		ID:      uuid.New().String(),
		CallID:  callID,
		Message: err.Error(),
		At:      time.Now().UTC(),
	}
}

// Reporter records failure events.
type Reporter interface {
	Report(ctx context.Context, ev Event)
}

type nopReporter struct{}

func (nopReporter) Report(context.Context, Event) {}

// Nop returns a reporter that discards everything.
func Nop() Reporter {
	return nopReporter{}
}

// Multi fans an event out to every configured sink.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, ev Event) {
	for _, r := range m {
		r.Report(ctx, ev)
	}
}
