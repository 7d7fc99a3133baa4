package report

import (
	"context"
	"log/slog"
)

// LogReporter writes failure events to a slog logger.
type LogReporter struct {
	log *slog.Logger
}

// NewLog creates a LogReporter. A nil logger uses slog.Default.
func NewLog(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{log: logger}
}

func (r *LogReporter) Report(_ context.Context, ev Event) {
	r.log.Error("call failed",
		"event_id", ev.ID,
		"call_id", ev.CallID,
		"error", ev.Message,
	)
}
