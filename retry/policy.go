// Package retry wraps an outbound RPC attempt and transparently retries it.
//
// Two loops cooperate. The inner loop absorbs transport failures and retries
// without an attempt cap, sleeping with exponential backoff between tries.
// The outer loop inspects each structural result: server wait hints are
// honored exactly, 5xx results are retried with the shared backoff, and both
// kinds of round consume the configured attempt budget. Anything else is
// terminal. Errors that escape both loops are handed to the reporting sink
// and returned unchanged.
package retry

import (
	"time"

	"github.com/vietddude/redial/report"
)

// Policy controls retry behavior. It is read once at construction and shared
// by every call through the interceptor, so it must not be mutated afterward.
type Policy struct {
	// MaxDelay caps server wait hints. A hinted delay above the cap makes
	// the result terminal instead of retried. <= 0 means no cap.
	MaxDelay time.Duration

	// MaxAttempts budgets rate-limit and server-error retry rounds.
	// Transport retries are not counted. <= 0 means unlimited.
	MaxAttempts int

	// DisableTransportRetry surfaces transport failures to the caller
	// instead of absorbing them.
	DisableTransportRetry bool

	// DisableServerRetry surfaces 5xx results to the caller instead of
	// retrying them.
	DisableServerRetry bool

	// Reporter receives unrecoverable failures. Nil means no reporting.
	Reporter report.Reporter
}
