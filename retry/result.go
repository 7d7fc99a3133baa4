package retry

import "time"

// Result is the structural outcome of one attempt that did not fail at the
// transport level. The attempt function fills in whatever the response
// carried; the interceptor only reads the fields below.
type Result struct {
	// OK marks a terminal success.
	OK bool

	// Code is the numeric status class of a failed response, if any.
	Code int

	// RetryAfter is the server-declared wait hint. HasRetryAfter
	// distinguishes an absent hint from a zero one.
	RetryAfter    time.Duration
	HasRetryAfter bool

	// Body carries the decoded response, opaque to the interceptor.
	Body any
}

// OutcomeKind is the retry-relevant class of a result.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	RateLimited
	ServerError
	OtherError
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case RateLimited:
		return "rate_limited"
	case ServerError:
		return "server_error"
	default:
		return "other_error"
	}
}

// Outcome is a Result classified once, at the boundary where it is received.
type Outcome struct {
	Kind       OutcomeKind
	Code       int
	RetryAfter time.Duration
}

// Outcome classifies the result. A wait hint wins over the status class, so
// a hinted 503 is rate-limited, not a server error.
func (r Result) Outcome() Outcome {
	switch {
	case r.OK:
		return Outcome{Kind: Success}
	case r.HasRetryAfter:
		return Outcome{Kind: RateLimited, Code: r.Code, RetryAfter: r.RetryAfter}
	case r.Code >= 500:
		return Outcome{Kind: ServerError, Code: r.Code}
	default:
		return Outcome{Kind: OtherError, Code: r.Code}
	}
}
