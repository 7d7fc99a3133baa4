package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/redial/internal/metrics"
	"github.com/vietddude/redial/report"
)

// Attempt performs one raw remote-call try. It returns a structural Result
// when a response was obtained (successful or not) and an error when the
// attempt could not complete.
type Attempt func(ctx context.Context, callID string, payload any) (Result, error)

// Interceptor decorates attempts with retry behavior per its Policy.
// It is safe for concurrent use; all per-call state is call-local.
type Interceptor struct {
	policy   Policy
	reporter report.Reporter
	log      *slog.Logger

	// sleep is stubbed in tests to observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Interceptor. The policy, including its reporting sink, is
// resolved here once; nothing is constructed on the call path.
func New(policy Policy) *Interceptor {
	reporter := policy.Reporter
	if reporter == nil {
		reporter = report.Nop()
	}
	return &Interceptor{
		policy:   policy,
		reporter: reporter,
		log:      slog.Default(),
		sleep:    sleep,
	}
}

// callState lives for one top-level call. The backoff is shared between
// transport and server-error retries and resets when a wait hint is honored.
type callState struct {
	remaining int
	backoff   time.Duration
}

// Do runs next until it produces a terminal result or an unrecoverable
// error. The returned Result is exactly what next produced on its last
// attempt; the returned error is exactly what next (or an interrupted wait)
// raised.
func (i *Interceptor) Do(ctx context.Context, next Attempt, callID string, payload any) (Result, error) {
	st := &callState{
		remaining: i.policy.MaxAttempts,
		backoff:   initialBackoff,
	}

	for {
		res, err := i.obtain(ctx, next, callID, payload, st)
		if err != nil {
			// Outer boundary: errors escaping the inner loop are
			// reported again. Sinks tolerate duplicates.
			i.report(ctx, callID, err)
			metrics.CallsTotal.WithLabelValues("error").Inc()
			return Result{}, err
		}

		out := res.Outcome()
		if out.Kind == Success {
			metrics.CallsTotal.WithLabelValues("ok").Inc()
			return res, nil
		}

		// Budget exhausted: hand back the last result even if it is
		// still a retryable shape.
		if i.policy.MaxAttempts > 0 && st.remaining <= 0 {
			metrics.CallsTotal.WithLabelValues("exhausted").Inc()
			return res, nil
		}

		switch out.Kind {
		case RateLimited:
			if i.policy.MaxDelay > 0 && out.RetryAfter > i.policy.MaxDelay {
				metrics.CallsTotal.WithLabelValues("failed").Inc()
				return res, nil
			}
			i.log.Warn("Rate limited, honoring wait hint",
				"call_id", callID,
				"delay", out.RetryAfter,
			)
			metrics.RetriesTotal.WithLabelValues(out.Kind.String()).Inc()
			metrics.WaitSeconds.Observe(out.RetryAfter.Seconds())
			if werr := i.sleep(ctx, out.RetryAfter); werr != nil {
				i.report(ctx, callID, werr)
				metrics.CallsTotal.WithLabelValues("cancelled").Inc()
				return Result{}, werr
			}
			st.backoff = initialBackoff

		case ServerError:
			if i.policy.DisableServerRetry {
				metrics.CallsTotal.WithLabelValues("failed").Inc()
				return res, nil
			}
			i.log.Warn("Server error, retrying",
				"call_id", callID,
				"code", out.Code,
				"delay", st.backoff,
			)
			metrics.RetriesTotal.WithLabelValues(out.Kind.String()).Inc()
			metrics.WaitSeconds.Observe(st.backoff.Seconds())
			if werr := i.sleep(ctx, st.backoff); werr != nil {
				i.report(ctx, callID, werr)
				metrics.CallsTotal.WithLabelValues("cancelled").Inc()
				return Result{}, werr
			}
			st.backoff = growBackoff(st.backoff)

		default:
			metrics.CallsTotal.WithLabelValues("failed").Inc()
			return res, nil
		}

		st.remaining--
	}
}

// Wrap is the decorator form of Do.
func (i *Interceptor) Wrap(next Attempt) Attempt {
	return func(ctx context.Context, callID string, payload any) (Result, error) {
		return i.Do(ctx, next, callID, payload)
	}
}

// obtain is the inner loop: it retries transport failures without an attempt
// cap until the attempt yields a structural result, the context aborts, or a
// non-transport failure occurs. Escaping errors are reported before return.
func (i *Interceptor) obtain(ctx context.Context, next Attempt, callID string, payload any, st *callState) (Result, error) {
	for {
		res, err := next(ctx, callID, payload)
		if err == nil {
			return res, nil
		}

		if !IsTransport(err) || ctx.Err() != nil || i.policy.DisableTransportRetry {
			i.report(ctx, callID, err)
			return Result{}, err
		}

		i.log.Debug("Transport failure, retrying",
			"call_id", callID,
			"delay", st.backoff,
			"error", err,
		)
		metrics.RetriesTotal.WithLabelValues("transport").Inc()
		metrics.WaitSeconds.Observe(st.backoff.Seconds())

		if werr := i.sleep(ctx, st.backoff); werr != nil {
			i.report(ctx, callID, werr)
			return Result{}, werr
		}
		st.backoff = growBackoff(st.backoff)
	}
}

// report hands err to the sink. The sink is fire-and-forget: a panicking or
// failing sink must not take down the call path, and delivery still proceeds
// when the call's own context is already cancelled.
func (i *Interceptor) report(ctx context.Context, callID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			i.log.Warn("Reporter panicked", "call_id", callID, "panic", r)
		}
	}()

	metrics.ReportedErrors.Inc()
	i.reporter.Report(context.WithoutCancel(ctx), report.NewEvent(callID, err))
}
