package retry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/redial/report"
)

// fakeClock replaces the interceptor's sleep and records requested delays.
type fakeClock struct {
	delays []time.Duration
}

func (c *fakeClock) install(i *Interceptor) {
	i.sleep = func(ctx context.Context, d time.Duration) error {
		c.delays = append(c.delays, d)
		return nil
	}
}

// captureReporter records every event handed to the sink.
type captureReporter struct {
	mu     sync.Mutex
	events []report.Event
}

func (r *captureReporter) Report(_ context.Context, ev report.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *captureReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestDo_SuccessFirstTry(t *testing.T) {
	sink := &captureReporter{}
	in := New(Policy{Reporter: sink})
	clock := &fakeClock{}
	clock.install(in)

	calls := 0
	attempt := func(ctx context.Context, callID string, payload any) (Result, error) {
		calls++
		return Result{OK: true, Body: "pong"}, nil
	}

	res, err := in.Do(context.Background(), attempt, "ping", nil)
	if err != nil {
		t.Fatalf("Expected success, got error: %v", err)
	}
	if !res.OK || res.Body != "pong" {
		t.Errorf("Expected the attempt's result back, got %+v", res)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if len(clock.delays) != 0 {
		t.Errorf("Expected no waits, got %v", clock.delays)
	}
	if sink.count() != 0 {
		t.Errorf("Expected no reports, got %d", sink.count())
	}
}

func TestDo_TransportRetriesUntilSuccess(t *testing.T) {
	in := New(Policy{})
	clock := &fakeClock{}
	clock.install(in)

	calls := 0
	attempt := func(ctx context.Context, callID string, payload any) (Result, error) {
		calls++
		if calls <= 4 {
			return Result{}, Transport(errors.New("connection reset"))
		}
		return Result{OK: true}, nil
	}

	res, err := in.Do(context.Background(), attempt, "get_block", nil)
	if err != nil {
		t.Fatalf("Expected success, got error: %v", err)
	}
	if !res.OK {
		t.Error("Expected ok result")
	}
	if calls != 5 {
		t.Errorf("Expected 5 calls (4 retries), got %d", calls)
	}

	want := []time.Duration{3 * time.Second, 6 * time.Second, 12 * time.Second, 24 * time.Second}
	assertDelays(t, clock.delays, want)
}

func TestDo_TransportBackoffCeiling(t *testing.T) {
	in := New(Policy{})
	clock := &fakeClock{}
	clock.install(in)

	calls := 0
	attempt := func(ctx context.Context, callID string, payload any) (Result, error) {
		calls++
		if calls <= 14 {
			return Result{}, Transport(errors.New("connection reset"))
		}
		return Result{OK: true}, nil
	}

	if _, err := in.Do(context.Background(), attempt, "get_block", nil); err != nil {
		t.Fatalf("Expected success, got error: %v", err)
	}

	for _, d := range clock.delays {
		if d > maxBackoff {
			t.Fatalf("Delay %v exceeded the ceiling", d)
		}
	}
	// 3s doubles past the ceiling on the 11th growth, so the tail plateaus.
	last := clock.delays[len(clock.delays)-1]
	if last != maxBackoff {
		t.Errorf("Expected final delay %v, got %v", maxBackoff, last)
	}
}

func TestDo_WaitHintHonoredAndResetsBackoff(t *testing.T) {
	in := New(Policy{})
	clock := &fakeClock{}
	clock.install(in)

	calls := 0
	attempt := func(ctx context.Context, callID string, payload any) (Result, error) {
		calls++
		switch calls {
		case 1, 2:
			return Result{}, Transport(errors.New("connection reset"))
		case 3:
			return Result{Code: 429, RetryAfter: 42 * time.Second, HasRetryAfter: true}, nil
		case 4:
			return Result{}, Transport(errors.New("connection reset"))
		default:
			return Result{OK: true}, nil
		}
	}

	res, err := in.Do(context.Background(), attempt, "get_block", nil)
	if err != nil {
		t.Fatalf("Expected success, got error: %v", err)
	}
	if !res.OK {
		t.Error("Expected ok result")
	}

	// The hinted wait is honored exactly, then the backoff restarts at 3s.
	want := []time.Duration{3 * time.Second, 6 * time.Second, 42 * time.Second, 3 * time.Second}
	assertDelays(t, clock.delays, want)
}

func TestDo_WaitHintAboveCapIsTerminal(t *testing.T) {
	sink := &captureReporter{}
	in := New(Policy{MaxDelay: 30 * time.Second, Reporter: sink})
	clock := &fakeClock{}
	clock.install(in)

	calls := 0
	attempt := func(ctx context.Context, callID string, payload any) (Result, error) {
		calls++
		return Result{Code: 429, RetryAfter: 60 * time.Second, HasRetryAfter: true}, nil
	}

	res, err := in.Do(context.Background(), attempt, "get_block", nil)
	if err != nil {
		t.Fatalf("Expected a result, got error: %v", err)
	}
	if res.OK || res.Code != 429 {
		t.Errorf("Expected the rate-limited result back, got %+v", res)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if len(clock.delays) != 0 {
		t.Errorf("Expected no waits, got %v", clock.delays)
	}
	if sink.count() != 0 {
		t.Errorf("Expected no reports for a structural result, got %d", sink.count())
	}
}

func TestDo_ServerErrorBudget(t *testing.T) {
	in := New(Policy{MaxAttempts: 2})
	clock := &fakeClock{}
	clock.install(in)

	calls := 0
	attempt := func(ctx context.Context, callID string, payload any) (Result, error) {
		calls++
		return Result{Code: 503}, nil
	}

	res, err := in.Do(context.Background(), attempt, "get_block", nil)
	if err != nil {
		t.Fatalf("Expected a result, got error: %v", err)
	}
	if res.OK || res.Code != 503 {
		t.Errorf("Expected the last 503 back, got %+v", res)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls (2 retry rounds), got %d", calls)
	}

	want := []time.Duration{3 * time.Second, 6 * time.Second}
	assertDelays(t, clock.delays, want)
}

func TestDo_RateLimitRoundsConsumeBudget(t *testing.T) {
	in := New(Policy{MaxAttempts: 1})
	clock := &fakeClock{}
	clock.install(in)

	calls := 0
	attempt := func(ctx context.Context, callID string, payload any) (Result, error) {
		calls++
		return Result{Code: 429, RetryAfter: time.Second, HasRetryAfter: true}, nil
	}

	res, err := in.Do(context.Background(), attempt, "get_block", nil)
	if err != nil {
		t.Fatalf("Expected a result, got error: %v", err)
	}
	if res.Code != 429 {
		t.Errorf("Expected the last 429 back, got %+v", res)
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls (1 retry round), got %d", calls)
	}
	assertDelays(t, clock.delays, []time.Duration{time.Second})
}

func TestDo_ServerErrorOptOut(t *testing.T) {
	in := New(Policy{DisableServerRetry: true})
	clock := &fakeClock{}
	clock.install(in)

	calls := 0
	attempt := func(ctx context.Context, callID string, payload any) (Result, error) {
		calls++
		return Result{Code: 503}, nil
	}

	res, err := in.Do(context.Background(), attempt, "get_block", nil)
	if err != nil {
		t.Fatalf("Expected a result, got error: %v", err)
	}
	if res.Code != 503 || calls != 1 || len(clock.delays) != 0 {
		t.Errorf("Expected immediate return of the 503, got res=%+v calls=%d delays=%v",
			res, calls, clock.delays)
	}
}

func TestDo_TransportOptOutReportsAndReturns(t *testing.T) {
	sink := &captureReporter{}
	in := New(Policy{DisableTransportRetry: true, Reporter: sink})
	clock := &fakeClock{}
	clock.install(in)

	base := errors.New("connection reset")
	calls := 0
	attempt := func(ctx context.Context, callID string, payload any) (Result, error) {
		calls++
		return Result{}, Transport(base)
	}

	_, err := in.Do(context.Background(), attempt, "get_block", nil)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, base) {
		t.Errorf("Expected the attempt's error back, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	// Reported once where the inner loop gives up and once at the outer
	// boundary.
	if sink.count() != 2 {
		t.Errorf("Expected 2 reports, got %d", sink.count())
	}
}

func TestDo_UnclassifiedErrorReportedTwice(t *testing.T) {
	sink := &captureReporter{}
	in := New(Policy{Reporter: sink})
	clock := &fakeClock{}
	clock.install(in)

	boom := errors.New("boom")
	attempt := func(ctx context.Context, callID string, payload any) (Result, error) {
		return Result{}, boom
	}

	_, err := in.Do(context.Background(), attempt, "get_block", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the original error back, got %v", err)
	}
	if sink.count() != 2 {
		t.Errorf("Expected 2 reports, got %d", sink.count())
	}
	if len(clock.delays) != 0 {
		t.Errorf("Expected no waits, got %v", clock.delays)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, ev := range sink.events {
		if ev.CallID != "get_block" {
			t.Errorf("Expected call id get_block, got %s", ev.CallID)
		}
		if ev.Message != "boom" {
			t.Errorf("Expected message boom, got %s", ev.Message)
		}
	}
	if sink.events[0].ID == sink.events[1].ID {
		t.Error("Expected distinct event IDs for duplicate reports")
	}
}

func TestDo_CancelDuringWait(t *testing.T) {
	sink := &captureReporter{}
	in := New(Policy{Reporter: sink}) // real clock: first backoff is 3s

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	attempt := func(ctx context.Context, callID string, payload any) (Result, error) {
		return Result{}, Transport(errors.New("connection reset"))
	}

	start := time.Now()
	_, err := in.Do(ctx, attempt, "get_block", nil)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Expected the abort to interrupt the wait promptly")
	}
	if sink.count() == 0 {
		t.Error("Expected the cancellation to be reported")
	}
}

func TestDo_ReporterPanicDoesNotEscape(t *testing.T) {
	in := New(Policy{Reporter: panicReporter{}})
	clock := &fakeClock{}
	clock.install(in)

	boom := errors.New("boom")
	attempt := func(ctx context.Context, callID string, payload any) (Result, error) {
		return Result{}, boom
	}

	_, err := in.Do(context.Background(), attempt, "get_block", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the original error despite the broken sink, got %v", err)
	}
}

type panicReporter struct{}

func (panicReporter) Report(context.Context, report.Event) {
	panic("sink is broken")
}

func TestWrap(t *testing.T) {
	in := New(Policy{})
	clock := &fakeClock{}
	clock.install(in)

	calls := 0
	wrapped := in.Wrap(func(ctx context.Context, callID string, payload any) (Result, error) {
		calls++
		if calls == 1 {
			return Result{}, Transport(errors.New("connection reset"))
		}
		return Result{OK: true}, nil
	})

	res, err := wrapped(context.Background(), "get_block", "payload")
	if err != nil {
		t.Fatalf("Expected success, got error: %v", err)
	}
	if !res.OK || calls != 2 {
		t.Errorf("Expected retried success, got res=%+v calls=%d", res, calls)
	}
}

func assertDelays(t *testing.T, got, want []time.Duration) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %d waits %v, got %d waits %v", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Wait %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}
