package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/valentingnt/investr-sub000/internal/models"
)

// ErrRateLimitExceeded is returned when a slot could not be acquired within
// the bounded retry budget. The failover orchestrator treats it like any
// other provider-unavailable condition.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Window describes one call ceiling over a sliding span.
type Window struct {
	Limit int
	Span  time.Duration
}

// Budget is the per-provider ceiling configuration. Daily is optional; a
// zero-limit daily window is not enforced.
type Budget struct {
	Minute Window
	Daily  Window
}

// MinuteBudget builds a Budget with only a per-minute ceiling.
func MinuteBudget(perMinute int) Budget {
	return Budget{Minute: Window{Limit: perMinute, Span: time.Minute}}
}

// DailyBudget builds a Budget with both per-minute and per-day ceilings.
func DailyBudget(perMinute, perDay int) Budget {
	b := MinuteBudget(perMinute)
	b.Daily = Window{Limit: perDay, Span: 24 * time.Hour}
	return b
}

// windowState keeps the grant timestamps still inside the sliding span, in
// acquisition order. Its length never exceeds the window limit.
type windowState struct {
	Window
	calls []time.Time
}

// evict drops grants that have slid out of the window.
func (w *windowState) evict(now time.Time) {
	cutoff := now.Add(-w.Span)
	i := 0
	for i < len(w.calls) && !w.calls[i].After(cutoff) {
		i++
	}
	w.calls = w.calls[i:]
}

// freeAt returns when the oldest tracked grant leaves the window. Callers
// must ensure the window is non-empty.
func (w *windowState) freeAt() time.Time {
	return w.calls[0].Add(w.Span)
}

func (w *windowState) resetAt(now time.Time) time.Time {
	if len(w.calls) == 0 {
		return now
	}
	return w.freeAt()
}

type budgetState struct {
	minute windowState
	daily  windowState
}

// Limiter tracks per-provider call budgets over sliding windows: a grant is
// admitted only if it would not exceed the ceiling within any window-sized
// span ending now. All bookkeeping is guarded by a single mutex so
// check-and-record is atomic under concurrent quote requests.
type Limiter struct {
	mu         sync.Mutex
	budgets    map[string]*budgetState
	maxRetries int
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithMaxRetries bounds how many times AcquireSlot waits for a slot to free
// up before giving up with ErrRateLimitExceeded.
func WithMaxRetries(n int) Option {
	return func(l *Limiter) { l.maxRetries = n }
}

// New creates a Limiter for the given provider budgets.
func New(budgets map[string]Budget, opts ...Option) *Limiter {
	l := &Limiter{
		budgets:    make(map[string]*budgetState, len(budgets)),
		maxRetries: 3,
	}
	for key, b := range budgets {
		l.budgets[key] = &budgetState{
			minute: windowState{Window: b.Minute},
			daily:  windowState{Window: b.Daily},
		}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AcquireSlot consumes one call from the provider's budget. The common case
// is non-blocking; when the budget is exhausted the caller waits until the
// oldest grant in the blocking window slides out, retrying a bounded number
// of times. Providers without a configured budget are not gated.
func (l *Limiter) AcquireSlot(ctx context.Context, providerKey string) error {
	l.mu.Lock()
	state, ok := l.budgets[providerKey]
	l.mu.Unlock()
	if !ok {
		return nil
	}

	for attempt := 0; ; attempt++ {
		l.mu.Lock()
		now := time.Now()
		state.minute.evict(now)
		state.daily.evict(now)

		if len(state.minute.calls) < state.minute.Limit &&
			(state.daily.Limit <= 0 || len(state.daily.calls) < state.daily.Limit) {
			state.minute.calls = append(state.minute.calls, now)
			if state.daily.Limit > 0 {
				state.daily.calls = append(state.daily.calls, now)
			}
			l.mu.Unlock()
			return nil
		}

		// Wait until the oldest grant in whichever window is blocking
		// slides out.
		var wait time.Duration
		if len(state.minute.calls) >= state.minute.Limit && len(state.minute.calls) > 0 {
			wait = state.minute.freeAt().Sub(now)
		}
		if state.daily.Limit > 0 && len(state.daily.calls) >= state.daily.Limit {
			if w := state.daily.freeAt().Sub(now); w > wait {
				wait = w
			}
		}
		l.mu.Unlock()

		if attempt >= l.maxRetries {
			return fmt.Errorf("%s: %w", providerKey, ErrRateLimitExceeded)
		}
		if wait <= 0 {
			wait = time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Usage returns a snapshot of every provider's budget, sorted by provider
// key, for the usage-monitoring surface. Counts reflect the grants still
// inside each sliding window; the reset time is when the oldest of them
// slides out.
func (l *Limiter) Usage() []models.ProviderUsage {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	usage := make([]models.ProviderUsage, 0, len(l.budgets))
	for key, state := range l.budgets {
		state.minute.evict(now)
		state.daily.evict(now)

		u := models.ProviderUsage{
			Provider:      key,
			WindowCalls:   len(state.minute.calls),
			WindowLimit:   state.minute.Limit,
			WindowResetAt: state.minute.resetAt(now),
		}
		if state.daily.Limit > 0 {
			u.DailyCalls = len(state.daily.calls)
			u.DailyLimit = state.daily.Limit
			reset := state.daily.resetAt(now)
			u.DailyResetAt = &reset
		}
		usage = append(usage, u)
	}
	sort.Slice(usage, func(i, j int) bool { return usage[i].Provider < usage[j].Provider })
	return usage
}
