package budget

import (
	"sync"
	"time"
)

// Quota is a soft, client-side monthly character budget. It approximates a
// provider's usage limit; the provider enforces the real one.
type Quota struct {
	mu     sync.Mutex
	limit  int64
	used   int64
	period time.Time
	now    func() time.Time
}

// New creates a Quota allowing limit characters per calendar month (UTC).
// A limit of zero or less disables metering.
func New(limit int64) *Quota {
	q := &Quota{limit: limit, now: time.Now}
	q.period = periodStart(q.now())
	return q
}

// Enabled reports whether the quota meters anything.
func (q *Quota) Enabled() bool {
	return q.limit > 0
}

// Allow reports whether n more characters fit in the remaining budget.
func (q *Quota) Allow(n int) bool {
	if !q.Enabled() {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollLocked()
	return int64(n) <= q.limit-q.used
}

// Consume records n characters against the current month.
func (q *Quota) Consume(n int) {
	if !q.Enabled() || n <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollLocked()
	q.used += int64(n)
}

// Used returns characters consumed this month.
func (q *Quota) Used() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollLocked()
	return q.used
}

// Remaining returns characters left this month, never negative. When
// metering is disabled it returns zero.
func (q *Quota) Remaining() int64 {
	if !q.Enabled() {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollLocked()
	return max(q.limit-q.used, 0)
}

// Limit returns the configured monthly limit.
func (q *Quota) Limit() int64 {
	return q.limit
}

func (q *Quota) rollLocked() {
	if start := periodStart(q.now()); start.After(q.period) {
		q.period = start
		q.used = 0
	}
}

func periodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
