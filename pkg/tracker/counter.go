// Package tracker counts generation requests for one generator instance.
package tracker

import "sync/atomic"

// Counter tracks request, hit and success counts. The zero value is ready
// to use; counters only grow.
type Counter struct {
	totalRequests         atomic.Int64
	successfulGenerations atomic.Int64
	cacheHits             atomic.Int64
}

// Snapshot is a point-in-time copy of a Counter.
type Snapshot struct {
	TotalRequests         int64
	SuccessfulGenerations int64
	CacheHits             int64
}

// New returns an empty Counter.
func New() *Counter {
	return &Counter{}
}

// Request records an incoming generation request.
func (c *Counter) Request() { c.totalRequests.Add(1) }

// Success records a result produced by a provider.
func (c *Counter) Success() { c.successfulGenerations.Add(1) }

// CacheHit records a result served without a provider call.
func (c *Counter) CacheHit() { c.cacheHits.Add(1) }

// Snapshot returns the current counts.
func (c *Counter) Snapshot() Snapshot {
	return Snapshot{
		TotalRequests:         c.totalRequests.Load(),
		SuccessfulGenerations: c.successfulGenerations.Load(),
		CacheHits:             c.cacheHits.Load(),
	}
}
