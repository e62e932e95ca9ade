package tracker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounter(t *testing.T) {
	c := New()
	c.Request()
	c.Request()
	c.Success()
	c.CacheHit()

	assert.Equal(t, Snapshot{TotalRequests: 2, SuccessfulGenerations: 1, CacheHits: 1}, c.Snapshot())
}

func TestCounterConcurrent(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Request()
			c.CacheHit()
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	assert.Equal(t, int64(50), s.TotalRequests)
	assert.Equal(t, int64(50), s.CacheHits)
	assert.Equal(t, int64(0), s.SuccessfulGenerations)
}
