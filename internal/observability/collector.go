// Package observability counts and traces what the gateway does during one
// CLI invocation.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/slotbook/slotbook-cli/internal/api"
)

// SessionMetrics is a snapshot of the counters for one invocation.
type SessionMetrics struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalRequests   int
	FailedRequests  int
	Unauthorized    int
	TotalOperations int
	FailedOps       int
	Refreshes       int
	FailedRefreshes int
	Replays         int
	WaitedReplays   int
	TotalLatency    time.Duration
}

// SessionCollector accumulates counters; it keeps no per-request history.
// Safe for concurrent use.
type SessionCollector struct {
	mu sync.Mutex
	m  SessionMetrics
}

func NewSessionCollector() *SessionCollector {
	return &SessionCollector{m: SessionMetrics{StartTime: time.Now()}}
}

func (c *SessionCollector) update(fn func(m *SessionMetrics)) {
	c.mu.Lock()
	fn(&c.m)
	c.mu.Unlock()
}

// RecordRequestInfo counts one HTTP exchange, including 401s that lead to a
// refresh.
func (c *SessionCollector) RecordRequestInfo(_ api.RequestInfo, result api.RequestResult) {
	c.update(func(m *SessionMetrics) {
		m.TotalRequests++
		m.TotalLatency += result.Duration
		if result.Error != nil {
			m.FailedRequests++
		}
		if result.StatusCode == http.StatusUnauthorized {
			m.Unauthorized++
		}
	})
}

// RecordOperationInfo counts one booking operation.
func (c *SessionCollector) RecordOperationInfo(_ api.OperationInfo, err error, _ time.Duration) {
	c.update(func(m *SessionMetrics) {
		m.TotalOperations++
		if err != nil {
			m.FailedOps++
		}
	})
}

func (c *SessionCollector) RecordRefresh(info api.RefreshInfo) {
	c.update(func(m *SessionMetrics) {
		m.Refreshes++
		if info.Error != nil {
			m.FailedRefreshes++
		}
	})
}

// RecordReplay counts a replayed request; waited marks replays that followed
// a refresh performed by another request.
func (c *SessionCollector) RecordReplay(waited bool) {
	c.update(func(m *SessionMetrics) {
		m.Replays++
		if waited {
			m.WaitedReplays++
		}
	})
}

// Summary returns the counters with EndTime set to now.
func (c *SessionCollector) Summary() SessionMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.m
	s.EndTime = time.Now()
	return s
}

// Reset zeroes every counter and restarts the clock.
func (c *SessionCollector) Reset() {
	c.update(func(m *SessionMetrics) {
		*m = SessionMetrics{StartTime: time.Now()}
	})
}

// Stats returns the summary as the map rendered under meta["stats"].
// Zero counters other than requests are omitted.
func (m SessionMetrics) Stats() map[string]any {
	stats := map[string]any{
		"requests":   m.TotalRequests,
		"elapsed_ms": m.EndTime.Sub(m.StartTime).Milliseconds(),
	}
	for key, n := range map[string]int{
		"failed_requests":  m.FailedRequests,
		"unauthorized":     m.Unauthorized,
		"refreshes":        m.Refreshes,
		"failed_refreshes": m.FailedRefreshes,
		"replays":          m.Replays,
	} {
		if n > 0 {
			stats[key] = n
		}
	}
	if m.TotalRequests > 0 {
		stats["avg_latency_ms"] = (m.TotalLatency / time.Duration(m.TotalRequests)).Milliseconds()
	}
	return stats
}
