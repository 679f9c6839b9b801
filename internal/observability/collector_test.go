package observability

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slotbook/slotbook-cli/internal/api"
)

func TestSessionCollector_Requests(t *testing.T) {
	c := NewSessionCollector()

	get := api.RequestInfo{Method: "GET", URL: "/appointments/"}
	c.RecordRequestInfo(get, api.RequestResult{StatusCode: 200, Duration: 100 * time.Millisecond})
	c.RecordRequestInfo(get, api.RequestResult{StatusCode: 401, Duration: 50 * time.Millisecond, Error: errors.New("401")})

	s := c.Summary()
	assert.Equal(t, 2, s.TotalRequests)
	assert.Equal(t, 1, s.FailedRequests)
	assert.Equal(t, 1, s.Unauthorized)
	assert.Equal(t, 150*time.Millisecond, s.TotalLatency)
}

func TestSessionCollector_Operations(t *testing.T) {
	c := NewSessionCollector()

	c.RecordOperationInfo(api.OperationInfo{Service: "Appointments", Operation: "List"}, nil, time.Millisecond)
	c.RecordOperationInfo(api.OperationInfo{Service: "Appointments", Operation: "Create", IsMutation: true}, errors.New("conflict"), time.Millisecond)

	s := c.Summary()
	assert.Equal(t, 2, s.TotalOperations)
	assert.Equal(t, 1, s.FailedOps)
}

func TestSessionCollector_RefreshAndReplay(t *testing.T) {
	c := NewSessionCollector()

	c.RecordRefresh(api.RefreshInfo{Trigger: "/foo"})
	c.RecordRefresh(api.RefreshInfo{Trigger: "/bar", Error: errors.New("revoked")})
	c.RecordReplay(false)
	c.RecordReplay(true)
	c.RecordReplay(true)

	s := c.Summary()
	assert.Equal(t, 2, s.Refreshes)
	assert.Equal(t, 1, s.FailedRefreshes)
	assert.Equal(t, 3, s.Replays)
	assert.Equal(t, 2, s.WaitedReplays)
}

func TestSessionMetrics_Stats(t *testing.T) {
	start := time.Now()
	m := SessionMetrics{
		StartTime:     start,
		EndTime:       start.Add(1500 * time.Millisecond),
		TotalRequests: 4,
		Refreshes:     1,
		Replays:       2,
		TotalLatency:  200 * time.Millisecond,
	}

	stats := m.Stats()
	assert.Equal(t, 4, stats["requests"])
	assert.Equal(t, 1, stats["refreshes"])
	assert.Equal(t, 2, stats["replays"])
	assert.Equal(t, int64(50), stats["avg_latency_ms"])
	assert.Equal(t, int64(1500), stats["elapsed_ms"])
	assert.NotContains(t, stats, "failed_refreshes")
	assert.NotContains(t, stats, "unauthorized")

	empty := SessionMetrics{StartTime: start, EndTime: start}.Stats()
	assert.Equal(t, 0, empty["requests"])
	assert.NotContains(t, empty, "avg_latency_ms")
}

func TestSessionCollector_Reset(t *testing.T) {
	c := NewSessionCollector()
	c.RecordRequestInfo(api.RequestInfo{}, api.RequestResult{Duration: time.Second})
	c.RecordRefresh(api.RefreshInfo{})
	c.RecordReplay(true)

	before := c.Summary().StartTime
	time.Sleep(time.Millisecond)
	c.Reset()

	s := c.Summary()
	assert.Zero(t, s.TotalRequests)
	assert.Zero(t, s.Refreshes)
	assert.Zero(t, s.Replays)
	assert.Zero(t, s.TotalLatency)
	assert.True(t, s.StartTime.After(before))
}

func TestSessionCollector_Concurrent(t *testing.T) {
	c := NewSessionCollector()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(3)
		go func() { defer wg.Done(); c.RecordRequestInfo(api.RequestInfo{}, api.RequestResult{Duration: time.Millisecond}) }()
		go func() { defer wg.Done(); c.RecordReplay(true) }()
		go func() { defer wg.Done(); _ = c.Summary() }()
	}
	wg.Wait()

	s := c.Summary()
	assert.Equal(t, 50, s.TotalRequests)
	assert.Equal(t, 50, s.Replays)
}
