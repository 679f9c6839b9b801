package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slotbook/slotbook-cli/internal/api"
)

func TestCLIHooks_SetLevel(t *testing.T) {
	h := NewCLIHooks(0, nil, nil)

	assert.Equal(t, 0, h.Level())

	h.SetLevel(2)
	assert.Equal(t, 2, h.Level())
}

func emitAll(h *CLIHooks) {
	ctx := context.Background()
	op := api.OperationInfo{Service: "Appointments", Operation: "SetStatus", ResourceID: 7}
	ctx = h.OnOperationStart(ctx, op)

	info := api.RequestInfo{Method: "PATCH", URL: "/appointments/7/", Attempt: 1}
	ctx = h.OnRequestStart(ctx, info)
	h.OnRequestEnd(ctx, info, api.RequestResult{StatusCode: 401, Duration: 20 * time.Millisecond, Error: errors.New("unauthorized")})

	h.OnRefresh(ctx, api.RefreshInfo{Trigger: "/appointments/7/", Duration: 30 * time.Millisecond})

	replay := info
	replay.Attempt = 2
	h.OnReplay(ctx, replay, false)
	h.OnRequestEnd(ctx, replay, api.RequestResult{StatusCode: 200, Duration: 25 * time.Millisecond})

	h.OnOperationEnd(ctx, op, nil, 80*time.Millisecond)
}

func TestCLIHooks_Level0_Silent(t *testing.T) {
	var buf bytes.Buffer
	collector := NewSessionCollector()
	h := NewCLIHooks(0, collector, NewTraceWriterTo(&buf))

	emitAll(h)

	assert.Equal(t, 0, buf.Len(), "expected no output at level 0")

	summary := collector.Summary()
	assert.Equal(t, 1, summary.TotalOperations)
	assert.Equal(t, 2, summary.TotalRequests)
	assert.Equal(t, 1, summary.FailedRequests)
	assert.Equal(t, 1, summary.Unauthorized)
	assert.Equal(t, 1, summary.Refreshes)
	assert.Equal(t, 1, summary.Replays)
	assert.Zero(t, summary.WaitedReplays)
}

func TestCLIHooks_Level1_OperationsAndRefreshes(t *testing.T) {
	var buf bytes.Buffer
	h := NewCLIHooks(1, nil, NewTraceWriterTo(&buf))

	emitAll(h)

	out := buf.String()
	assert.Contains(t, out, "Calling Appointments.SetStatus")
	assert.Contains(t, out, "Completed Appointments.SetStatus")
	assert.Contains(t, out, "Session refreshed after 401 on /appointments/7/")
	assert.NotContains(t, out, "->", "requests are not traced at level 1")
	assert.NotContains(t, out, "REPLAY")
}

func TestCLIHooks_Level2_Everything(t *testing.T) {
	var buf bytes.Buffer
	h := NewCLIHooks(2, nil, NewTraceWriterTo(&buf))

	emitAll(h)

	out := buf.String()
	assert.Contains(t, out, "-> PATCH /appointments/7/")
	assert.Contains(t, out, "<- ERROR: unauthorized")
	assert.Contains(t, out, "REPLAY PATCH /appointments/7/")
	assert.Contains(t, out, "<- 200 (25ms)")
}

func TestCLIHooks_FailedOperation(t *testing.T) {
	var buf bytes.Buffer
	collector := NewSessionCollector()
	h := NewCLIHooks(1, collector, NewTraceWriterTo(&buf))

	op := api.OperationInfo{Service: "Staff", Operation: "Delete"}
	ctx := h.OnOperationStart(context.Background(), op)
	h.OnOperationEnd(ctx, op, errors.New("not found"), time.Millisecond)
	h.OnRefresh(ctx, api.RefreshInfo{Trigger: "/staff/3/", Error: errors.New("token revoked")})
	h.OnReplay(ctx, api.RequestInfo{Method: "DELETE", URL: "/staff/3/", Attempt: 2}, true)

	assert.Contains(t, buf.String(), "Failed Staff.Delete: not found")
	assert.Contains(t, buf.String(), "Session refresh failed after 401 on /staff/3/: token revoked")

	s := collector.Summary()
	assert.Equal(t, 1, s.FailedOps)
	assert.Equal(t, 1, s.FailedRefreshes)
	assert.Equal(t, 1, s.WaitedReplays)
}

func TestCLIHooks_NilCollectorAndWriter(t *testing.T) {
	h := NewCLIHooks(2, nil, nil)
	assert.NotPanics(t, func() { emitAll(h) })
}
