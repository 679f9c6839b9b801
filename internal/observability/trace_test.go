package observability

import (
	"bytes"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slotbook/slotbook-cli/internal/api"
)

var tracePrefix = regexp.MustCompile(`^\[\d+\.\d{3}s\]`)

func TestTraceWriter_Operation(t *testing.T) {
	var buf bytes.Buffer
	w := NewTraceWriterTo(&buf)

	op := api.OperationInfo{Service: "Appointments", Operation: "Create"}
	w.WriteOperationStart(op)
	assert.Regexp(t, tracePrefix, buf.String())
	assert.Contains(t, buf.String(), "Calling Appointments.Create")

	buf.Reset()
	w.WriteOperationEnd(op, nil, 42*time.Millisecond)
	assert.Contains(t, buf.String(), "Completed Appointments.Create (42ms)")

	buf.Reset()
	w.WriteOperationEnd(op, errors.New("slot taken"), time.Millisecond)
	assert.Contains(t, buf.String(), "Failed Appointments.Create: slot taken")
}

func TestTraceWriter_Request(t *testing.T) {
	var buf bytes.Buffer
	w := NewTraceWriterTo(&buf)

	w.WriteRequestStart(api.RequestInfo{Method: "GET", URL: "http://127.0.0.1/api/appointments/?status=pending"})
	assert.Contains(t, buf.String(), "  -> GET http://127.0.0.1/api/appointments/?status=pending")

	buf.Reset()
	w.WriteRequestEnd(api.RequestInfo{}, api.RequestResult{StatusCode: 201, Duration: 12 * time.Millisecond})
	assert.Contains(t, buf.String(), "  <- 201 (12ms)")

	buf.Reset()
	w.WriteRequestEnd(api.RequestInfo{}, api.RequestResult{Error: errors.New("connection refused")})
	assert.Contains(t, buf.String(), "  <- ERROR: connection refused")
}

func TestTraceWriter_RefreshAndReplay(t *testing.T) {
	var buf bytes.Buffer
	w := NewTraceWriterTo(&buf)

	w.WriteRefresh(api.RefreshInfo{Trigger: "/foo", Duration: 50 * time.Millisecond})
	assert.Contains(t, buf.String(), "Session refreshed after 401 on /foo (50ms)")

	buf.Reset()
	w.WriteReplay(api.RequestInfo{Method: "GET", URL: "/bar", Attempt: 2}, true)
	assert.Contains(t, buf.String(), "REPLAY GET /bar (waited)")

	buf.Reset()
	w.WriteReplay(api.RequestInfo{Method: "GET", URL: "/foo", Attempt: 2}, false)
	assert.NotContains(t, buf.String(), "waited")
}

func TestTraceWriter_Reset(t *testing.T) {
	var buf bytes.Buffer
	w := NewTraceWriterTo(&buf)
	w.since = time.Now().Add(-time.Hour)

	w.Reset()
	w.WriteOperationStart(api.OperationInfo{Service: "Staff", Operation: "List"})
	assert.Contains(t, buf.String(), "[0.0")
}

func TestScrubURL(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"no query", "https://api.slotbook.app/api/staff/", "https://api.slotbook.app/api/staff/"},
		{"safe params", "/appointments/?status=pending&page=2", "/appointments/?status=pending&page=2"},
		{"token", "/users/activation/?uid=abc&token=xyz", "/users/activation/?token=%5BREDACTED%5D&uid=%5BREDACTED%5D"},
		{"case insensitive", "/x?Password=hunter2", "/x?Password=%5BREDACTED%5D"},
		{"unparseable", "http://[::1", "[unparseable URL]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scrubURL(tt.in))
		})
	}
}
