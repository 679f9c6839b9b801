package observability

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/slotbook/slotbook-cli/internal/api"
)

// Query parameters whose values never reach the trace output. Keys compare
// lowercased.
var redactedParams = []string{
	"access", "refresh", "access_token", "refresh_token",
	"token", "uid", "api_key", "password", "secret",
}

// TraceWriter prints one line per gateway event, stamped with the seconds
// elapsed since the writer was created or last Reset.
type TraceWriter struct {
	mu    sync.Mutex
	out   io.Writer
	since time.Time
}

// NewTraceWriter traces to stderr.
func NewTraceWriter() *TraceWriter {
	return NewTraceWriterTo(os.Stderr)
}

// NewTraceWriterTo traces to w.
func NewTraceWriterTo(w io.Writer) *TraceWriter {
	return &TraceWriter{out: w, since: time.Now()}
}

// Reset restarts the relative clock.
func (t *TraceWriter) Reset() {
	t.mu.Lock()
	t.since = time.Now()
	t.mu.Unlock()
}

func (t *TraceWriter) line(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stamp := fmt.Sprintf("[%.3fs] ", time.Since(t.since).Seconds())
	fmt.Fprintf(t.out, stamp+format+"\n", args...)
}

// WriteOperationStart: [0.012s] Calling Appointments.SetStatus
func (t *TraceWriter) WriteOperationStart(op api.OperationInfo) {
	t.line("Calling %s.%s", op.Service, op.Operation)
}

// WriteOperationEnd: [0.140s] Completed Appointments.SetStatus (128ms)
func (t *TraceWriter) WriteOperationEnd(op api.OperationInfo, err error, d time.Duration) {
	if err != nil {
		t.line("Failed %s.%s: %v", op.Service, op.Operation, err)
		return
	}
	t.line("Completed %s.%s (%dms)", op.Service, op.Operation, d.Milliseconds())
}

// WriteRequestStart: [0.013s]   -> GET /api/appointments/?status=pending
func (t *TraceWriter) WriteRequestStart(info api.RequestInfo) {
	t.line("  -> %s %s", info.Method, scrubURL(info.URL))
}

// WriteRequestEnd: [0.058s]   <- 200 (45ms)
func (t *TraceWriter) WriteRequestEnd(_ api.RequestInfo, result api.RequestResult) {
	if result.Error != nil {
		t.line("  <- ERROR: %v", result.Error)
		return
	}
	t.line("  <- %d (%dms)", result.StatusCode, result.Duration.Milliseconds())
}

// WriteRefresh reports the outcome of a refresh triggered by a 401.
func (t *TraceWriter) WriteRefresh(info api.RefreshInfo) {
	trigger := scrubURL(info.Trigger)
	if info.Error != nil {
		t.line("Session refresh failed after 401 on %s: %v", trigger, info.Error)
		return
	}
	t.line("Session refreshed after 401 on %s (%dms)", trigger, info.Duration.Milliseconds())
}

// WriteReplay reports a request re-issued with fresh credentials. waited is
// true when another caller performed the refresh.
func (t *TraceWriter) WriteReplay(info api.RequestInfo, waited bool) {
	var suffix string
	if waited {
		suffix = " (waited)"
	}
	t.line("  REPLAY %s %s%s", info.Method, scrubURL(info.URL), suffix)
}

// scrubURL replaces credential-bearing query values with [REDACTED]. A URL
// that does not parse is hidden entirely.
func scrubURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable URL]"
	}
	q := u.Query()
	hit := false
	for key := range q {
		if slices.Contains(redactedParams, strings.ToLower(key)) {
			q.Set(key, "[REDACTED]")
			hit = true
		}
	}
	if !hit {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}
