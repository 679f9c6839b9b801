package observability

import (
	"context"
	"sync"
	"time"

	"github.com/slotbook/slotbook-cli/internal/api"
)

var _ api.Hooks = (*CLIHooks)(nil)

// Trace levels selected by -v and -vv.
const (
	TraceOff        = 0
	TraceOperations = 1 // operations and refreshes
	TraceRequests   = 2 // plus every HTTP exchange and replay
)

// CLIHooks feeds gateway events to a collector (always, when set) and to a
// trace writer (gated by level). Either may be nil.
type CLIHooks struct {
	mu        sync.Mutex
	level     int
	collector *SessionCollector
	writer    *TraceWriter
}

func NewCLIHooks(level int, collector *SessionCollector, writer *TraceWriter) *CLIHooks {
	return &CLIHooks{level: level, collector: collector, writer: writer}
}

// SetLevel changes the trace level at runtime.
func (h *CLIHooks) SetLevel(level int) {
	h.mu.Lock()
	h.level = level
	h.mu.Unlock()
}

func (h *CLIHooks) Level() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

// tracer returns the writer when the current level reaches min, else nil.
func (h *CLIHooks) tracer(min int) *TraceWriter {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.level < min {
		return nil
	}
	return h.writer
}

func (h *CLIHooks) OnOperationStart(ctx context.Context, op api.OperationInfo) context.Context {
	if w := h.tracer(TraceOperations); w != nil {
		w.WriteOperationStart(op)
	}
	return ctx
}

func (h *CLIHooks) OnOperationEnd(_ context.Context, op api.OperationInfo, err error, d time.Duration) {
	if h.collector != nil {
		h.collector.RecordOperationInfo(op, err, d)
	}
	if w := h.tracer(TraceOperations); w != nil {
		w.WriteOperationEnd(op, err, d)
	}
}

func (h *CLIHooks) OnRequestStart(ctx context.Context, info api.RequestInfo) context.Context {
	if w := h.tracer(TraceRequests); w != nil {
		w.WriteRequestStart(info)
	}
	return ctx
}

func (h *CLIHooks) OnRequestEnd(_ context.Context, info api.RequestInfo, result api.RequestResult) {
	if h.collector != nil {
		h.collector.RecordRequestInfo(info, result)
	}
	if w := h.tracer(TraceRequests); w != nil {
		w.WriteRequestEnd(info, result)
	}
}

func (h *CLIHooks) OnRefresh(_ context.Context, info api.RefreshInfo) {
	if h.collector != nil {
		h.collector.RecordRefresh(info)
	}
	if w := h.tracer(TraceOperations); w != nil {
		w.WriteRefresh(info)
	}
}

func (h *CLIHooks) OnReplay(_ context.Context, info api.RequestInfo, waited bool) {
	if h.collector != nil {
		h.collector.RecordReplay(waited)
	}
	if w := h.tracer(TraceRequests); w != nil {
		w.WriteReplay(info, waited)
	}
}
