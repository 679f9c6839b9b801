package api

import (
	"context"
	"time"
)

// OperationInfo describes a semantic booking operation (e.g. Appointments.List).
type OperationInfo struct {
	Service      string // e.g. "Appointments", "Staff"
	Operation    string // e.g. "List", "SetStatus"
	ResourceType string // e.g. "appointment"
	IsMutation   bool
	ResourceID   int64
}

// RequestInfo describes one HTTP request.
type RequestInfo struct {
	Method    string
	URL       string
	RequestID string

	// Attempt is 1 for the original request and 2 for the post-refresh replay.
	Attempt int
}

// RequestResult describes the outcome of one HTTP request.
type RequestResult struct {
	StatusCode int
	Duration   time.Duration
	Error      error
}

// RefreshInfo describes one session refresh performed by the gateway.
type RefreshInfo struct {
	// Trigger is the URL whose 401 started the refresh.
	Trigger  string
	Duration time.Duration
	Error    error
}

// Hooks observes client and gateway activity.
type Hooks interface {
	OnOperationStart(ctx context.Context, op OperationInfo) context.Context
	OnOperationEnd(ctx context.Context, op OperationInfo, err error, duration time.Duration)
	OnRequestStart(ctx context.Context, info RequestInfo) context.Context
	OnRequestEnd(ctx context.Context, info RequestInfo, result RequestResult)
	OnRefresh(ctx context.Context, info RefreshInfo)
	OnReplay(ctx context.Context, info RequestInfo, waited bool)
}

// NoopHooks ignores every event.
type NoopHooks struct{}

func (NoopHooks) OnOperationStart(ctx context.Context, _ OperationInfo) context.Context { return ctx }
func (NoopHooks) OnOperationEnd(context.Context, OperationInfo, error, time.Duration)   {}
func (NoopHooks) OnRequestStart(ctx context.Context, _ RequestInfo) context.Context     { return ctx }
func (NoopHooks) OnRequestEnd(context.Context, RequestInfo, RequestResult)              {}
func (NoopHooks) OnRefresh(context.Context, RefreshInfo)                                {}
func (NoopHooks) OnReplay(context.Context, RequestInfo, bool)                           {}

type attemptKey struct{}

func withAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, attemptKey{}, attempt)
}

func attemptFrom(ctx context.Context) int {
	if n, ok := ctx.Value(attemptKey{}).(int); ok {
		return n
	}
	return 1
}
