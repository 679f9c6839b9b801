package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/session"
)

// Refresher renews the session. Implementations must call the refresh
// endpoint through a base Fetcher, never through the Gateway.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) error

// Refresh calls f(ctx).
func (f RefresherFunc) Refresh(ctx context.Context) error { return f(ctx) }

// ReplayPolicy decides whether a request that waited on someone else's
// refresh is replayed.
type ReplayPolicy int

const (
	// ReplayAlways replays after waiting regardless of the refresh outcome.
	ReplayAlways ReplayPolicy = iota
	// ReplayIfAuthenticated replays only when the session flag is set after
	// waiting; otherwise the original 401 is returned.
	ReplayIfAuthenticated
)

// String returns the config spelling of the policy.
func (p ReplayPolicy) String() string {
	if p == ReplayIfAuthenticated {
		return "if-authenticated"
	}
	return "always"
}

// ParseReplayPolicy maps "always" and "if-authenticated" to a policy.
func ParseReplayPolicy(s string) (ReplayPolicy, error) {
	switch s {
	case "", "always":
		return ReplayAlways, nil
	case "if-authenticated":
		return ReplayIfAuthenticated, nil
	}
	return ReplayAlways, output.ErrUsageHint("Unknown replay policy: "+s, "Use always or if-authenticated")
}

// Gateway wraps a Fetcher with single-flight session refresh on 401.
//
// Per request: wait out any in-flight refresh, issue the request, and on 401
// either run the refresh (when no refresh started since the request was
// issued) or wait for the one in flight. Each request is replayed at most
// once; a replayed 401 is returned as-is. Other errors pass through untouched.
type Gateway struct {
	verbs
	fetcher   Fetcher
	refresher Refresher
	state     *session.State
	coord     *RefreshCoordinator
	policy    ReplayPolicy
	hooks     Hooks
	logger    *slog.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithReplayPolicy sets the policy for requests that waited on a refresh.
func WithReplayPolicy(p ReplayPolicy) GatewayOption {
	return func(g *Gateway) { g.policy = p }
}

// WithGatewayHooks sets the observer for refreshes, replays and operations.
func WithGatewayHooks(h Hooks) GatewayOption {
	return func(g *Gateway) {
		if h != nil {
			g.hooks = h
		}
	}
}

// WithGatewayLogger sets the debug logger.
func WithGatewayLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithCoordinator shares a coordinator between gateways.
func WithCoordinator(c *RefreshCoordinator) GatewayOption {
	return func(g *Gateway) { g.coord = c }
}

// NewGateway composes fetcher, refresher and the shared session state.
func NewGateway(fetcher Fetcher, refresher Refresher, state *session.State, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		fetcher:   fetcher,
		refresher: refresher,
		state:     state,
		coord:     NewRefreshCoordinator(),
		hooks:     NoopHooks{},
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.verbs = verbs{g}
	return g
}

// State returns the session state the gateway mutates.
func (g *Gateway) State() *session.State {
	return g.state
}

// Coordinator returns the gateway's refresh coordinator.
func (g *Gateway) Coordinator() *RefreshCoordinator {
	return g.coord
}

// Do issues req through the refresh state machine.
func (g *Gateway) Do(ctx context.Context, req *Request) (*Response, error) {
	gen, err := g.coord.WaitIdle(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := g.fetcher.Do(ctx, req)
	if err == nil || !output.IsUnauthorized(err) {
		return resp, err
	}

	if g.coord.TryAcquireAt(gen) {
		return g.refreshAndReplay(ctx, req, err)
	}

	g.logger.Debug("waiting for session refresh", "path", req.Path)
	if werr := g.coord.WaitForUnlock(ctx); werr != nil {
		return nil, werr
	}
	if g.policy == ReplayIfAuthenticated && !g.state.IsAuthenticated() {
		return nil, err
	}
	return g.replay(ctx, req, true)
}

// refreshAndReplay runs with the coordinator held. The deferred Release
// also runs when the refresher panics.
func (g *Gateway) refreshAndReplay(ctx context.Context, req *Request, orig error) (*Response, error) {
	defer g.coord.Release()

	g.logger.Debug("refreshing session", "trigger", req.Path)
	start := time.Now()
	rerr := g.refresher.Refresh(ctx)
	g.hooks.OnRefresh(ctx, RefreshInfo{Trigger: req.Path, Duration: time.Since(start), Error: rerr})

	if rerr != nil {
		// Cancellation says nothing about the session.
		if ctx.Err() != nil && errors.Is(rerr, ctx.Err()) {
			return nil, rerr
		}
		g.logger.Debug("session refresh failed", "error", rerr)
		g.state.SetAuthenticated(false)
		return nil, orig
	}

	g.state.SetAuthenticated(true)
	return g.replay(ctx, req, false)
}

func (g *Gateway) replay(ctx context.Context, req *Request, waited bool) (*Response, error) {
	ctx = withAttempt(ctx, 2)
	info := RequestInfo{Method: req.Method, URL: req.Path, Attempt: 2}
	g.hooks.OnReplay(ctx, info, waited)
	g.logger.Debug("replaying request", "method", req.Method, "path", req.Path, "waited", waited)
	return g.fetcher.Do(ctx, req)
}

// Run wraps fn in operation hooks.
func (g *Gateway) Run(ctx context.Context, op OperationInfo, fn func(ctx context.Context) error) error {
	ctx = g.hooks.OnOperationStart(ctx, op)
	start := time.Now()
	err := fn(ctx)
	g.hooks.OnOperationEnd(ctx, op, err, time.Since(start))
	return err
}
