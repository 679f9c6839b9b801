package session

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher follows the marker file and applies events written by other
// processes to a State.
type Watcher struct {
	marker *Marker
	state  *State
	origin string
	self   int
	fsw    *fsnotify.Watcher
	events chan Record
	logger *slog.Logger
}

// NewWatcher watches marker's directory. Only events for origin are applied;
// an empty origin matches every record.
func NewWatcher(marker *Marker, state *State, origin string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	dir := filepath.Dir(marker.Path())
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// The marker is replaced by rename, so watch the directory.
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{
		marker: marker,
		state:  state,
		origin: origin,
		self:   os.Getpid(),
		fsw:    fsw,
		events: make(chan Record, 8),
		logger: logger,
	}, nil
}

// Events delivers applied records. Records are dropped when nobody reads.
func (w *Watcher) Events() <-chan Record {
	return w.events
}

// Run processes filesystem events until ctx is done or the watcher closes.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)
	name := filepath.Base(w.marker.Path())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name || !(ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)) {
				continue
			}
			w.apply()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Debug("session watcher error", "error", err)
		}
	}
}

func (w *Watcher) apply() {
	rec, err := w.marker.Read()
	if err != nil || rec == nil {
		if err != nil {
			w.logger.Debug("reading session marker", "error", err)
		}
		return
	}
	if rec.PID == w.self {
		return
	}
	if w.origin != "" && rec.Origin != "" && rec.Origin != w.origin {
		return
	}

	switch rec.Event {
	case EventLogout:
		w.state.SetAuthenticated(false)
	case EventLogin, EventRefresh:
		w.state.SetAuthenticated(true)
	default:
		return
	}
	w.logger.Debug("session event from another process", "event", rec.Event, "pid", rec.PID)

	select {
	case w.events <- *rec:
	default:
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
