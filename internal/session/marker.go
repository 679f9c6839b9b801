package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MarkerFileName is the marker file written into the state directory.
const MarkerFileName = "session.json"

// Event is a session lifecycle event.
type Event string

const (
	EventLogin   Event = "login"
	EventRefresh Event = "refresh"
	EventLogout  Event = "logout"
)

// Record is the marker file content.
type Record struct {
	Event  Event     `json:"event"`
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
	PID    int       `json:"pid"`
}

// Marker records the last session event so other processes can react to it.
type Marker struct {
	path string
}

// NewMarker creates a marker in dir.
func NewMarker(dir string) *Marker {
	return &Marker{path: filepath.Join(dir, MarkerFileName)}
}

// Path returns the marker file path.
func (m *Marker) Path() string {
	return m.path
}

// Record writes an event for origin stamped with the current process.
func (m *Marker) Record(event Event, origin string) error {
	return m.Write(Record{
		Event:  event,
		Origin: origin,
		At:     time.Now().UTC(),
		PID:    os.Getpid(),
	})
}

// Write atomically replaces the marker content.
func (m *Marker) Write(rec Record) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// Read returns the last recorded event, or nil when none exists.
func (m *Marker) Read() (*Record, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", m.path, err)
	}
	return &rec, nil
}
