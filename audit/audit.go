// Package audit provides an append-only, structured-JSON trail of
// reconciling write-backs: merge.Driver's fire-and-forget writes, and the
// writes Authorization suppressed. It is trimmed from the teacher's full
// compliance audit subsystem (GDPR/HIPAA report generation, user activity
// review) down to write-back provenance, the one thing lineage's own write
// path produces.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lineagedb/lineage/wire"
)

// EventType classifies one audit entry.
type EventType string

const (
	// EventWriteBack records that a reconciling merge was written back
	// through the log bridge, or that the write-back attempt failed.
	EventWriteBack EventType = "WRITE_BACK"

	// EventWriteDenied records that Authorization suppressed a reconciling
	// write-back.
	EventWriteDenied EventType = "WRITE_DENIED"
)

// Event is one immutable audit log entry.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	PartitionKey string    `json:"partition_key"`
	ObjectID     wire.UUID `json:"object_id"`
	MergedInto   wire.UUID `json:"merged_into,omitempty"`

	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// Config holds audit trail configuration.
type Config struct {
	// Enabled controls whether the trail writes anything at all.
	Enabled bool

	// LogPath is the append-only JSON-lines file. Ignored when a writer is
	// supplied directly via NewWithWriter.
	LogPath string

	// SyncWrites forces fsync after each entry.
	SyncWrites bool
}

// DefaultConfig returns a trail enabled at ./logs/audit.log without forced
// fsync, matching the teacher's non-durability-critical default.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		LogPath:    "./logs/audit.log",
		SyncWrites: false,
	}
}

// Trail appends audit Events to a JSON-lines log. All methods are safe for
// concurrent use.
type Trail struct {
	mu       sync.Mutex
	writer   io.Writer
	file     *os.File
	config   Config
	sequence uint64
	closed   bool
}

// New opens (or creates) the audit trail described by config.
func New(config Config) (*Trail, error) {
	if !config.Enabled {
		return &Trail{config: config}, nil
	}

	dir := filepath.Dir(config.LogPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("audit: create log directory: %w", err)
	}

	file, err := os.OpenFile(config.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("audit: open log file: %w", err)
	}

	return &Trail{writer: file, file: file, config: config}, nil
}

// NewWithWriter builds a Trail over an arbitrary writer, for tests.
func NewWithWriter(writer io.Writer, config Config) *Trail {
	config.Enabled = true
	return &Trail{writer: writer, config: config}
}

// Log appends event to the trail. Timestamp and ID are filled in if zero.
func (t *Trail) Log(event Event) error {
	if !t.config.Enabled {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("audit: trail is closed")
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ID == "" {
		t.sequence++
		event.ID = fmt.Sprintf("audit-%d-%d", event.Timestamp.UnixNano(), t.sequence)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}
	if _, err := t.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: write event: %w", err)
	}
	if t.config.SyncWrites && t.file != nil {
		if err := t.file.Sync(); err != nil {
			return fmt.Errorf("audit: sync log: %w", err)
		}
	}
	return nil
}

// WriteBack logs a successful or failed reconciling write-back.
func (t *Trail) WriteBack(partitionKey string, objectID, mergedInto wire.UUID, success bool, reason string) error {
	return t.Log(Event{
		Type:         EventWriteBack,
		PartitionKey: partitionKey,
		ObjectID:     objectID,
		MergedInto:   mergedInto,
		Success:      success,
		Reason:       reason,
	})
}

// WriteDenied logs a write-back suppressed by Authorization.
func (t *Trail) WriteDenied(partitionKey string, objectID wire.UUID, reason string) error {
	return t.Log(Event{
		Type:         EventWriteDenied,
		PartitionKey: partitionKey,
		ObjectID:     objectID,
		Success:      false,
		Reason:       reason,
	})
}

// Close flushes and closes the underlying file, if any.
func (t *Trail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.file != nil {
		return t.file.Close()
	}
	return nil
}
