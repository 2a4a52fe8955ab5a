package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/pluma/internal/ir"
)

// Invocation is one dispatched action, as handed to Record.
type Invocation struct {
	Plugin        string
	PluginVersion string
	Action        string
	Params        ir.IRObject
	Outputs       map[string]string
	ExitCode      int
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Entry is a journaled invocation as read back. Params and Outputs stay
// in their stored canonical JSON form.
type Entry struct {
	ID            string          `json:"id"`
	ContentID     string          `json:"content_id"`
	Plugin        string          `json:"plugin"`
	PluginVersion string          `json:"plugin_version"`
	Action        string          `json:"action"`
	Params        json.RawMessage `json:"params"`
	Outputs       json.RawMessage `json:"outputs"`
	ExitCode      int             `json:"exit_code"`
	Error         string          `json:"error,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
}

// IDGenerator produces row ids.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Journal appends invocations to a Store.
type Journal struct {
	store *Store
	ids   IDGenerator
}

// NewJournal creates a journal over s. A nil ids uses UUIDv7.
func NewJournal(s *Store, ids IDGenerator) *Journal {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	return &Journal{store: s, ids: ids}
}

// Record appends inv and returns the new row id.
func (j *Journal) Record(ctx context.Context, inv Invocation) (string, error) {
	params := inv.Params
	if params == nil {
		params = ir.IRObject{}
	}
	contentID, err := ir.InvocationID(inv.Plugin, inv.Action, params, inv.Outputs)
	if err != nil {
		return "", fmt.Errorf("record invocation: %w", err)
	}
	paramsJSON, err := ir.MarshalCanonical(params)
	if err != nil {
		return "", fmt.Errorf("record invocation: %w", err)
	}
	outputs := make(ir.IRObject, len(inv.Outputs))
	for name, path := range inv.Outputs {
		outputs[name] = ir.IRString(path)
	}
	outputsJSON, err := ir.MarshalCanonical(outputs)
	if err != nil {
		return "", fmt.Errorf("record invocation: %w", err)
	}

	id := j.ids.Generate()
	_, err = j.store.db.ExecContext(ctx, `
		INSERT INTO invocations
		(id, content_id, plugin, plugin_version, action, params, outputs, exit_code, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		contentID,
		inv.Plugin,
		inv.PluginVersion,
		inv.Action,
		string(paramsJSON),
		string(outputsJSON),
		inv.ExitCode,
		inv.Error,
		inv.StartedAt.UnixMilli(),
		inv.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("record invocation: %w", err)
	}
	return id, nil
}

// Recent returns up to limit entries, newest first. Ties on start time
// are broken by id so the order is stable.
//
// Returns an empty slice (not nil) if the journal is empty.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.store.Query(ctx, `
		SELECT id, content_id, plugin, plugin_version, action, params, outputs, exit_code, error, started_at, finished_at
		FROM invocations
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e                 Entry
			params, outputs   string
			started, finished int64
		)
		if err := rows.Scan(&e.ID, &e.ContentID, &e.Plugin, &e.PluginVersion, &e.Action,
			&params, &outputs, &e.ExitCode, &e.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		e.Params = json.RawMessage(params)
		e.Outputs = json.RawMessage(outputs)
		e.StartedAt = time.UnixMilli(started).UTC()
		e.FinishedAt = time.UnixMilli(finished).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return entries, nil
}

// Count returns the number of journaled invocations.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM invocations").Scan(&n); err != nil {
		return 0, fmt.Errorf("count invocations: %w", err)
	}
	return n, nil
}
