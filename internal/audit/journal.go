// Package audit keeps the command journal: one row per finished command
// execution, written by the executor and read back for history queries.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// Page size bounds for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// timeLayout is fixed-width so executed_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one journaled command execution.
type Entry struct {
	ID           string             `json:"id"`
	DeviceID     device.UniversalID `json:"device_id"`
	Command      device.Command     `json:"command"`
	Success      bool               `json:"success"`
	Dispatched   bool               `json:"dispatched"`
	ErrorKind    device.ErrorKind   `json:"error_kind,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	Attempts     int                `json:"attempts"`
	ExecutedAt   time.Time          `json:"executed_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	DeviceID device.UniversalID // optional
	Since    time.Time          // optional: only entries at or after
	Failed   bool               // only unsuccessful executions
	Limit    int                // default 50, max 200
	Offset   int
}

// ListResult contains a page of entries plus the unpaginated total.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Journal reads and writes the command_audit table.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// NewJournal creates a journal over an already-migrated database.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// Record inserts a finished command result. A result without an ID gets one.
func (j *Journal) Record(ctx context.Context, res device.CommandResult) error {
	id := res.ID
	if id == "" {
		id = "cmd-" + uuid.NewString()[:8]
	}
	executedAt := res.ExecutedAt
	if executedAt.IsZero() {
		executedAt = j.now()
	}

	var argsJSON *string
	if len(res.Command.Args) > 0 {
		b, err := json.Marshal(res.Command.Args)
		if err != nil {
			return fmt.Errorf("marshalling command args: %w", err)
		}
		s := string(b)
		argsJSON = &s
	}

	var kind, message any
	if res.Err != nil {
		kind = string(res.Err.Kind)
		message = res.Err.Message()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO command_audit
		 (id, device_id, capability, command, args, success, dispatched, error_kind, error_message, attempts, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(res.DeviceID), string(res.Command.Capability), res.Command.Name, argsJSON,
		res.Success, res.Dispatched, kind, message, res.Attempts,
		executedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting command audit: %w", err)
	}
	return nil
}

// List returns entries matching the filter, most recent first.
func (j *Journal) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, string(filter.DeviceID))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "executed_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	if filter.Failed {
		conditions = append(conditions, "success = 0")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM command_audit " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := j.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command audit: %w", err)
	}

	query := `SELECT id, device_id, capability, command, args, success, dispatched,
		error_kind, error_message, attempts, executed_at
		FROM command_audit ` + where + ` ORDER BY executed_at DESC, id LIMIT ? OFFSET ?` //nolint:gosec // as above
	args = append(args, filter.Limit, filter.Offset)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command audit: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command audit: %w", err)
	}

	return &ListResult{Entries: entries, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// Prune deletes entries executed before the cutoff and returns how many went.
func (j *Journal) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		"DELETE FROM command_audit WHERE executed_at < ?",
		before.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("pruning command audit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning command audit: %w", err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e                      Entry
		deviceID, capability   string
		argsJSON, kind, errMsg sql.NullString
		executedAt             string
	)
	if err := rows.Scan(&e.ID, &deviceID, &capability, &e.Command.Name, &argsJSON,
		&e.Success, &e.Dispatched, &kind, &errMsg, &e.Attempts, &executedAt); err != nil {
		return Entry{}, fmt.Errorf("scanning command audit: %w", err)
	}
	e.DeviceID = device.UniversalID(deviceID)
	e.Command.Capability = device.Capability(capability)
	if argsJSON.Valid && argsJSON.String != "" {
		if err := json.Unmarshal([]byte(argsJSON.String), &e.Command.Args); err != nil {
			return Entry{}, fmt.Errorf("decoding args for %s: %w", e.ID, err)
		}
	}
	e.ErrorKind = device.ErrorKind(kind.String)
	e.ErrorMessage = errMsg.String

	t, err := time.Parse(timeLayout, executedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing command audit timestamp %q: %w", executedAt, err)
	}
	e.ExecutedAt = t
	return e, nil
}
