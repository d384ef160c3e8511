package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Page size limits for List.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Entry is one journaled access cycle.
type Entry struct {
	ID         string    `json:"id"`
	DoorID     string    `json:"door_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Token      string    `json:"token,omitempty"`
	Decision   string    `json:"decision"`
	Reason     string    `json:"reason"`
	StatusCode int       `json:"status_code"`
	LatencyMS  float64   `json:"latency_ms"`
	Unlocked   bool      `json:"unlocked"`
	Error      string    `json:"error,omitempty"`
}

// Filter controls which entries List returns.
type Filter struct {
	DoorID   string    // optional
	Decision string    // optional: permitted, denied, indeterminate
	Since    time.Time // optional: entries at or after this instant
	Limit    int       // default 50, max 500
	Offset   int
}

// ListResult is a page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores journal entries.
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, f Filter) (*ListResult, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SQLiteRepository implements Repository on the access_journal table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository backed by db. The schema must
// already be migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// timeLayout sorts lexically in the same order as time.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Append inserts e. ID and OccurredAt are filled in when empty.
func (r *SQLiteRepository) Append(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	e.OccurredAt = e.OccurredAt.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_journal
		 (id, door_id, occurred_at, token, decision, reason, status_code, latency_ms, unlocked, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DoorID, e.OccurredAt.Format(timeLayout),
		nullableString(e.Token), e.Decision, e.Reason,
		e.StatusCode, e.LatencyMS, boolToInt(e.Unlocked),
		nullableString(e.Error),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// List returns entries matching f, newest first.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) (*ListResult, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var (
		conditions []string
		args       []any
	)
	if f.DoorID != "" {
		conditions = append(conditions, "door_id = ?")
		args = append(args, f.DoorID)
	}
	if f.Decision != "" {
		conditions = append(conditions, "decision = ?")
		args = append(args, f.Decision)
	}
	if !f.Since.IsZero() {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM access_journal " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting journal entries: %w", err)
	}

	query := `SELECT id, door_id, occurred_at, token, decision, reason, status_code, latency_ms, unlocked, error
		FROM access_journal ` + where + ` ORDER BY occurred_at DESC, id LIMIT ? OFFSET ?` //nolint:gosec // as above
	rows, err := r.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying journal entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e          Entry
			occurredAt string
			token, msg sql.NullString
			unlocked   int
		)
		if err := rows.Scan(&e.ID, &e.DoorID, &occurredAt, &token, &e.Decision, &e.Reason,
			&e.StatusCode, &e.LatencyMS, &unlocked, &msg); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		if e.OccurredAt, err = time.Parse(timeLayout, occurredAt); err != nil {
			return nil, fmt.Errorf("parsing journal timestamp %q: %w", occurredAt, err)
		}
		e.Token = token.String
		e.Error = msg.String
		e.Unlocked = unlocked != 0
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal entries: %w", err)
	}

	return &ListResult{Entries: entries, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// PruneOlderThan deletes entries that occurred before cutoff and returns
// how many were removed.
func (r *SQLiteRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM access_journal WHERE occurred_at < ?",
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	return n, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
