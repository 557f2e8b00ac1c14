package audit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Filter selects stored entries. Zero fields match everything.
type Filter struct {
	Since     time.Time
	Until     time.Time
	RequestID string
	Path      string
	State     string
	// MinStatus keeps entries whose status is at least this value.
	MinStatus int
	OrderBy   string // timestamp (default), duration_ms, status
	OrderDir  string // DESC (default) or ASC
	Limit     int    // default 100
	Offset    int
}

// Query returns entries matching f.
func (l *SQLiteLogger) Query(ctx context.Context, f Filter) ([]*Entry, error) {
	q := `SELECT entry_id, timestamp, request_id, method, path, state, representation,
		status, duration_ms, principal, error_message
		FROM render_events WHERE 1=1`
	var args []any

	if !f.Since.IsZero() {
		q += " AND timestamp >= ?"
		args = append(args, f.Since.UnixMilli())
	}
	if !f.Until.IsZero() {
		q += " AND timestamp <= ?"
		args = append(args, f.Until.UnixMilli())
	}
	if f.RequestID != "" {
		q += " AND request_id = ?"
		args = append(args, f.RequestID)
	}
	if f.Path != "" {
		q += " AND path = ?"
		args = append(args, f.Path)
	}
	if f.State != "" {
		q += " AND state = ?"
		args = append(args, f.State)
	}
	if f.MinStatus > 0 {
		q += " AND status >= ?"
		args = append(args, f.MinStatus)
	}

	orderBy := "timestamp"
	switch f.OrderBy {
	case "":
	case "timestamp", "duration_ms", "status":
		orderBy = f.OrderBy
	default:
		return nil, fmt.Errorf("audit: invalid order_by column: %q", f.OrderBy)
	}
	orderDir := "DESC"
	switch d := strings.ToUpper(f.OrderDir); d {
	case "":
	case "ASC", "DESC":
		orderDir = d
	default:
		return nil, fmt.Errorf("audit: invalid order_dir: %q", f.OrderDir)
	}
	// entry_id breaks ties; UUIDv7 ids sort by creation time.
	q += fmt.Sprintf(" ORDER BY %s %s, entry_id %s", orderBy, orderDir, orderDir)

	limit := 100
	if f.Limit > 0 {
		limit = f.Limit
	}
	q += " LIMIT ?"
	args = append(args, limit)
	if f.Offset > 0 {
		q += " OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.EntryID, &e.Timestamp, &e.RequestID, &e.Method, &e.Path, &e.State,
			&e.Representation, &e.Status, &e.DurationMs, &e.Principal, &e.Error); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Cleanup deletes entries older than retention and returns how many went.
func (l *SQLiteLogger) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).UnixMilli()
	res, err := l.db.ExecContext(ctx, "DELETE FROM render_events WHERE timestamp < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("audit: cleanup: %w", err)
	}
	return res.RowsAffected()
}
