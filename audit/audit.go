// Package audit stores pipeline transition events in SQLite. Writes are
// batched by a background goroutine so request handling never waits on
// the database.
package audit

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/dynresp/idgen"
	"github.com/hazyhaar/dynresp/pipeline"
)

// Schema creates the render_events table. Idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS render_events (
    entry_id       TEXT PRIMARY KEY,
    timestamp      INTEGER NOT NULL,
    request_id     TEXT NOT NULL DEFAULT '',
    method         TEXT NOT NULL DEFAULT '',
    path           TEXT NOT NULL DEFAULT '',
    state          TEXT NOT NULL,
    representation TEXT NOT NULL DEFAULT '',
    status         INTEGER NOT NULL DEFAULT 0,
    duration_ms    INTEGER NOT NULL DEFAULT 0,
    principal      TEXT NOT NULL DEFAULT '',
    error_message  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_render_events_request ON render_events(request_id);
CREATE INDEX IF NOT EXISTS idx_render_events_ts ON render_events(timestamp);
`

// Entry is one stored event.
type Entry struct {
	EntryID        string
	Timestamp      int64 // unix milliseconds
	RequestID      string
	Method         string
	Path           string
	State          string
	Representation string
	Status         int
	DurationMs     int64
	Principal      string
	Error          string
}

const (
	batchSize     = 32
	flushInterval = time.Second
)

// SQLiteLogger writes entries to render_events. It implements
// pipeline.EventSink.
type SQLiteLogger struct {
	db      *sql.DB
	idGen   idgen.Generator
	logger  *slog.Logger
	buf     chan *Entry
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Int64
}

// Option configures a SQLiteLogger.
type Option func(*SQLiteLogger)

// WithIDGenerator replaces the UUIDv7 entry id generator.
func WithIDGenerator(fn idgen.Generator) Option { return func(l *SQLiteLogger) { l.idGen = fn } }

// WithBufferSize sets how many async entries may be queued. Default: 1024.
func WithBufferSize(n int) Option {
	return func(l *SQLiteLogger) { l.buf = make(chan *Entry, n) }
}

// WithLogger sets the logger for write failures.
func WithLogger(lg *slog.Logger) Option { return func(l *SQLiteLogger) { l.logger = lg } }

// NewSQLiteLogger starts the background writer. Call Init before logging
// and Close to flush.
func NewSQLiteLogger(db *sql.DB, opts ...Option) *SQLiteLogger {
	l := &SQLiteLogger{
		db:     db,
		idGen:  idgen.Default,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	if l.buf == nil {
		l.buf = make(chan *Entry, 1024)
	}
	l.wg.Add(1)
	go l.flushLoop()
	return l
}

// Init creates the schema.
func (l *SQLiteLogger) Init() error {
	_, err := l.db.Exec(Schema)
	return err
}

// Log writes e synchronously, filling EntryID and Timestamp when empty.
func (l *SQLiteLogger) Log(ctx context.Context, e *Entry) error {
	l.fillDefaults(e)
	return runTx(ctx, l.db, func(tx *sql.Tx) error { return insert(ctx, tx, e) })
}

// LogAsync queues e. When the queue is full the entry is dropped and
// counted rather than blocking the caller.
func (l *SQLiteLogger) LogAsync(e *Entry) {
	l.fillDefaults(e)
	select {
	case <-l.done:
		l.dropped.Add(1)
		return
	default:
	}
	select {
	case l.buf <- e:
	default:
		if n := l.dropped.Add(1); n == 1 || n%100 == 0 {
			l.logger.Warn("audit: queue full, dropping entries", "dropped", n)
		}
	}
}

// Dropped returns the number of entries discarded because the queue was
// full or the logger closed.
func (l *SQLiteLogger) Dropped() int64 { return l.dropped.Load() }

// Emit implements pipeline.EventSink.
func (l *SQLiteLogger) Emit(_ context.Context, ev pipeline.Event) {
	e := &Entry{
		RequestID:      ev.RequestID,
		Method:         ev.Method,
		Path:           ev.Path,
		State:          string(ev.State),
		Representation: ev.Preference,
		Status:         ev.Status,
		DurationMs:     ev.Duration.Milliseconds(),
		Principal:      ev.Principal,
	}
	if ev.Err != nil {
		e.Error = ev.Err.Error()
	}
	l.LogAsync(e)
}

// Close stops accepting entries and flushes the queue.
func (l *SQLiteLogger) Close() error {
	l.once.Do(func() { close(l.done) })
	l.wg.Wait()
	return nil
}

func (l *SQLiteLogger) fillDefaults(e *Entry) {
	if e.EntryID == "" {
		e.EntryID = l.idGen()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
}

func (l *SQLiteLogger) flushLoop() {
	defer l.wg.Done()
	t := time.NewTicker(flushInterval)
	defer t.Stop()

	batch := make([]*Entry, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := l.writeBatch(batch); err != nil {
			l.logger.Error("audit: flush failed", "entries", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case e := <-l.buf:
			batch = append(batch, e)
			if len(batch) >= batchSize {
				flush()
			}
		case <-t.C:
			flush()
		case <-l.done:
			for {
				select {
				case e := <-l.buf:
					batch = append(batch, e)
					if len(batch) >= batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (l *SQLiteLogger) writeBatch(batch []*Entry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return runTx(ctx, l.db, func(tx *sql.Tx) error {
		for _, e := range batch {
			if err := insert(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func insert(ctx context.Context, tx *sql.Tx, e *Entry) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO render_events
		(entry_id, timestamp, request_id, method, path, state, representation, status, duration_ms, principal, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EntryID, e.Timestamp, e.RequestID, e.Method, e.Path, e.State,
		e.Representation, e.Status, e.DurationMs, e.Principal, e.Error)
	return err
}
