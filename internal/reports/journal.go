package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

// Entry is one moderator action the desk issued.
type Entry struct {
	RequestID   string    `json:"request_id"`
	ReportID    int64     `json:"report_id"`
	ModeratorID int64     `json:"moderator_id"`
	Action      string    `json:"action"`
	Note        string    `json:"note,omitempty"`
	AssignedTo  int64     `json:"assigned_to,omitempty"`
	At          time.Time `json:"at"`
}

type Journal interface {
	Record(ctx context.Context, e Entry) error
	ForReport(ctx context.Context, reportID int64, limit int) ([]Entry, error)
}

var ErrDuplicateEntry = errors.New("journal entry already recorded")

const schema = `
CREATE TABLE IF NOT EXISTS moderation_actions (
	id           BIGSERIAL PRIMARY KEY,
	request_id   TEXT        NOT NULL UNIQUE,
	report_id    BIGINT      NOT NULL,
	moderator_id BIGINT      NOT NULL,
	action       TEXT        NOT NULL,
	note         TEXT        NOT NULL DEFAULT '',
	assigned_to  BIGINT      NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS moderation_actions_report_idx ON moderation_actions (report_id, created_at DESC);`

type PostgresJournal struct {
	db *sql.DB
}

// OpenPostgresJournal connects, pings and ensures the table exists.
func OpenPostgresJournal(ctx context.Context, databaseURL string) (*PostgresJournal, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	j := NewPostgresJournal(db)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure journal schema: %w", err)
	}
	return j, nil
}

func NewPostgresJournal(db *sql.DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

func (j *PostgresJournal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *PostgresJournal) Record(ctx context.Context, e Entry) error {
	const query = `
		INSERT INTO moderation_actions (request_id, report_id, moderator_id, action, note, assigned_to, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (request_id) DO NOTHING`
	res, err := j.db.ExecContext(ctx, query, e.RequestID, e.ReportID, e.ModeratorID, e.Action, e.Note, e.AssignedTo, e.At)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateEntry
	}
	return nil
}

func (j *PostgresJournal) ForReport(ctx context.Context, reportID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT request_id, report_id, moderator_id, action, note, assigned_to, created_at
		FROM moderation_actions
		WHERE report_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := j.db.QueryContext(ctx, query, reportID, limit)
	if err != nil {
		return nil, fmt.Errorf("select journal entries: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RequestID, &e.ReportID, &e.ModeratorID, &e.Action, &e.Note, &e.AssignedTo, &e.At); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MemoryJournal is used when no database is configured.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries []Entry
	seen    map[string]struct{}
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{seen: make(map[string]struct{})}
}

func (m *MemoryJournal) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.seen[e.RequestID]; dup {
		return ErrDuplicateEntry
	}
	m.seen[e.RequestID] = struct{}{}
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryJournal) ForReport(_ context.Context, reportID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for _, e := range m.entries {
		if e.ReportID == reportID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].At.After(out[k].At) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
