package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres

	"github.com/xela07ax/ids-dashboard/internal/audit"
)

const journalColumns = 10

const createJournalTable = `
CREATE TABLE IF NOT EXISTS dashboard_journal (
	id          UUID PRIMARY KEY,
	trace_id    TEXT NOT NULL DEFAULT '',
	instance    TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	subject     TEXT NOT NULL DEFAULT '',
	detail      JSONB,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms BIGINT NOT NULL DEFAULT 0,
	timestamp   TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type JournalRepo struct {
	db *sql.DB
}

// NewJournalRepo открывает пул и проверяет соединение.
func NewJournalRepo(ctx context.Context, connString string, maxConns, minConns int32) (*JournalRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(int(maxConns))
	}
	if minConns > 0 {
		db.SetMaxIdleConns(int(minConns))
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &JournalRepo{db: db}, nil
}

// EnsureSchema создает таблицу журнала, если ее нет.
func (r *JournalRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createJournalTable); err != nil {
		return fmt.Errorf("create dashboard_journal: %w", err)
	}
	return nil
}

func (r *JournalRepo) WriteBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	query, vals, err := buildJournalInsert(events)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("insert journal batch: %w", err)
	}
	return nil
}

// Recent возвращает последние события, новые первыми.
func (r *JournalRepo) Recent(ctx context.Context, f audit.Filter) ([]audit.Event, error) {
	f = f.Normalize()
	query, args := buildRecentQuery(f)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	events := make([]audit.Event, 0, f.Limit)
	for rows.Next() {
		var (
			e      audit.Event
			detail []byte
		)
		if err := rows.Scan(&e.ID, &e.TraceID, &e.Instance, &e.Action, &e.Subject,
			&detail, &e.Status, &e.Error, &e.DurationMs, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("unmarshal detail of %s: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Summary считает итоги за окно; P95 по длительности команд.
func (r *JournalRepo) Summary(ctx context.Context, window time.Duration) (audit.Summary, error) {
	s := audit.Summary{Window: window.String()}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'FAILED'),
			COUNT(*) FILTER (WHERE status = 'REJECTED'),
			COALESCE(PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY duration_ms), 0)
		FROM dashboard_journal
		WHERE timestamp > $1`, time.Now().Add(-window)).Scan(&s.Total, &s.Failed, &s.Rejected, &s.P95DurationMs)
	if err != nil {
		return s, fmt.Errorf("journal summary: %w", err)
	}
	return s, nil
}

func (r *JournalRepo) Close() error {
	return r.db.Close()
}

// buildJournalInsert строит один INSERT на всю пачку.
func buildJournalInsert(events []audit.Event) (string, []any, error) {
	var placeholders strings.Builder
	vals := make([]any, 0, len(events)*journalColumns)

	for i, e := range events {
		if i > 0 {
			placeholders.WriteString(", ")
		}
		p := i * journalColumns
		placeholders.WriteString("(")
		for c := 1; c <= journalColumns; c++ {
			if c > 1 {
				placeholders.WriteString(", ")
			}
			fmt.Fprintf(&placeholders, "$%d", p+c)
		}
		placeholders.WriteString(")")

		var detail []byte
		if len(e.Detail) > 0 {
			var err error
			if detail, err = json.Marshal(e.Detail); err != nil {
				return "", nil, fmt.Errorf("marshal detail of %s: %w", e.ID, err)
			}
		}

		vals = append(vals,
			e.ID, e.TraceID, e.Instance, e.Action, e.Subject,
			detail, e.Status, e.Error, e.DurationMs, e.Timestamp,
		)
	}

	query := "INSERT INTO dashboard_journal (id, trace_id, instance, action, subject, detail, status, error, duration_ms, timestamp) VALUES " +
		placeholders.String()
	return query, vals, nil
}

func buildRecentQuery(f audit.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.Action != "" {
		args = append(args, f.Action)
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := "SELECT id, trace_id, instance, action, subject, detail, status, error, duration_ms, timestamp FROM dashboard_journal"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args))
	return query, args
}
