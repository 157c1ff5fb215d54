// Package store provides Postgres-backed task persistence.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
)

// ErrTaskNotFound is returned when no task row matches the requested id.
var ErrTaskNotFound = errors.New("task not found")

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// listLimit bounds the tasks index; text columns are truncated server-side
// so listing stays cheap even with large stored pages.
const (
	listLimit        = 50
	listTextTruncate = 1000
)

// Config controls the Postgres connection pool used for task rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// TaskStore writes and reads terminal task rows in Postgres.
type TaskStore struct {
	pool  pgxPool
	table string
}

// New creates a Postgres-backed TaskStore using the provided config.
func New(ctx context.Context, cfg Config) (*TaskStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "tasks"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &TaskStore{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool, table string) (*TaskStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "tasks"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &TaskStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *TaskStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateTask inserts the terminal record for one completed job.
func (s *TaskStore) CreateTask(ctx context.Context, record crawler.TaskRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("task store is not configured")
	}
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	keyword,
	engine,
	status,
	results_json,
	extracted_text,
	first_page_html,
	meta_description,
	meta_keywords,
	meta_author,
	meta_date,
	created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)`, s.table)

	args := []any{
		record.ID,
		record.Keyword,
		string(record.Engine),
		string(record.Status),
		record.ResultsJSON,
		record.ExtractedText,
		record.FirstPageHTML,
		record.MetaDescription,
		record.MetaKeywords,
		record.MetaAuthor,
		record.MetaDate,
		record.CreatedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return crawler.NewCrawlError(crawler.ErrKindPersistence, fmt.Errorf("insert task: %w", err))
	}
	return nil
}

// GetTask returns the full record for one task id.
func (s *TaskStore) GetTask(ctx context.Context, id string) (crawler.TaskRecord, error) {
	if s == nil || s.pool == nil {
		return crawler.TaskRecord{}, fmt.Errorf("task store is not configured")
	}
	query := fmt.Sprintf(`
SELECT id, keyword, engine, status, results_json, extracted_text, first_page_html,
	meta_description, meta_keywords, meta_author, meta_date, created_at
FROM %s WHERE id = $1`, s.table)

	var record crawler.TaskRecord
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&record.ID,
		&record.Keyword,
		&record.Engine,
		&record.Status,
		&record.ResultsJSON,
		&record.ExtractedText,
		&record.FirstPageHTML,
		&record.MetaDescription,
		&record.MetaKeywords,
		&record.MetaAuthor,
		&record.MetaDate,
		&record.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.TaskRecord{}, ErrTaskNotFound
	}
	if err != nil {
		return crawler.TaskRecord{}, crawler.NewCrawlError(crawler.ErrKindPersistence, fmt.Errorf("select task %s: %w", id, err))
	}
	return record, nil
}

// ListTasks returns the most recent tasks with long text columns truncated.
func (s *TaskStore) ListTasks(ctx context.Context) ([]crawler.TaskSummary, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("task store is not configured")
	}
	query := fmt.Sprintf(`
SELECT id, keyword, engine, status, created_at,
	left(results_json, %d), left(extracted_text, %d)
FROM %s ORDER BY created_at DESC LIMIT %d`,
		listTextTruncate, listTextTruncate, s.table, listLimit)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, crawler.NewCrawlError(crawler.ErrKindPersistence, fmt.Errorf("list tasks: %w", err))
	}
	defer rows.Close()

	var tasks []crawler.TaskSummary
	for rows.Next() {
		var t crawler.TaskSummary
		if err := rows.Scan(
			&t.ID,
			&t.Keyword,
			&t.Engine,
			&t.Status,
			&t.CreatedAt,
			&t.ResultsJSON,
			&t.ExtractedText,
		); err != nil {
			return nil, crawler.NewCrawlError(crawler.ErrKindPersistence, fmt.Errorf("scan task row: %w", err))
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, crawler.NewCrawlError(crawler.ErrKindPersistence, fmt.Errorf("iterate task rows: %w", err))
	}
	return tasks, nil
}
