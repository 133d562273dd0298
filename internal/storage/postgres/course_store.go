// Package postgres provides the Postgres-backed course store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/course-ingest/internal/course"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultTable is the courses table name.
const DefaultTable = "courses"

// maxBatch bounds the rows of one multi-row INSERT (16 params per row).
const maxBatch = 500

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// CourseStore upserts courses keyed on (institution, title).
type CourseStore struct {
	pool  pool
	table string
}

var _ course.Store = (*CourseStore)(nil)

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config) (*CourseStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
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
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &CourseStore{pool: p, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*CourseStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &CourseStore{pool: p, table: table}, nil
}

func tableName(t string) (string, error) {
	if t == "" {
		t = DefaultTable
	}
	if !validTableName.MatchString(t) {
		return "", fmt.Errorf("invalid table name %q", t)
	}
	return t, nil
}

// Close releases the pool.
func (s *CourseStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

var columns = []string{
	"title", "category", "target", "status", "institution", "region", "place",
	"course_date", "apply_date", "time", "price", "capacity", "contact", "link",
	"image_url", "raw_data",
}

// Upsert inserts courses or updates the row sharing (institution, title).
// It returns the number of rows written.
func (s *CourseStore) Upsert(ctx context.Context, courses []course.Course) (int, error) {
	if len(courses) == 0 {
		return 0, nil
	}
	return s.upsert(ctx, s.pool, course.Dedupe(courses))
}

// Replace deletes every course of institutions and inserts courses in one
// transaction.
func (s *CourseStore) Replace(ctx context.Context, institutions []string, courses []course.Course) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin replace: %w", err)
	}
	if len(institutions) > 0 {
		del := fmt.Sprintf("DELETE FROM %s WHERE institution = ANY($1)", s.table)
		if _, err := tx.Exec(ctx, del, institutions); err != nil {
			return 0, rollback(ctx, tx, fmt.Errorf("delete institutions: %w", err))
		}
	}
	n, err := s.upsert(ctx, tx, course.Dedupe(courses))
	if err != nil {
		return 0, rollback(ctx, tx, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit replace: %w", err)
	}
	return n, nil
}

func rollback(ctx context.Context, tx pgx.Tx, cause error) error {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("%w (rollback: %v)", cause, err)
	}
	return cause
}

type execer interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
}

func (s *CourseStore) upsert(ctx context.Context, db execer, courses []course.Course) (int, error) {
	total := 0
	for start := 0; start < len(courses); start += maxBatch {
		end := min(start+maxBatch, len(courses))
		query, args, err := s.upsertQuery(courses[start:end])
		if err != nil {
			return total, err
		}
		tag, err := db.Exec(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("upsert courses: %w", err)
		}
		total += int(tag.RowsAffected())
	}
	return total, nil
}

func (s *CourseStore) upsertQuery(courses []course.Course) (string, []any, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", s.table, strings.Join(columns, ", "))
	args := make([]any, 0, len(courses)*len(columns))
	for i, c := range courses {
		raw, err := rawJSON(c.RawData)
		if err != nil {
			return "", nil, err
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range columns {
			if j > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "$%d", len(args)+j+1)
		}
		b.WriteByte(')')
		args = append(args,
			c.Title, c.Category, c.Target, string(c.Status), c.Institution, c.Region, c.Place,
			c.CourseDate, c.ApplyDate, c.Time, c.Price, c.Capacity, c.Contact, c.Link,
			c.ImageURL, raw,
		)
	}
	b.WriteString(" ON CONFLICT (institution, title) DO UPDATE SET ")
	first := true
	for _, col := range columns {
		if col == "institution" || col == "title" {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&b, "%s = EXCLUDED.%s", col, col)
	}
	b.WriteString(", updated_at = now()")
	return b.String(), args, nil
}

func rawJSON(raw map[string]any) ([]byte, error) {
	if raw == nil {
		return []byte("{}"), nil
	}
	out, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal raw_data: %w", err)
	}
	return out, nil
}

// CreatedSince returns courses first inserted at or after since, oldest first.
func (s *CourseStore) CreatedSince(ctx context.Context, since time.Time) ([]course.Course, error) {
	query := fmt.Sprintf(`SELECT id::text, %s, created_at, updated_at FROM %s WHERE created_at >= $1 ORDER BY created_at`,
		strings.Join(columns, ", "), s.table)
	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query new courses: %w", err)
	}
	defer rows.Close()

	var out []course.Course
	for rows.Next() {
		var (
			c      course.Course
			status string
			raw    []byte
		)
		if err := rows.Scan(
			&c.ID, &c.Title, &c.Category, &c.Target, &status, &c.Institution, &c.Region, &c.Place,
			&c.CourseDate, &c.ApplyDate, &c.Time, &c.Price, &c.Capacity, &c.Contact, &c.Link,
			&c.ImageURL, &raw, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		c.Status = course.Status(status)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &c.RawData); err != nil {
				return nil, fmt.Errorf("decode raw_data for %q: %w", c.Title, err)
			}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate courses: %w", err)
	}
	return out, nil
}

// DistinctLocations lists every stored (region, institution) pair.
func (s *CourseStore) DistinctLocations(ctx context.Context) ([]course.Location, error) {
	query := fmt.Sprintf(`SELECT DISTINCT region, institution FROM %s ORDER BY region, institution`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	var out []course.Location
	for rows.Next() {
		var loc course.Location
		if err := rows.Scan(&loc.Region, &loc.Institution); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return out, nil
}

// Schema is the DDL the store expects.
const Schema = `CREATE TABLE IF NOT EXISTS courses (
	id          BIGSERIAL PRIMARY KEY,
	title       TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '기타',
	target      TEXT NOT NULL DEFAULT '전체',
	status      TEXT NOT NULL DEFAULT '접수중',
	institution TEXT NOT NULL DEFAULT '기관 미정',
	region      TEXT NOT NULL DEFAULT '서울특별시',
	place       TEXT NOT NULL DEFAULT '',
	course_date TEXT NOT NULL DEFAULT '',
	apply_date  TEXT NOT NULL DEFAULT '',
	time        TEXT NOT NULL DEFAULT '',
	price       TEXT NOT NULL DEFAULT '무료',
	capacity    INTEGER NOT NULL DEFAULT 0,
	contact     TEXT NOT NULL DEFAULT '',
	link        TEXT NOT NULL DEFAULT '',
	image_url   TEXT NOT NULL DEFAULT '',
	raw_data    JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (institution, title)
);`
