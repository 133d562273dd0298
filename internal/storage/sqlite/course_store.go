// Package sqlite implements a single-file course store for local runs and
// dry runs that still want to inspect the output.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JakeFAU/course-ingest/internal/course"
)

const schema = `
CREATE TABLE IF NOT EXISTS courses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	category TEXT NOT NULL,
	target TEXT NOT NULL,
	status TEXT NOT NULL,
	institution TEXT NOT NULL,
	region TEXT NOT NULL,
	place TEXT NOT NULL DEFAULT '',
	course_date TEXT NOT NULL DEFAULT '',
	apply_date TEXT NOT NULL DEFAULT '',
	time TEXT NOT NULL DEFAULT '',
	price TEXT NOT NULL,
	capacity INTEGER NOT NULL DEFAULT 0,
	contact TEXT NOT NULL DEFAULT '',
	link TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	raw_data TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE(institution, title)
);
CREATE INDEX IF NOT EXISTS courses_created_at ON courses(created_at);
`

const upsertStmt = `
INSERT INTO courses (
	title, category, target, status, institution, region, place, course_date,
	apply_date, time, price, capacity, contact, link, image_url, raw_data,
	created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(institution, title) DO UPDATE SET
	category=excluded.category,
	target=excluded.target,
	status=excluded.status,
	region=excluded.region,
	place=excluded.place,
	course_date=excluded.course_date,
	apply_date=excluded.apply_date,
	time=excluded.time,
	price=excluded.price,
	capacity=excluded.capacity,
	contact=excluded.contact,
	link=excluded.link,
	image_url=excluded.image_url,
	raw_data=excluded.raw_data,
	updated_at=excluded.updated_at
`

// CourseStore is a course.Store on an SQLite database.
type CourseStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ course.Store = (*CourseStore)(nil)

// Open opens (creating if needed) the database at path. ":memory:" works for
// tests.
func Open(ctx context.Context, path string, clock course.Clock) (*CourseStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store.sqlite_path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Every pooled connection to ":memory:" would see its own database.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	now := time.Now
	if clock != nil {
		now = clock.Now
	}
	return &CourseStore{db: db, now: now}, nil
}

// Close closes the database.
func (s *CourseStore) Close() error {
	return s.db.Close()
}

// Upsert implements course.Store.
func (s *CourseStore) Upsert(ctx context.Context, courses []course.Course) (int, error) {
	if len(courses) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	n, err := s.upsert(ctx, tx, course.Dedupe(courses))
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return n, nil
}

// Replace implements course.Store.
func (s *CourseStore) Replace(ctx context.Context, institutions []string, courses []course.Course) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, inst := range institutions {
		if _, err := tx.ExecContext(ctx, `DELETE FROM courses WHERE institution = ?`, inst); err != nil {
			return 0, fmt.Errorf("delete institution %q: %w", inst, err)
		}
	}
	n, err := s.upsert(ctx, tx, course.Dedupe(courses))
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit replace: %w", err)
	}
	return n, nil
}

func (s *CourseStore) upsert(ctx context.Context, tx *sql.Tx, courses []course.Course) (int, error) {
	stmt, err := tx.PrepareContext(ctx, upsertStmt)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	ts := s.now().UnixMilli()
	for _, c := range courses {
		raw := []byte("{}")
		if c.RawData != nil {
			if raw, err = json.Marshal(c.RawData); err != nil {
				return 0, fmt.Errorf("marshal raw_data for %q: %w", c.Title, err)
			}
		}
		if _, err := stmt.ExecContext(ctx,
			c.Title, c.Category, c.Target, string(c.Status), c.Institution, c.Region, c.Place,
			c.CourseDate, c.ApplyDate, c.Time, c.Price, c.Capacity, c.Contact, c.Link, c.ImageURL,
			string(raw), ts, ts,
		); err != nil {
			return 0, fmt.Errorf("upsert %q: %w", c.Title, err)
		}
	}
	return len(courses), nil
}

// CreatedSince implements course.Store.
func (s *CourseStore) CreatedSince(ctx context.Context, since time.Time) ([]course.Course, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, title, category, target, status, institution, region, place, course_date,
	apply_date, time, price, capacity, contact, link, image_url, raw_data, created_at, updated_at
FROM courses WHERE created_at >= ? ORDER BY created_at, id`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query new courses: %w", err)
	}
	defer rows.Close()

	var out []course.Course
	for rows.Next() {
		var (
			c                course.Course
			id               int64
			status, raw      string
			created, updated int64
		)
		if err := rows.Scan(&id, &c.Title, &c.Category, &c.Target, &status, &c.Institution, &c.Region,
			&c.Place, &c.CourseDate, &c.ApplyDate, &c.Time, &c.Price, &c.Capacity, &c.Contact, &c.Link,
			&c.ImageURL, &raw, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		c.ID = fmt.Sprint(id)
		c.Status = course.Status(status)
		c.CreatedAt = time.UnixMilli(created).UTC()
		c.UpdatedAt = time.UnixMilli(updated).UTC()
		if err := json.Unmarshal([]byte(raw), &c.RawData); err != nil {
			return nil, fmt.Errorf("decode raw_data for %q: %w", c.Title, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DistinctLocations implements course.Store.
func (s *CourseStore) DistinctLocations(ctx context.Context) ([]course.Location, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT region, institution FROM courses ORDER BY region, institution`)
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
	return out, rows.Err()
}
