// Package supabase stores courses through the Supabase REST (PostgREST) API
// for deployments that only hold a project URL and service key.
package supabase

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	supa "github.com/supabase-community/supabase-go"

	"github.com/JakeFAU/course-ingest/internal/course"
)

// Config holds the project coordinates.
type Config struct {
	URL   string
	Key   string
	Table string
}

// CourseStore is a course.Store over PostgREST. Replace is not atomic here:
// the delete and the insert are separate requests.
type CourseStore struct {
	client *supa.Client
	table  string
}

var _ course.Store = (*CourseStore)(nil)

// New builds the REST client. No request is made until the first call.
func New(cfg Config) (*CourseStore, error) {
	if cfg.URL == "" || cfg.Key == "" {
		return nil, fmt.Errorf("store.supabase_url and store.supabase_key are required")
	}
	table := cfg.Table
	if table == "" {
		table = "courses"
	}
	client, err := supa.NewClient(cfg.URL, cfg.Key, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize supabase client: %w", err)
	}
	return &CourseStore{client: client, table: table}, nil
}

// row is the wire shape; id and timestamps are left to column defaults.
type row struct {
	Title       string         `json:"title"`
	Category    string         `json:"category"`
	Target      string         `json:"target"`
	Status      string         `json:"status"`
	Institution string         `json:"institution"`
	Region      string         `json:"region"`
	Place       string         `json:"place"`
	CourseDate  string         `json:"course_date"`
	ApplyDate   string         `json:"apply_date"`
	Time        string         `json:"time"`
	Price       string         `json:"price"`
	Capacity    int            `json:"capacity"`
	Contact     string         `json:"contact"`
	Link        string         `json:"link"`
	ImageURL    string         `json:"image_url"`
	RawData     map[string]any `json:"raw_data"`
}

type storedRow struct {
	row
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toRow(c course.Course) row {
	raw := c.RawData
	if raw == nil {
		raw = map[string]any{}
	}
	return row{
		Title: c.Title, Category: c.Category, Target: c.Target, Status: string(c.Status),
		Institution: c.Institution, Region: c.Region, Place: c.Place, CourseDate: c.CourseDate,
		ApplyDate: c.ApplyDate, Time: c.Time, Price: c.Price, Capacity: c.Capacity,
		Contact: c.Contact, Link: c.Link, ImageURL: c.ImageURL, RawData: raw,
	}
}

func (r storedRow) toCourse() course.Course {
	return course.Course{
		ID: strconv.FormatInt(r.ID, 10), Title: r.Title, Category: r.Category, Target: r.Target,
		Status: course.Status(r.Status), Institution: r.Institution, Region: r.Region, Place: r.Place,
		CourseDate: r.CourseDate, ApplyDate: r.ApplyDate, Time: r.Time, Price: r.Price,
		Capacity: r.Capacity, Contact: r.Contact, Link: r.Link, ImageURL: r.ImageURL,
		RawData: r.RawData, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

// Upsert implements course.Store with on_conflict=institution,title.
func (s *CourseStore) Upsert(ctx context.Context, courses []course.Course) (int, error) {
	courses = course.Dedupe(courses)
	if len(courses) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rows := make([]row, 0, len(courses))
	for _, c := range courses {
		rows = append(rows, toRow(c))
	}
	if _, _, err := s.client.From(s.table).Upsert(rows, "institution,title", "minimal", "").Execute(); err != nil {
		return 0, fmt.Errorf("upsert courses: %w", err)
	}
	return len(rows), nil
}

// Replace implements course.Store.
func (s *CourseStore) Replace(ctx context.Context, institutions []string, courses []course.Course) (int, error) {
	if len(institutions) > 0 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if _, _, err := s.client.From(s.table).Delete("minimal", "").In("institution", institutions).Execute(); err != nil {
			return 0, fmt.Errorf("delete institutions: %w", err)
		}
	}
	return s.Upsert(ctx, courses)
}

// CreatedSince implements course.Store.
func (s *CourseStore) CreatedSince(ctx context.Context, since time.Time) ([]course.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []storedRow
	if _, err := s.client.From(s.table).
		Select("*", "", false).
		Gte("created_at", since.UTC().Format(time.RFC3339Nano)).
		ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("query new courses: %w", err)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	out := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCourse())
	}
	return out, nil
}

// DistinctLocations implements course.Store. PostgREST has no DISTINCT, so
// pairs are folded client-side.
func (s *CourseStore) DistinctLocations(ctx context.Context) ([]course.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []course.Location
	if _, err := s.client.From(s.table).Select("region,institution", "", false).ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	seen := make(map[course.Location]bool, len(rows))
	out := make([]course.Location, 0, len(rows))
	for _, loc := range rows {
		if !seen[loc] {
			seen[loc] = true
			out = append(out, loc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Region != out[j].Region {
			return out[i].Region < out[j].Region
		}
		return out[i].Institution < out[j].Institution
	})
	return out, nil
}

// Close implements course.Store.
func (s *CourseStore) Close() error { return nil }
