package memory

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/JakeFAU/course-ingest/internal/course"
)

// CourseStore keeps courses in-memory for dry runs and tests.
type CourseStore struct {
	mu     sync.RWMutex
	rows   map[course.Key]course.Course
	order  []course.Key
	nextID int
	now    func() time.Time
	// FailUpserts makes the next n Upsert calls fail.
	FailUpserts int
	calls       int
}

var _ course.Store = (*CourseStore)(nil)

// ErrInjected is returned by Upsert while FailUpserts is positive.
var ErrInjected = errors.New("memory store: injected failure")

// NewCourseStore constructs a CourseStore. A nil clock uses time.Now.
func NewCourseStore(clock course.Clock) *CourseStore {
	now := time.Now
	if clock != nil {
		now = clock.Now
	}
	return &CourseStore{rows: make(map[course.Key]course.Course), now: now}
}

// Upsert implements course.Store.
func (s *CourseStore) Upsert(_ context.Context, courses []course.Course) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.FailUpserts > 0 {
		s.FailUpserts--
		return 0, ErrInjected
	}
	return s.put(courses), nil
}

// Replace implements course.Store.
func (s *CourseStore) Replace(_ context.Context, institutions []string, courses []course.Course) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[string]bool, len(institutions))
	for _, inst := range institutions {
		drop[inst] = true
	}
	kept := s.order[:0]
	for _, k := range s.order {
		if drop[k.Institution] {
			delete(s.rows, k)
			continue
		}
		kept = append(kept, k)
	}
	s.order = kept
	return s.put(courses), nil
}

func (s *CourseStore) put(courses []course.Course) int {
	ts := s.now()
	courses = course.Dedupe(courses)
	for _, c := range courses {
		k := c.Key()
		if old, ok := s.rows[k]; ok {
			c.ID, c.CreatedAt = old.ID, old.CreatedAt
		} else {
			s.nextID++
			c.ID = strconv.Itoa(s.nextID)
			c.CreatedAt = ts
			s.order = append(s.order, k)
		}
		c.UpdatedAt = ts
		s.rows[k] = c
	}
	return len(courses)
}

// CreatedSince implements course.Store.
func (s *CourseStore) CreatedSince(_ context.Context, since time.Time) ([]course.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []course.Course
	for _, k := range s.order {
		if c := s.rows[k]; !c.CreatedAt.Before(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

// DistinctLocations implements course.Store.
func (s *CourseStore) DistinctLocations(context.Context) ([]course.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[course.Location]bool)
	var out []course.Location
	for _, k := range s.order {
		c := s.rows[k]
		loc := course.Location{Region: c.Region, Institution: c.Institution}
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

// All returns every stored course in insertion order.
func (s *CourseStore) All() []course.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]course.Course, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.rows[k])
	}
	return out
}

// Calls reports how many times Upsert was invoked.
func (s *CourseStore) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

// Close implements course.Store.
func (s *CourseStore) Close() error { return nil }
