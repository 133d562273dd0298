package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/titanous/json5"

	"github.com/JakeFAU/course-ingest/internal/course"
	"github.com/JakeFAU/course-ingest/internal/sanitize"
)

// ErrEmptyResponse is returned when the model produced no content.
var ErrEmptyResponse = errors.New("empty ai response")

// ErrMalformedResponse is returned when the content is not parseable JSON.
var ErrMalformedResponse = errors.New("malformed ai response")

// StripFences removes a surrounding markdown code fence and any prose around
// the outermost JSON value.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

type envelope struct {
	Courses []course.Candidate `json:"courses"`
}

// ParseCourses decodes model output into candidates. It accepts
// {"courses": [...]} or a bare array, tolerates code fences, and falls back
// to JSON5 for trailing commas, comments and single quotes.
func ParseCourses(raw string) ([]course.Candidate, error) {
	body := StripFences(raw)
	if body == "" {
		return nil, ErrEmptyResponse
	}
	data := []byte(body)
	if !json.Valid(data) {
		var loose any
		if err := json5.Unmarshal(data, &loose); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		normalized, err := json.Marshal(loose)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		data = normalized
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []course.Candidate
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return list, nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return env.Courses, nil
}

// ValidationError lists schema violations by candidate index.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("candidate validation failed: %s", strings.Join(e.Problems, "; "))
}

// Validate checks candidates against the extraction schema: a non-blank
// title, optional fields no longer than sanitize.MaxFieldLength, and a
// non-negative capacity.
func Validate(cands []course.Candidate) error {
	var problems []string
	for i, c := range cands {
		if strings.TrimSpace(c.Title) == "" {
			problems = append(problems, fmt.Sprintf("[%d] title is required", i))
		}
		if utf8.RuneCountInString(c.Title) > sanitize.MaxTitleLength {
			problems = append(problems, fmt.Sprintf("[%d] title too long", i))
		}
		for name, v := range optionalFields(c) {
			if utf8.RuneCountInString(v) > sanitize.MaxFieldLength {
				problems = append(problems, fmt.Sprintf("[%d] %s too long", i, name))
			}
		}
		if c.Capacity < 0 {
			problems = append(problems, fmt.Sprintf("[%d] capacity must be >= 0", i))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// FilterUsable keeps candidates whose title survives sanitization and clamps
// the remaining fields so the result passes Validate.
func FilterUsable(cands []course.Candidate) []course.Candidate {
	out := make([]course.Candidate, 0, len(cands))
	for _, c := range cands {
		if sanitize.Title(c.Title) == "" {
			continue
		}
		c.Title = clamp(strings.TrimSpace(c.Title), sanitize.MaxTitleLength)
		c.Category = clamp(c.Category, sanitize.MaxFieldLength)
		c.Target = clamp(c.Target, sanitize.MaxFieldLength)
		c.Status = clamp(c.Status, sanitize.MaxFieldLength)
		c.ApplyDate = clamp(c.ApplyDate, sanitize.MaxFieldLength)
		c.CourseDate = clamp(c.CourseDate, sanitize.MaxFieldLength)
		c.Time = clamp(c.Time, sanitize.MaxFieldLength)
		c.Price = clamp(c.Price, sanitize.MaxFieldLength)
		c.Place = clamp(c.Place, sanitize.MaxFieldLength)
		c.Institution = clamp(c.Institution, sanitize.MaxFieldLength)
		c.Region = clamp(c.Region, sanitize.MaxFieldLength)
		c.Contact = clamp(c.Contact, sanitize.MaxFieldLength)
		c.Link = clamp(c.Link, sanitize.MaxFieldLength)
		if c.Capacity < 0 {
			c.Capacity = 0
		}
		out = append(out, c)
	}
	return out
}

// Clean validates cands and, on failure, falls back to FilterUsable. The
// validation error is returned alongside the filtered list for logging.
func Clean(cands []course.Candidate) ([]course.Candidate, error) {
	if err := Validate(cands); err != nil {
		return FilterUsable(cands), err
	}
	return cands, nil
}

func optionalFields(c course.Candidate) map[string]string {
	return map[string]string{
		"category":    c.Category,
		"target":      c.Target,
		"status":      c.Status,
		"apply_date":  c.ApplyDate,
		"course_date": c.CourseDate,
		"time":        c.Time,
		"price":       c.Price,
		"place":       c.Place,
		"institution": c.Institution,
		"region":      c.Region,
		"contact":     c.Contact,
		"link":        c.Link,
	}
}

func clamp(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
