// Package course defines the canonical course record and the contracts shared
// by the extractors, drivers and stores.
package course

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Default field values applied before persistence.
const (
	DefaultCategory    = "기타"
	DefaultTarget      = "전체"
	DefaultPrice       = "무료"
	DefaultInstitution = "기관 미정"
	DefaultRegion      = "서울특별시"
)

// Course is the canonical record persisted to the courses table.
type Course struct {
	ID          string         `json:"id,omitempty"`
	Title       string         `json:"title"`
	Category    string         `json:"category"`
	Target      string         `json:"target"`
	Status      Status         `json:"status"`
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
	RawData     map[string]any `json:"raw_data,omitempty"`
	CreatedAt   time.Time      `json:"created_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at,omitempty"`
}

// Key identifies a course; two records sharing a key are the same course.
type Key struct {
	Institution string
	Title       string
}

// Key returns the dedup/upsert identity of c.
func (c Course) Key() Key {
	return Key{Institution: c.Institution, Title: c.Title}
}

// DDay returns the derived D-day label stored in raw_data, if any.
func (c Course) DDay() string {
	if c.RawData == nil {
		return ""
	}
	s, _ := c.RawData[RawKeyDDay].(string)
	return s
}

// Raw data keys written by the pipeline alongside the source object.
const (
	RawKeyDDay      = "d_day"
	RawKeyRawStatus = "raw_status"
	RawKeySource    = "source"
	RawKeyStage     = "stage"
)

// Location is a (region, institution) pair used by filter metadata.
type Location struct {
	Region      string `json:"region"`
	Institution string `json:"institution"`
}

// ApplyDefaults fills empty fields with their documented defaults.
func ApplyDefaults(c Course) Course {
	if strings.TrimSpace(c.Category) == "" {
		c.Category = DefaultCategory
	}
	if strings.TrimSpace(c.Target) == "" {
		c.Target = DefaultTarget
	}
	if c.Status == "" {
		c.Status = StatusOpen
	}
	if strings.TrimSpace(c.Price) == "" {
		c.Price = DefaultPrice
	}
	if c.Capacity < 0 {
		c.Capacity = 0
	}
	if strings.TrimSpace(c.Institution) == "" {
		c.Institution = DefaultInstitution
	}
	if strings.TrimSpace(c.Region) == "" {
		c.Region = DefaultRegion
	}
	if c.ImageURL == "" {
		c.ImageURL = AssignImage(c.Title, c.Category)
	}
	return c
}

// Candidate is one raw course object produced by an extractor before
// normalization. Field names follow the extractor JSON contract.
type Candidate struct {
	Title       string   `json:"title"`
	Category    string   `json:"category,omitempty"`
	Target      string   `json:"target,omitempty"`
	Status      string   `json:"status,omitempty"`
	ApplyDate   string   `json:"apply_date,omitempty"`
	CourseDate  string   `json:"course_date,omitempty"`
	Time        string   `json:"time,omitempty"`
	Price       string   `json:"price,omitempty"`
	Capacity    Capacity `json:"capacity,omitempty"`
	Place       string   `json:"place,omitempty"`
	Institution string   `json:"institution,omitempty"`
	Region      string   `json:"region,omitempty"`
	Contact     string   `json:"contact,omitempty"`
	Link        string   `json:"link,omitempty"`
}

// Raw renders the candidate as a generic map for the raw_data audit column.
func (c Candidate) Raw() map[string]any {
	m := map[string]any{"title": c.Title}
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	put("category", c.Category)
	put("target", c.Target)
	put("status", c.Status)
	put("apply_date", c.ApplyDate)
	put("course_date", c.CourseDate)
	put("time", c.Time)
	put("price", c.Price)
	put("place", c.Place)
	put("institution", c.Institution)
	put("region", c.Region)
	put("contact", c.Contact)
	put("link", c.Link)
	m["capacity"] = int(c.Capacity)
	return m
}

// Capacity decodes seat counts that extractors emit as numbers, numeric
// strings, or phrases such as "20명". Anything unparseable or negative
// decodes to zero.
type Capacity int

var digits = regexp.MustCompile(`\d+`)

// UnmarshalJSON implements json.Unmarshaler.
func (c *Capacity) UnmarshalJSON(b []byte) error {
	*c = 0
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*c = capacityFromFloat(f)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return nil
	}
	*c = ParseCapacity(str)
	return nil
}

// ParseCapacity extracts the first integer from s.
func ParseCapacity(s string) Capacity {
	m := digits.FindString(strings.ReplaceAll(s, ",", ""))
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 0 {
		return 0
	}
	return Capacity(n)
}

func capacityFromFloat(f float64) Capacity {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxInt32 {
		return 0
	}
	return Capacity(int(f))
}

// Site describes one ingestion source.
type Site struct {
	Name          string   `yaml:"name" json:"name"`
	Region        string   `yaml:"region" json:"region"`
	Institution   string   `yaml:"institution" json:"institution,omitempty"`
	URL           string   `yaml:"url" json:"url"`
	Variant       Variant  `yaml:"variant" json:"variant"`
	Replace       bool     `yaml:"replace" json:"replace,omitempty"`
	DetailURL     string   `yaml:"detail_url" json:"detail_url,omitempty"`
	SearchURL     string   `yaml:"search_url" json:"search_url,omitempty"`
	ListSelectors []string `yaml:"list_selectors" json:"list_selectors,omitempty"`
	MaxPages      int      `yaml:"max_pages" json:"max_pages,omitempty"`
	PageSize      string   `yaml:"page_size" json:"page_size,omitempty"`
}

// Variant selects the driver used for a site.
type Variant string

// Supported driver variants.
const (
	VariantGeneric Variant = "generic"
	VariantPortal  Variant = "portal"
)

// Validate checks that a site descriptor is usable.
func (s Site) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("site name is required")
	}
	if strings.TrimSpace(s.URL) == "" {
		return fmt.Errorf("site %q: url is required", s.Name)
	}
	switch s.Variant {
	case "", VariantGeneric, VariantPortal:
	default:
		return fmt.Errorf("site %q: unknown variant %q", s.Name, s.Variant)
	}
	return nil
}
