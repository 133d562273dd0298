package driver

import (
	"net/url"
	"strings"

	"github.com/JakeFAU/course-ingest/internal/course"
	"github.com/JakeFAU/course-ingest/internal/extract"
	"github.com/JakeFAU/course-ingest/internal/region"
	"github.com/JakeFAU/course-ingest/internal/sanitize"
)

// Mapper turns raw extractor candidates into canonical courses.
type Mapper struct{}

// SiteInstitution is the canonical institution every course of site is
// stored under, or "" when the site does not pin one. Map resolves pinned
// sites through the same normalization.
func SiteInstitution(site course.Site) string {
	if strings.TrimSpace(site.Institution) == "" {
		return ""
	}
	return region.Normalize(field(site.Region), field(site.Institution), "").Institution
}

// Map normalizes, sanitizes and defaults every usable candidate, attaches a
// link and the audit raw_data, and dedupes the result. stage is recorded in
// raw_data for traceability.
func (Mapper) Map(site course.Site, stage string, cands []course.Candidate) []course.Course {
	out := make([]course.Course, 0, len(cands))
	for _, c := range cands {
		title := sanitize.Title(c.Title)
		if title == "" {
			continue
		}
		institution := c.Institution
		if site.Institution != "" {
			institution = site.Institution
		}
		rawRegion := c.Region
		if rawRegion == "" {
			rawRegion = site.Region
		}
		place := field(c.Place)
		loc := region.Normalize(field(rawRegion), field(institution), place)

		status := course.NormalizeStatus(c.Status)
		raw := c.Raw()
		raw[course.RawKeySource] = site.Name
		if stage != "" {
			raw[course.RawKeyStage] = stage
		}
		if status == course.StatusUnknown {
			raw[course.RawKeyRawStatus] = c.Status
		}

		cand := c
		cand.Title = title
		out = append(out, course.ApplyDefaults(course.Course{
			Title:       title,
			Category:    field(c.Category),
			Target:      field(c.Target),
			Status:      status,
			Institution: loc.Institution,
			Region:      loc.Region,
			Place:       place,
			CourseDate:  normalizeDates(c.CourseDate),
			ApplyDate:   normalizeDates(c.ApplyDate),
			Time:        field(c.Time),
			Price:       field(c.Price),
			Capacity:    int(c.Capacity),
			Contact:     field(c.Contact),
			Link:        Link(site, cand),
			RawData:     raw,
		}))
	}
	return course.Dedupe(out)
}

func field(s string) string {
	return sanitize.TextField(s, sanitize.MaxFieldLength)
}

// normalizeDates renders "start ~ end" style ranges in the display layout
// when both ends parse, and passes anything else through sanitized.
func normalizeDates(raw string) string {
	raw = field(raw)
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, "~", 2)
	if len(parts) == 2 {
		if _, ok := course.ParseDate(parts[0]); ok {
			if _, ok := course.ParseDate(parts[1]); ok {
				return course.FormatDateRange(parts[0], parts[1])
			}
		}
	}
	return raw
}

// Link picks the most specific URL for a course: the site's detail template,
// the candidate's own resolvable link, the site's search template, and
// finally a search-by-title query on the site URL.
func Link(site course.Site, c course.Candidate) string {
	title := strings.TrimSpace(c.Title)
	if site.DetailURL != "" && title != "" {
		return expandTemplate(site.DetailURL, title)
	}
	if c.Link != "" {
		if abs := extract.Resolve(site.URL, c.Link); abs != "" {
			return abs
		}
	}
	if site.SearchURL != "" && title != "" {
		return expandTemplate(site.SearchURL, title)
	}
	u, err := url.Parse(site.URL)
	if err != nil || title == "" {
		return site.URL
	}
	q := u.Query()
	q.Set("searchKeyword", title)
	u.RawQuery = q.Encode()
	return u.String()
}

func expandTemplate(tpl, title string) string {
	esc := url.QueryEscape(title)
	return strings.NewReplacer("{title}", esc, "{query}", esc).Replace(tpl)
}
