// Package filters derives the region/institution filter read-model from stored
// course locations using the same normalizer the ingestion path uses.
package filters

import (
	"sort"

	"github.com/JakeFAU/course-ingest/internal/course"
	"github.com/JakeFAU/course-ingest/internal/region"
)

// Entry is one distinct canonical (region, institution) pair.
type Entry struct {
	Region      string `json:"region"`
	Institution string `json:"institution"`
}

// Build normalizes, dedupes and sorts raw location pairs. Seoul districts
// come first in canonical order, followed by other regions alphabetically.
func Build(locations []course.Location) []Entry {
	seen := make(map[Entry]struct{}, len(locations))
	out := make([]Entry, 0, len(locations))
	for _, loc := range locations {
		r := region.Normalize(loc.Region, loc.Institution, "")
		e := Entry{Region: r.Region, Institution: r.Institution}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := region.DistrictRank(out[i].Region), region.DistrictRank(out[j].Region)
		if ri != rj {
			return ri < rj
		}
		if out[i].Region != out[j].Region {
			return out[i].Region < out[j].Region
		}
		return out[i].Institution < out[j].Institution
	})
	return out
}

// Group maps each region to its sorted institutions.
func Group(entries []Entry) map[string][]string {
	out := make(map[string][]string)
	for _, e := range entries {
		out[e.Region] = append(out[e.Region], e.Institution)
	}
	for k := range out {
		sort.Strings(out[k])
	}
	return out
}

// Regions returns the regions of entries in display order.
func Regions(entries []Entry) []string {
	var out []string
	for i, e := range entries {
		if i > 0 && entries[i-1].Region == e.Region {
			continue
		}
		out = append(out, e.Region)
	}
	return out
}
