package orchestrator

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/course-ingest/internal/course"
)

//go:embed sites.yaml
var embeddedSites []byte

type siteFile struct {
	Sites []course.Site `yaml:"sites"`
}

// LoadSites reads the site list from path, or the built-in list when path is
// empty.
func LoadSites(path string) ([]course.Site, error) {
	data := embeddedSites
	if path != "" {
		b, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path.
		if err != nil {
			return nil, fmt.Errorf("read sites file: %w", err)
		}
		data = b
	}
	return ParseSites(data)
}

// ParseSites decodes and validates a YAML site list. Missing variants default
// to generic.
func ParseSites(data []byte) ([]course.Site, error) {
	var f siteFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode sites: %w", err)
	}
	if len(f.Sites) == 0 {
		return nil, fmt.Errorf("sites list is empty")
	}
	names := make(map[string]bool, len(f.Sites))
	for i := range f.Sites {
		s := &f.Sites[i]
		if s.Variant == "" {
			s.Variant = course.VariantGeneric
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("site %d: %w", i, err)
		}
		if names[s.Name] {
			return nil, fmt.Errorf("site %d: duplicate name %q", i, s.Name)
		}
		names[s.Name] = true
	}
	return f.Sites, nil
}

// Selection narrows the site list. Start and End are zero-based with End
// exclusive; End <= 0 means the end of the list. Target keeps sites whose
// name or region contains it.
type Selection struct {
	Start  int
	End    int
	Target string
}

// Empty reports whether the selection keeps every site.
func (s Selection) Empty() bool {
	return s.Start <= 0 && s.End <= 0 && strings.TrimSpace(s.Target) == ""
}

// Select applies the index range first, then the target filter.
func Select(sites []course.Site, sel Selection) ([]course.Site, error) {
	start, end := sel.Start, sel.End
	if start < 0 {
		return nil, fmt.Errorf("start index %d is negative", start)
	}
	if end <= 0 || end > len(sites) {
		end = len(sites)
	}
	if start >= end {
		return nil, fmt.Errorf("empty index range [%d, %d) over %d sites", sel.Start, end, len(sites))
	}
	ranged := sites[start:end]

	target := strings.ToLower(strings.TrimSpace(sel.Target))
	if target == "" {
		return append([]course.Site(nil), ranged...), nil
	}
	var out []course.Site
	for _, s := range ranged {
		if strings.Contains(strings.ToLower(s.Name), target) || strings.Contains(strings.ToLower(s.Region), target) {
			out = append(out, s)
		}
	}
	return out, nil
}

// suggestThreshold is the minimum Jaro-Winkler similarity for a suggestion.
const suggestThreshold = 0.7

// Suggest returns up to three site names closest to target, best first.
func Suggest(sites []course.Site, target string) []string {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil
	}
	type scored struct {
		name  string
		score float64
	}
	var hits []scored
	for _, s := range sites {
		best := matchr.JaroWinkler(target, s.Name, false)
		if r := matchr.JaroWinkler(target, s.Region, false); r > best {
			best = r
		}
		if best >= suggestThreshold {
			hits = append(hits, scored{name: s.Name, score: best})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	out := make([]string, 0, 3)
	for _, h := range hits {
		if len(out) == 3 {
			break
		}
		out = append(out, h.name)
	}
	return out
}
