package course

// Dedupe keeps one record per (institution, title). Later records overwrite
// earlier ones; output order follows the first occurrence of each key.
func Dedupe(courses []Course) []Course {
	if len(courses) == 0 {
		return nil
	}
	index := make(map[Key]int, len(courses))
	out := make([]Course, 0, len(courses))
	for _, c := range courses {
		k := c.Key()
		if i, ok := index[k]; ok {
			out[i] = c
			continue
		}
		index[k] = len(out)
		out = append(out, c)
	}
	return out
}

// Institutions returns the distinct institutions in courses in first-seen
// order.
func Institutions(courses []Course) []string {
	seen := make(map[string]struct{}, len(courses))
	var out []string
	for _, c := range courses {
		if _, ok := seen[c.Institution]; ok {
			continue
		}
		seen[c.Institution] = struct{}{}
		out = append(out, c.Institution)
	}
	return out
}
