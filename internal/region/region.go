// Package region reconciles free-text region, institution and place fields
// into a canonical (district, institution) pair.
//
// The same Normalize function is used when courses are ingested and when the
// read path builds filter metadata, so stored values and filter values never
// drift apart. The package holds no mutable state.
package region

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	// Seoul is the province-level default region.
	Seoul = "서울특별시"
	// UnknownInstitution is used when no institution can be derived.
	UnknownInstitution = "기관 미정"
)

// districts lists the 25 autonomous districts of Seoul in canonical order.
var districts = []string{
	"종로구", "중구", "용산구", "성동구", "광진구",
	"동대문구", "중랑구", "성북구", "강북구", "도봉구",
	"노원구", "은평구", "서대문구", "마포구", "양천구",
	"강서구", "구로구", "금천구", "영등포구", "동작구",
	"관악구", "서초구", "강남구", "송파구", "강동구",
}

var districtIndex = func() map[string]int {
	m := make(map[string]int, len(districts))
	for i, d := range districts {
		m[d] = i
	}
	return m
}()

// seoulPrefixes are stripped longest first.
var seoulPrefixes = []string{"서울특별시", "서울시", "서울"}

// Result is a canonical region/institution pair.
type Result struct {
	Region      string `json:"region"`
	Institution string `json:"institution"`
}

// Districts returns a copy of the Seoul district list in canonical order.
func Districts() []string {
	out := make([]string, len(districts))
	copy(out, districts)
	return out
}

// IsSeoulDistrict reports whether s is exactly one of the 25 district names.
func IsSeoulDistrict(s string) bool {
	_, ok := districtIndex[clean(s)]
	return ok
}

// DistrictRank orders districts canonically; non-districts sort after them.
func DistrictRank(s string) int {
	if i, ok := districtIndex[s]; ok {
		return i
	}
	return len(districts)
}

// DistrictOf returns the Seoul district that s names first, ignoring any
// Seoul prefix. Road addresses such as "서울특별시 강남구 테헤란로 1" work.
func DistrictOf(s string) (string, bool) {
	d, _, ok := matchDistrict(clean(s))
	return d, ok
}

// Normalize maps raw (region, institution, place) values from any source to
// a canonical pair. It is idempotent on its own output.
func Normalize(rawRegion, rawInstitution, rawPlace string) Result {
	rawRegion = clean(rawRegion)
	rawInstitution = clean(rawInstitution)
	rawPlace = clean(rawPlace)

	for _, candidate := range []string{rawRegion, rawPlace, rawInstitution} {
		if candidate == "" {
			continue
		}
		district, remainder, ok := matchDistrict(candidate)
		if !ok {
			continue
		}
		// A separate institution value is authoritative and only aliased;
		// it is inferred from the compound string only when it is missing
		// or is the string that named the district.
		institution := rawInstitution
		if institution == "" || institution == district || institution == candidate {
			institution = remainder
		}
		if institution == "" {
			institution = fallbackInstitution("", rawPlace, district)
		}
		return Result{Region: district, Institution: RefineInstitutionName(institution)}
	}

	region := rawRegion
	if region == "" || isBareSeoul(region) {
		region = Seoul
	}
	return Result{
		Region:      region,
		Institution: RefineInstitutionName(fallbackInstitution(rawInstitution, rawPlace, "")),
	}
}

func matchDistrict(candidate string) (district, remainder string, ok bool) {
	rest := stripSeoulPrefix(candidate)
	for _, d := range districts {
		if strings.HasPrefix(rest, d) {
			return d, strings.TrimSpace(strings.TrimPrefix(rest, d)), true
		}
	}
	return "", "", false
}

func stripSeoulPrefix(s string) string {
	for _, p := range seoulPrefixes {
		if strings.HasPrefix(s, p) {
			return strings.TrimSpace(strings.TrimPrefix(s, p))
		}
	}
	return s
}

func isBareSeoul(s string) bool {
	return stripSeoulPrefix(s) == "" && s != ""
}

func fallbackInstitution(institution, place, district string) string {
	if institution != "" {
		return institution
	}
	if place != "" && place != district {
		if d, rest, ok := matchDistrict(place); ok && d == district {
			place = rest
		}
		if place != "" {
			return place
		}
	}
	return UnknownInstitution
}

func clean(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}
