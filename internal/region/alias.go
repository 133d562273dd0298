package region

import "strings"

type aliasMatch int

const (
	matchExact aliasMatch = iota
	matchContains
)

type alias struct {
	match   aliasMatch
	pattern string
	name    string
}

// aliases is checked top to bottom; the first hit wins. Every contains-rule
// target must itself contain the pattern so refinement stays idempotent.
var aliases = []alias{
	{matchExact, "", UnknownInstitution},
	{matchExact, "-", UnknownInstitution},
	{matchExact, "미정", UnknownInstitution},
	{matchExact, "정보없음", UnknownInstitution},
	{matchExact, "기관미정", UnknownInstitution},
	{matchContains, "성동광진", "성동광진교육지원청 평생학습관"},
	{matchContains, "동부교육지원청", "서울특별시교육청 동부교육지원청"},
	{matchContains, "서부교육지원청", "서울특별시교육청 서부교육지원청"},
	{matchContains, "남부교육지원청", "서울특별시교육청 남부교육지원청"},
	{matchContains, "북부교육지원청", "서울특별시교육청 북부교육지원청"},
	{matchContains, "중부교육지원청", "서울특별시교육청 중부교육지원청"},
	{matchContains, "강남서초교육지원청", "강남서초교육지원청 평생학습관"},
	{matchContains, "강동송파교육지원청", "강동송파교육지원청 평생학습관"},
	{matchContains, "정독도서관", "서울특별시교육청 정독도서관"},
	{matchContains, "남산도서관", "서울특별시교육청 남산도서관"},
	{matchContains, "서울시민대학", "서울시민대학"},
	{matchExact, "서울시평생학습포털", "서울특별시평생교육진흥원"},
	{matchExact, "평생학습포털", "서울특별시평생교육진흥원"},
	{matchExact, "서울자유시민대학", "서울시민대학"},
}

// RefineInstitutionName applies the fixed alias table to an institution
// name. Names without a matching rule are returned trimmed.
func RefineInstitutionName(name string) string {
	name = clean(name)
	for _, a := range aliases {
		switch a.match {
		case matchExact:
			if name == a.pattern {
				return a.name
			}
		case matchContains:
			if strings.Contains(name, a.pattern) {
				return a.name
			}
		}
	}
	return name
}
