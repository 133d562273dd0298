package course

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatusClosedSynonyms(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"마감", "접수완료", "강좌종료", "접수 마감", " 모집마감 "} {
		require.Equal(t, StatusClosed, NormalizeStatus(raw), "raw %q", raw)
	}
	for _, raw := range ClosedSynonyms() {
		require.Equal(t, StatusClosed, NormalizeStatus(raw), "raw %q", raw)
		require.True(t, IsClosedFamily(raw))
	}
}

func TestNormalizeStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]Status{
		"":       StatusOpen,
		"접수중":    StatusOpen,
		"모집중":    StatusOpen,
		"대기신청":   StatusWaitlist,
		"마감임박":   StatusClosingSoon,
		"접수예정":   StatusUpcoming,
		"추가모집":   StatusReopened,
		"전화문의":   StatusUnknown,
		"lottery": StatusUnknown,
	}
	for raw, want := range tests {
		assert.Equal(t, want, NormalizeStatus(raw), "raw %q", raw)
	}
	for _, s := range Statuses() {
		assert.Equal(t, s, NormalizeStatus(string(s)), "canonical values map to themselves")
		assert.True(t, s.Valid())
	}
	assert.False(t, Status("whatever").Valid())
}

func TestDedupeLastWriteWins(t *testing.T) {
	t.Parallel()

	in := []Course{
		{Institution: "마포평생학습관", Title: "요가", Price: "10000원"},
		{Institution: "마포평생학습관", Title: "수채화", Price: "무료"},
		{Institution: "마포평생학습관", Title: "요가", Price: "20000원", Capacity: 15},
		{Institution: "역삼도서관", Title: "요가", Price: "무료"},
	}
	got := Dedupe(in)

	want := []Course{
		{Institution: "마포평생학습관", Title: "요가", Price: "20000원", Capacity: 15},
		{Institution: "마포평생학습관", Title: "수채화", Price: "무료"},
		{Institution: "역삼도서관", Title: "요가", Price: "무료"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Dedupe mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, Dedupe(nil))
	assert.Equal(t, []string{"마포평생학습관", "역삼도서관"}, Institutions(got))
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	got := ApplyDefaults(Course{Title: "요가 교실", Capacity: -3})
	assert.Equal(t, DefaultCategory, got.Category)
	assert.Equal(t, DefaultTarget, got.Target)
	assert.Equal(t, StatusOpen, got.Status)
	assert.Equal(t, DefaultPrice, got.Price)
	assert.Equal(t, DefaultInstitution, got.Institution)
	assert.Equal(t, DefaultRegion, got.Region)
	assert.Zero(t, got.Capacity)
	assert.Equal(t, "/images/course/exercise.jpg", got.ImageURL)
}

func TestAssignImage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/images/course/cooking.jpg", AssignImage("주말 베이킹 클래스", ""))
	assert.Equal(t, "/images/course/computer.jpg", AssignImage("시니어 스마트폰 활용", "기타"))
	assert.Equal(t, "/images/course/language.jpg", AssignImage("Basic", "영어"))
	assert.Equal(t, PlaceholderImage, AssignImage("평생학습 안내", DefaultCategory))
	assert.Equal(t, AssignImage("수채화", ""), AssignImage("수채화", ""))
}

func TestCapacityDecoding(t *testing.T) {
	t.Parallel()

	tests := map[string]Capacity{
		`{"title":"a","capacity":20}`:      20,
		`{"title":"a","capacity":"20명"}`:   20,
		`{"title":"a","capacity":"1,200"}`: 1200,
		`{"title":"a","capacity":-5}`:      0,
		`{"title":"a","capacity":"제한없음"}`:  0,
		`{"title":"a","capacity":null}`:    0,
		`{"title":"a","capacity":12.7}`:    12,
		`{"title":"a","capacity":true}`:    0,
		`{"title":"a"}`:                    0,
	}
	for in, want := range tests {
		var c Candidate
		require.NoError(t, json.Unmarshal([]byte(in), &c), in)
		assert.Equal(t, want, c.Capacity, in)
	}
}

func TestCandidateRaw(t *testing.T) {
	t.Parallel()

	raw := Candidate{Title: "요가", Price: "무료", Capacity: 10}.Raw()
	assert.Equal(t, map[string]any{"title": "요가", "price": "무료", "capacity": 10}, raw)
}

func TestDateFormatting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2024.03.01 ~ 2024.03.31", FormatDateRange("2024-03-01", "20240331"))
	assert.Equal(t, "2024.03.01", FormatDateRange("2024/3/1", ""))
	assert.Equal(t, "2024.03.01", FormatDateRange("2024.03.01", "2024-03-01"))
	assert.Equal(t, "~ 2024.12.31", FormatDateRange("", "2024년 12월 31일"))
	assert.Equal(t, "", FormatDateRange("", ""))
	assert.Equal(t, "상시", FormatDate(" 상시 "))

	_, ok := ParseDate("not a date")
	assert.False(t, ok)

	a := time.Date(2024, 3, 1, 23, 0, 0, 0, Seoul)
	b := time.Date(2024, 3, 2, 1, 0, 0, 0, Seoul)
	assert.Equal(t, 1, DaysBetween(a, b))
	assert.Equal(t, "2024.03.01 ~ 2024.03.02", FormatRange(a, b))
}

func TestSiteValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Site{Name: "a", URL: "https://x"}.Validate())
	require.Error(t, Site{URL: "https://x"}.Validate())
	require.Error(t, Site{Name: "a"}.Validate())
	require.Error(t, Site{Name: "a", URL: "https://x", Variant: "ftp"}.Validate())
}

func TestCourseDDay(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Course{}.DDay())
	assert.Equal(t, "D-3", Course{RawData: map[string]any{RawKeyDDay: "D-3"}}.DDay())
}
