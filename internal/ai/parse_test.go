package ai

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/course-ingest/internal/course"
)

func TestStripFences(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"```json\n{\"courses\": []}\n```":         `{"courses": []}`,
		"```\n[{\"title\":\"a\"}]\n```":            `[{"title":"a"}]`,
		"Here you go: {\"courses\": []} Thanks!":   `{"courses": []}`,
		"  {\"courses\": [{\"title\": \"x\"}]}  ": `{"courses": [{"title": "x"}]}`,
		"no json here":                             "no json here",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripFences(in), "input %q", in)
	}
}

func TestParseCoursesEnvelopeAndArray(t *testing.T) {
	t.Parallel()

	got, err := ParseCourses("```json\n{\"courses\": [{\"title\": \"요가\", \"capacity\": \"20명\", \"price\": \"무료\"}]}\n```")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "요가", got[0].Title)
	assert.Equal(t, course.Capacity(20), got[0].Capacity)

	got, err = ParseCourses(`[{"title": "수채화"}, {"title": "합창"}]`)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestParseCoursesLenientJSON5(t *testing.T) {
	t.Parallel()

	raw := "{courses: [{title: '캘리그라피', capacity: 12,}, // trailing\n],}"
	got, err := ParseCourses(raw)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "캘리그라피", got[0].Title)
	assert.Equal(t, course.Capacity(12), got[0].Capacity)
}

func TestParseCoursesErrors(t *testing.T) {
	t.Parallel()

	_, err := ParseCourses("   ")
	require.ErrorIs(t, err, ErrEmptyResponse)

	_, err = ParseCourses("{courses: [")
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestCleanFallsBackToUsableEntries(t *testing.T) {
	t.Parallel()

	cands := []course.Candidate{
		{Title: "요가 교실", Price: "무료"},
		{Title: "   "},
		{Title: "<b></b>"},
		{Title: "도자기", Place: strings.Repeat("가", 600)},
	}
	got, err := Clean(cands)
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.NotEmpty(t, verr.Problems)

	require.Len(t, got, 2)
	assert.Equal(t, "요가 교실", got[0].Title)
	assert.Equal(t, "도자기", got[1].Title)
	require.NoError(t, Validate(got))
}

func TestCleanPassesValidInput(t *testing.T) {
	t.Parallel()

	cands := []course.Candidate{{Title: "요가"}, {Title: "필라테스", Capacity: 10}}
	got, err := Clean(cands)
	require.NoError(t, err)
	assert.Equal(t, cands, got)
}

func TestTextPromptEmbedsText(t *testing.T) {
	t.Parallel()

	p := TextPrompt(`강좌 \"목록\"`)
	assert.Contains(t, p, `{"page_text": "강좌 \"목록\""}`)
	assert.Contains(t, p, "모집종료")
	assert.Contains(t, ImagePrompt(), "poster")
}
