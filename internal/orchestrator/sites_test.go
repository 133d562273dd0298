package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/course-ingest/internal/course"
)

func TestLoadSitesEmbedded(t *testing.T) {
	t.Parallel()

	sites, err := LoadSites("")
	require.NoError(t, err)
	require.NotEmpty(t, sites)
	assert.Equal(t, course.VariantPortal, sites[0].Variant)
	for _, s := range sites {
		assert.NoError(t, s.Validate())
		assert.NotEmpty(t, s.Variant)
	}
}

func TestLoadSitesFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sites.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sites:
  - name: 정독도서관
    region: 종로구
    url: https://jeongdok.example/lecture
    replace: true
`), 0o600))

	sites, err := LoadSites(path)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, course.VariantGeneric, sites[0].Variant)
	assert.True(t, sites[0].Replace)

	_, err = LoadSites(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParseSitesRejectsBadLists(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":     "sites: []",
		"no url":    "sites:\n  - name: a\n",
		"variant":   "sites:\n  - name: a\n    url: https://a\n    variant: spa\n",
		"duplicate": "sites:\n  - name: a\n    url: https://a\n  - name: a\n    url: https://b\n",
		"not yaml":  "sites: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseSites([]byte(doc))
			require.Error(t, err)
		})
	}
}

func testSites() []course.Site {
	return []course.Site{
		{Name: "서울시평생학습포털", Region: "서울특별시", URL: "https://portal", Variant: course.VariantPortal},
		{Name: "정독도서관", Region: "종로구", URL: "https://a", Variant: course.VariantGeneric},
		{Name: "강남구립도서관", Region: "강남구", URL: "https://b", Variant: course.VariantGeneric},
		{Name: "마포구립서강도서관", Region: "마포구", URL: "https://c", Variant: course.VariantGeneric},
	}
}

func names(sites []course.Site) []string {
	out := make([]string, 0, len(sites))
	for _, s := range sites {
		out = append(out, s.Name)
	}
	return out
}

func TestSelect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sel  Selection
		want []string
	}{
		{"all", Selection{}, []string{"서울시평생학습포털", "정독도서관", "강남구립도서관", "마포구립서강도서관"}},
		{"range", Selection{Start: 1, End: 3}, []string{"정독도서관", "강남구립도서관"}},
		{"open end", Selection{Start: 3}, []string{"마포구립서강도서관"}},
		{"end past len", Selection{End: 99}, []string{"서울시평생학습포털", "정독도서관", "강남구립도서관", "마포구립서강도서관"}},
		{"target name", Selection{Target: "정독"}, []string{"정독도서관"}},
		{"target region", Selection{Target: "강남구"}, []string{"강남구립도서관"}},
		{"range then target", Selection{Start: 2, Target: "정독"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Select(testSites(), tt.sel)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestSelectRejectsBadRange(t *testing.T) {
	t.Parallel()

	_, err := Select(testSites(), Selection{Start: -1})
	require.Error(t, err)
	_, err = Select(testSites(), Selection{Start: 4})
	require.Error(t, err)
	_, err = Select(testSites(), Selection{Start: 2, End: 2})
	require.Error(t, err)
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	got := Suggest(testSites(), "정독도서")
	require.NotEmpty(t, got)
	assert.Equal(t, "정독도서관", got[0])
	assert.LessOrEqual(t, len(got), 3)

	assert.Empty(t, Suggest(testSites(), "zzzzzz"))
	assert.Nil(t, Suggest(testSites(), " "))
}

func TestSelectionEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, Selection{}.Empty())
	assert.False(t, Selection{Target: "x"}.Empty())
	assert.False(t, Selection{End: 2}.Empty())
}
