package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMainTextDropsChrome(t *testing.T) {
	t.Parallel()

	body := `<html><head><style>.x{}</style><script>var a=1;</script></head><body>
<header>사이트 로고</header><nav><a href="/">홈</a></nav>
<div id="contents"><h2>강좌 안내</h2><table><tr><td>요가</td><td>20명</td></tr></table>` +
		strings.Repeat("<p>주민 대상 평생학습 프로그램을 운영합니다.</p>", 25) +
		`</div><footer>저작권</footer></body></html>`

	text := MainText(body, "https://example.kr/")
	assert.Contains(t, text, "강좌 안내")
	assert.Contains(t, text, "요가 | 20명")
	assert.NotContains(t, text, "사이트 로고")
	assert.NotContains(t, text, "저작권")
	assert.NotContains(t, text, "var a")
	assert.NotContains(t, text, "\n\n\n")
}

func TestClickCandidatesOrderAndLimit(t *testing.T) {
	t.Parallel()

	body := `<html><body>
<nav id="gnb"><a href="/poster-nav.png">메뉴 포스터</a></nav>
<div id="board">
<button type="button">원본 보기</button>
<a href="/files/poster.PNG?v=2">첨부</a>
<a href="/detail"><img src="/t.jpg" alt="x"></a>
<a href="/about">기관 소개</a>
</div></body></html>`

	got := ClickCandidates(body, 5)
	require.Len(t, got, 3)
	assert.Equal(t, "/files/poster.PNG?v=2", got[0].Href)
	assert.Equal(t, "#board > a:nth-child(2)", got[0].Selector)
	assert.Equal(t, "#board > button:nth-child(1)", got[1].Selector)
	assert.Equal(t, "#board > a:nth-child(3)", got[2].Selector)

	assert.Len(t, ClickCandidates(body, 1), 1)
}

func TestDetailLinksFiltersNoise(t *testing.T) {
	t.Parallel()

	body := `<html><body><div id="list">
<a href="/program/view.do?idx=1">강좌1</a>
<a href="/login">로그인</a>
<a href="/files/guide.pdf">detail pdf</a>
<a href="#" onclick="fn_detail('7')">강좌7</a>
<div class="paging"><a href="/program/view.do?page=2">2</a></div>
<a href="/img/detail.jpg">사진</a>
</div></body></html>`

	got := DetailLinks(body, 5)
	require.Len(t, got, 2)
	assert.Equal(t, "/program/view.do?idx=1", got[0].Href)
	assert.Equal(t, "강좌7", got[1].Text)
}

func TestCSSPathMatchesDocument(t *testing.T) {
	t.Parallel()

	body := `<html><body><main><section><p>a</p><p><a href="/x">link</a></p></section></main></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)

	node := doc.Find("a").Nodes[0]
	path := CSSPath(node)
	assert.Equal(t, "html > body > main:nth-child(1) > section:nth-child(1) > p:nth-child(2) > a:nth-child(1)", path)
	assert.Equal(t, 1, doc.Find(path).Length())
}

func TestResolve(t *testing.T) {
	t.Parallel()

	cases := []struct {
		base, href, want string
	}{
		{"https://a.kr/x/y.html", "../img/p.jpg", "https://a.kr/img/p.jpg"},
		{"https://a.kr/x/", "p.jpg", "https://a.kr/x/p.jpg"},
		{"https://a.kr/", "https://cdn.kr/p.png", "https://cdn.kr/p.png"},
		{"https://a.kr/", "javascript:void(0)", ""},
		{"https://a.kr/", "#top", ""},
		{"https://a.kr/", "mailto:x@a.kr", ""},
		{"", "/p.jpg", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Resolve(tc.base, tc.href), "%s + %s", tc.base, tc.href)
	}
}

func TestIsImageURL(t *testing.T) {
	t.Parallel()

	assert.True(t, IsImageURL("/a/b.JPEG"))
	assert.True(t, IsImageURL("poster.webp?w=100"))
	assert.False(t, IsImageURL("/a/jpg/view.do"))
	assert.False(t, IsImageURL(""))
}
