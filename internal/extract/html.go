package extract

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Element is a clickable node found in page HTML.
type Element struct {
	Selector string
	Href     string
	Text     string
}

var (
	noiseSelectors   = "script, style, noscript, nav, header, footer, aside, form, iframe, svg, #header, #footer, .header, .footer, .gnb, .lnb, .snb, #gnb, #lnb, .skip, .breadcrumb, .location"
	contentSelectors = []string{"main", "article", "#contents", "#content", ".contents", ".content", ".board", ".board_list", ".list", "table", "#container"}
	spaceRun         = regexp.MustCompile(`[ \t\f\v\r\x{00A0}]+`)
	blankLines       = regexp.MustCompile(`\n{3,}`)

	imageExt = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp|bmp)(\?|#|$)`)
	// clickHint matches visible text, title, alt or class names suggesting
	// the element reveals a poster or attachment.
	clickHint  = regexp.MustCompile(`(?i)(포스터|첨부|이미지|원본|크게|확대|보기|poster|attach|image|view|zoom|enlarge|lightbox)`)
	detailHint = regexp.MustCompile(`(?i)(detail|view|read|program|상세|content[_-]?view|bbs.*(no|idx|seq)=|fn_?(detail|view|go))`)
	detailSkip = regexp.MustCompile(`(?i)(javascript:void|#none|login|logout|sitemap|facebook|twitter|instagram|blog\.naver|youtube|\.pdf|\.hwp)`)
)

// MainText returns the visible text of the main content region with
// navigation, header, footer, script and style removed. When the structural
// pass yields little text, the readability extraction is used if longer.
func MainText(rawHTML, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return readabilityText(rawHTML, pageURL)
	}
	doc.Find(noiseSelectors).Remove()

	var text string
	for _, sel := range contentSelectors {
		candidate := collapseText(doc.Find(sel).First())
		if len([]rune(candidate)) >= 200 {
			text = candidate
			break
		}
	}
	if text == "" {
		text = collapseText(doc.Find("body"))
	}
	if len([]rune(text)) < MinTextLength {
		if alt := readabilityText(rawHTML, pageURL); len(alt) > len(text) {
			return alt
		}
	}
	return text
}

func readabilityText(rawHTML, pageURL string) string {
	var parsed *url.URL
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			parsed = u
		}
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), parsed)
	if err != nil {
		return ""
	}
	return normalizeSpace(article.TextContent)
}

func collapseText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if isBlock(n.Data) {
				b.WriteByte('\n')
			}
			if n.Data == "td" || n.Data == "th" {
				b.WriteString(" | ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.Data) {
			b.WriteByte('\n')
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return normalizeSpace(b.String())
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "tr", "br", "h1", "h2", "h3", "h4", "h5", "h6", "dt", "dd", "section", "article", "table", "ul", "ol", "dl":
		return true
	}
	return false
}

func normalizeSpace(s string) string {
	s = spaceRun.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// ClickCandidates lists up to limit elements likely to reveal a poster:
// anchors to image files, anchors or buttons with poster/attachment/view
// wording, and images wrapped in anchors.
func ClickCandidates(rawHTML string, limit int) []Element {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}
	var out []Element
	seen := map[string]bool{}
	add := func(s *goquery.Selection) bool {
		if len(out) >= limit {
			return false
		}
		if inChrome(s) {
			return true
		}
		sel := CSSPath(s.Nodes[0])
		if seen[sel] {
			return true
		}
		seen[sel] = true
		href, _ := s.Attr("href")
		out = append(out, Element{Selector: sel, Href: strings.TrimSpace(href), Text: strings.TrimSpace(s.Text())})
		return true
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if imageExt.MatchString(href) {
			return add(s)
		}
		return true
	})
	doc.Find("a, button").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if clickHint.MatchString(hintText(s)) {
			return add(s)
		}
		return true
	})
	doc.Find("a img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		anchor := s.Closest("a")
		if anchor.Length() == 0 {
			return true
		}
		return add(anchor)
	})
	return out
}

// DetailLinks lists up to limit anchors whose href or onclick points at a
// detail/view page.
func DetailLinks(rawHTML string, limit int) []Element {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}
	var out []Element
	seen := map[string]bool{}
	doc.Find("a, [onclick]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(out) >= limit {
			return false
		}
		href, _ := s.Attr("href")
		onclick, _ := s.Attr("onclick")
		target := href + " " + onclick
		if strings.TrimSpace(target) == "" || detailSkip.MatchString(target) || !detailHint.MatchString(target) {
			return true
		}
		if imageExt.MatchString(href) || inChrome(s) || s.Closest(".paging, .pagination").Length() > 0 {
			return true
		}
		sel := CSSPath(s.Nodes[0])
		if seen[sel] {
			return true
		}
		seen[sel] = true
		out = append(out, Element{Selector: sel, Href: strings.TrimSpace(href), Text: strings.TrimSpace(s.Text())})
		return true
	})
	return out
}

// chromeSelectors mark site navigation. Matches inside them are skipped
// rather than removed so CSSPath positions still match the live DOM.
const chromeSelectors = "nav, header, footer, #header, #footer, .gnb, #gnb"

func inChrome(s *goquery.Selection) bool {
	return s.Closest(chromeSelectors).Length() > 0
}

func hintText(s *goquery.Selection) string {
	parts := []string{s.Text()}
	for _, attr := range []string{"title", "class", "alt", "aria-label", "onclick"} {
		if v, ok := s.Attr(attr); ok {
			parts = append(parts, v)
		}
	}
	s.Find("img").Each(func(_ int, img *goquery.Selection) {
		if v, ok := img.Attr("alt"); ok {
			parts = append(parts, v)
		}
	})
	return strings.Join(parts, " ")
}

// CSSPath builds a selector that addresses n by tag and element position
// from the document root.
func CSSPath(n *html.Node) string {
	var parts []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		if id := attr(cur, "id"); id != "" && validID(id) {
			parts = append(parts, "#"+id)
			break
		}
		if cur.Data == "html" || cur.Data == "body" {
			parts = append(parts, cur.Data)
			continue
		}
		idx := 1
		for sib := cur.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type == html.ElementNode {
				idx++
			}
		}
		parts = append(parts, fmt.Sprintf("%s:nth-child(%d)", cur.Data, idx))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

var idPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

func validID(id string) bool {
	return idPattern.MatchString(id)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// IsImageURL reports whether href points directly at an image file.
func IsImageURL(href string) bool {
	return imageExt.MatchString(href)
}

// Resolve makes href absolute against base. Non-HTTP schemes yield "".
func Resolve(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") || strings.HasPrefix(href, "#") {
		return ""
	}
	h, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if h.IsAbs() {
		if h.Scheme != "http" && h.Scheme != "https" {
			return ""
		}
		return h.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ""
	}
	resolved := b.ResolveReference(h)
	resolved.Path = path.Clean("/" + resolved.Path)
	if strings.HasSuffix(h.Path, "/") && !strings.HasSuffix(resolved.Path, "/") {
		resolved.Path += "/"
	}
	return resolved.String()
}
