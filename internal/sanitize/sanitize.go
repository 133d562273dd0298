// Package sanitize cleans untrusted text before it reaches the AI extractor,
// the course store, or the logs.
//
// Every function is pure and total: empty input yields empty output and no
// function returns an error.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	// MaxPromptLength caps the number of characters sent to the AI extractor.
	MaxPromptLength = 50000
	// MaxTitleLength caps persisted course titles.
	MaxTitleLength = 200
	// MaxFieldLength is the default cap for other persisted free-text fields.
	MaxFieldLength = 500
)

var (
	strictPolicy = bluemonday.StrictPolicy()

	injectionPatterns = []*regexp.Regexp{
		regexp.MustCompile("```[a-zA-Z0-9_-]*"),
		regexp.MustCompile(`(?i)</?\s*(system|assistant|user|instruction|instructions|prompt)\s*>`),
		regexp.MustCompile(`(?i)\[/?\s*(INST|SYS|SYSTEM)\s*\]`),
		regexp.MustCompile(`(?i)<<\s*/?\s*SYS\s*>>`),
		regexp.MustCompile(`(?i)<\|\s*(im_start|im_end|system|user|assistant|endoftext)\s*\|>`),
		regexp.MustCompile(`(?i)ignore\s+(all\s+)?(the\s+)?(previous|prior|above)\s+(instructions|prompts?|rules)`),
		regexp.MustCompile(`(?i)disregard\s+(all\s+)?(the\s+)?(previous|prior|above)(\s+instructions)?`),
		regexp.MustCompile(`(?i)forget\s+(all\s+)?(your|the)\s+(previous\s+)?instructions`),
		regexp.MustCompile(`(?i)you\s+are\s+now\s+`),
		regexp.MustCompile(`(?i)(^|\s)(system|assistant)\s*:`),
		regexp.MustCompile(`이전\s*(의\s*)?(모든\s*)?(지시|명령|지침)(사항)?(을|를)?\s*무시`),
		regexp.MustCompile(`위\s*(의\s*)?(지시|명령|지침)(사항)?(을|를)?\s*무시`),
	}

	jsonEscaper = strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\t", `\t`,
	)

	whitespaceRun = regexp.MustCompile(`\s{3,}`)
	anyWhitespace = regexp.MustCompile(`\s+`)
	forbidden     = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", "&", "")

	urlPattern   = regexp.MustCompile(`(?i)\b(?:https?|ftp|wss?)://[^\s"'<>]+`)
	emailPattern = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	secretParam  = regexp.MustCompile(`(?i)\b(service_?key|api_?key|access_?token|token|secret|password|authorization)(["']?\s*[:=]\s*["']?)[^\s&"',;]+`)
	bearerToken  = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/\-]+=*`)
	longToken    = regexp.MustCompile(`[A-Za-z0-9_\-+=]{24,}`)
)

// ForPrompt prepares scraped text for embedding into an AI prompt.
//
// The result never exceeds MaxPromptLength characters.
func ForPrompt(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ToValidUTF8(text, "")
	text = truncateRunes(text, MaxPromptLength)
	for _, re := range injectionPatterns {
		text = re.ReplaceAllString(text, " ")
	}
	text = whitespaceRun.ReplaceAllString(text, "  ")
	text = jsonEscaper.Replace(text)
	// Escaping can grow the string, so the cap is applied again at a rune
	// boundary that does not split an escape sequence.
	return truncateEscaped(text, MaxPromptLength)
}

// Title cleans a course title for persistence.
func Title(text string) string {
	return TextField(text, MaxTitleLength)
}

// TextField strips markup and unsafe characters and caps the result at maxLen
// characters. A non-positive maxLen falls back to MaxFieldLength.
func TextField(text string, maxLen int) string {
	if text == "" {
		return ""
	}
	if maxLen <= 0 {
		maxLen = MaxFieldLength
	}
	text = strings.ToValidUTF8(text, "")
	text = strictPolicy.Sanitize(text)
	text = html.UnescapeString(text)
	text = forbidden.Replace(text)
	text = anyWhitespace.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	return strings.TrimSpace(truncateRunes(text, maxLen))
}

// ErrorForLogging renders err with URLs, e-mail addresses and credentials
// redacted.
func ErrorForLogging(err error) string {
	if err == nil {
		return ""
	}
	return StringForLogging(err.Error())
}

// StringForLogging redacts URLs, e-mail addresses and token-like substrings.
func StringForLogging(s string) string {
	if s == "" {
		return ""
	}
	s = urlPattern.ReplaceAllString(s, "[url]")
	s = emailPattern.ReplaceAllString(s, "[email]")
	s = bearerToken.ReplaceAllString(s, "Bearer [redacted]")
	s = secretParam.ReplaceAllString(s, "${1}${2}[redacted]")
	s = longToken.ReplaceAllString(s, "[redacted]")
	return s
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

func truncateEscaped(s string, limit int) string {
	out := truncateRunes(s, limit)
	if len(out) == len(s) {
		return out
	}
	// Drop a dangling escape introducer left at the cut.
	trailing := len(out) - len(strings.TrimRight(out, `\`))
	if trailing%2 == 1 {
		out = out[:len(out)-1]
	}
	return out
}
