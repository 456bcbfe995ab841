package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// TruncationMarker is appended to text cut at the length cap.
const TruncationMarker = "..."

// SanitizeText strips control characters, collapses whitespace runs and caps
// the result at maxLen runes. When truncated, the marker is included in the cap.
func SanitizeText(text string, maxLen int) string {
	if text == "" {
		return ""
	}
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}

	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r), r == unicode.ReplacementChar:
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}

	return Truncate(b.String(), maxLen)
}

// Truncate cuts s to maxLen runes, ending with TruncationMarker when cut.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= len(TruncationMarker) {
		return string(runes[:maxLen])
	}
	return strings.TrimRightFunc(string(runes[:maxLen-len(TruncationMarker)]), unicode.IsSpace) + TruncationMarker
}

// StripHTML returns the visible text of an HTML fragment. Plain text passes through.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return fragment
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	doc.Find("script, style").Remove()
	return doc.Text()
}
