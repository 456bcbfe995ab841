// Package normalize turns source-specific raw items into the canonical item shape.
package normalize

import (
	"strings"

	"TGEMonitor/internal/dedup"
	"TGEMonitor/internal/domain"
)

// Default length caps.
const (
	DefaultMaxTextLength  = 5000
	DefaultMaxTitleLength = 1000
)

// Normalizer canonicalizes text and timestamps. It is a pure function of its input.
type Normalizer struct {
	MaxTextLength  int
	MaxTitleLength int
}

// New returns a normalizer with the given text cap; zero selects the default.
func New(maxText int) Normalizer {
	if maxText <= 0 {
		maxText = DefaultMaxTextLength
	}
	return Normalizer{MaxTextLength: maxText, MaxTitleLength: DefaultMaxTitleLength}
}

// Normalize builds a NormalizedItem. It fails with domain.ErrEmptyText when
// nothing readable is left after sanitizing.
func (n Normalizer) Normalize(raw domain.RawItem) (domain.NormalizedItem, error) {
	title := SanitizeText(StripHTML(raw.Title), n.titleCap())

	parts := make([]string, 0, 3)
	for _, part := range []string{raw.Title, raw.Summary, raw.Body} {
		if clean := SanitizeText(StripHTML(part), 0); clean != "" {
			parts = append(parts, clean)
		}
	}
	text := Truncate(strings.Join(parts, " "), n.textCap())
	if text == "" {
		return domain.NormalizedItem{}, &domain.ParseError{Input: dedup.IdentityKey(raw), Err: domain.ErrEmptyText}
	}

	item := domain.NormalizedItem{
		ID:         dedup.IdentityKey(raw),
		Kind:       raw.Kind,
		SourceID:   raw.SourceID,
		SourceName: raw.SourceName,
		Title:      title,
		Text:       text,
		Link:       strings.TrimSpace(raw.Link),
		Author:     raw.Author,
		Engagement: raw.Engagement,
	}

	if ts, ok := CoerceUTC(raw.ParsedTimestamp); ok {
		item.Timestamp = &ts
	} else if ts, ok := ParseTimestamp(raw.RawTimestamp); ok {
		item.Timestamp = &ts
	}

	return item, nil
}

func (n Normalizer) textCap() int {
	if n.MaxTextLength <= 0 {
		return DefaultMaxTextLength
	}
	return n.MaxTextLength
}

func (n Normalizer) titleCap() int {
	if n.MaxTitleLength <= 0 {
		return DefaultMaxTitleLength
	}
	return n.MaxTitleLength
}
