package domain

import "time"

// SourceKind discriminates the source family an item or alert came from.
type SourceKind string

const (
	SourceFeed   SourceKind = "feed"
	SourceSocial SourceKind = "social"
)

// SourceKinds lists the known source families in rendering order.
var SourceKinds = []SourceKind{SourceFeed, SourceSocial}

// AuthorMetadata describes who published an item.
type AuthorMetadata struct {
	Handle       string `json:"handle,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	AudienceSize int64  `json:"audience_size,omitempty"`
}

// Engagement carries amplification (reposts) and approval (likes) counters.
type Engagement struct {
	Amplifications int64 `json:"amplifications"`
	Approvals      int64 `json:"approvals"`
}

// RawItem is a source-specific payload exactly as an adapter fetched it.
type RawItem struct {
	Kind       SourceKind
	SourceID   string
	SourceName string
	ExternalID string
	Link       string
	Title      string
	Summary    string
	Body       string
	Author     *AuthorMetadata
	Engagement *Engagement

	// RawTimestamp is the textual date as published; ParsedTimestamp is set
	// when the upstream library already produced a structured date.
	RawTimestamp    string
	ParsedTimestamp *time.Time
}

// NormalizedItem is the canonical shape every downstream stage works on.
type NormalizedItem struct {
	ID         string          `json:"id"`
	Kind       SourceKind      `json:"kind"`
	SourceID   string          `json:"source_id"`
	SourceName string          `json:"source_name,omitempty"`
	Title      string          `json:"title,omitempty"`
	Text       string          `json:"text"`
	Link       string          `json:"link,omitempty"`
	Timestamp  *time.Time      `json:"timestamp,omitempty"`
	Author     *AuthorMetadata `json:"author,omitempty"`
	Engagement *Engagement     `json:"engagement,omitempty"`
}

// HasTimestamp reports whether recency can be established for the item.
func (n NormalizedItem) HasTimestamp() bool {
	return n.Timestamp != nil && !n.Timestamp.IsZero()
}

// PublishedWithin reports whether the item was published after now-window.
// Items without a timestamp are never considered recent.
func (n NormalizedItem) PublishedWithin(now time.Time, window time.Duration) bool {
	if !n.HasTimestamp() {
		return false
	}
	return n.Timestamp.After(now.Add(-window))
}
