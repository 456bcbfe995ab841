// Package dedup suppresses repeated content and repeated items.
//
// Two independent layers exist. Identity dedup keys an item by its
// source-provided identifier (or source and link) so an item is analyzed only
// once across cycles. Content dedup keys normalized text by SHA-256 so
// syndicated copies and re-posts of the same text are not alerted twice.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"TGEMonitor/internal/domain"
)

// Digest returns the hex SHA-256 of text.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// IsDuplicate checks text against seen and records its digest. The first call
// for a given text returns false, every later call returns true.
func IsDuplicate(text string, seen *domain.IDSet) bool {
	return !seen.Add(Digest(text))
}

// IdentityKey derives the identity used for processed-item bookkeeping:
// "<kind>:<external id>" when the source supplies one, otherwise
// "<kind>:<source>|<link>".
func IdentityKey(raw domain.RawItem) string {
	kind := string(raw.Kind)
	if id := strings.TrimSpace(raw.ExternalID); id != "" {
		return kind + ":" + id
	}
	return kind + ":" + strings.TrimSpace(raw.SourceID) + "|" + strings.TrimSpace(raw.Link)
}
