// Package resource holds the versioned blobs clients synchronize on:
// the registry of records, the records themselves, and the change notifier
// that lets readers block until a newer version exists.
package resource

import "strings"

// MaxIDLength is the longest ResourceID, in runes.
const MaxIDLength = 20

// ResourceID is the canonical registry key for a resource name.
type ResourceID string

// String returns the id as a plain string.
func (id ResourceID) String() string {
	return string(id)
}

// Normalize maps a user-supplied name to its ResourceID: lower-cased and
// truncated to MaxIDLength runes. Distinct names may share an id.
func Normalize(name string) ResourceID {
	id := strings.ToLower(name)
	if len(id) <= MaxIDLength {
		// Fast path: byte length bounds rune count.
		return ResourceID(id)
	}
	runes := []rune(id)
	if len(runes) > MaxIDLength {
		runes = runes[:MaxIDLength]
	}
	return ResourceID(string(runes))
}
