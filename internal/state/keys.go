package state

import "strings"

// KeyPrefix names a key family in the backing store.
type KeyPrefix string

const (
	KeyPrefixState     KeyPrefix = "state"
	KeyPrefixViolation KeyPrefix = "violation"
)

// SanitizeKeySegment escapes the ':' delimiter so an entity id such as
// "violation:x" cannot address another key family.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// StateKey is "state:<entity_id>".
func StateKey(entityID string) string {
	return string(KeyPrefixState) + ":" + SanitizeKeySegment(entityID)
}

// ViolationKey is "violation:<entity_id>".
func ViolationKey(entityID string) string {
	return string(KeyPrefixViolation) + ":" + SanitizeKeySegment(entityID)
}
