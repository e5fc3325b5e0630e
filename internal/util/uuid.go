package util

import "github.com/google/uuid"

// GenerateUUID returns a random v4 UUID. It panics only when the system
// random source is broken.
func GenerateUUID() string {
	return uuid.NewString()
}

// PrefixedID returns prefix + "-" + a random UUID.
func PrefixedID(prefix string) string {
	return prefix + "-" + GenerateUUID()
}
