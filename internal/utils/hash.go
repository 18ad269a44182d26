package utils

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf16"
)

// NotesFingerprint returns a short, stable fingerprint of free text. It is the
// value stored in notes acknowledgment events, so the algorithm must not
// change: a 31-multiplier rolling hash over UTF-16 code units, wrapped to a
// signed 32-bit integer and rendered in base 36.
func NotesFingerprint(text string) string {
	var h int32
	for _, unit := range utf16.Encode([]rune(text)) {
		h = h*31 + int32(unit)
	}
	return strconv.FormatInt(int64(h), 36)
}

// NotesChanged reports whether text no longer matches a previously stored
// fingerprint. An empty fingerprint always counts as changed.
func NotesChanged(text, fingerprint string) bool {
	if fingerprint == "" {
		return true
	}
	return NotesFingerprint(text) != fingerprint
}

// HashValue creates a deterministic SHA-256 hash of any JSON encodable value.
// Map keys are sorted by encoding/json so equal content hashes equally.
func HashValue(value any) string {
	jsonBytes, err := json.Marshal(value)
	if err != nil {
		jsonBytes = []byte("{}")
	}

	hash := sha256.Sum256(jsonBytes)
	return fmt.Sprintf("%x", hash)
}
