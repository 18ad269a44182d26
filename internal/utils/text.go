package utils

import (
	"strings"
	"unicode/utf8"
)

// CleanUTF8 removes invalid UTF8 sequences and NUL bytes from a string.
// Returns the cleaned string and a boolean indicating if cleaning was needed
func CleanUTF8(input string) (string, bool) {
	needsCleaning := strings.Contains(input, "\x00") || !utf8.ValidString(input)

	if !needsCleaning {
		return input, false
	}

	cleaned := strings.ToValidUTF8(input, "")
	cleaned = strings.ReplaceAll(cleaned, "\x00", "")

	return cleaned, true
}

// CleanText prepares user entered free text (notes, observations, revert
// reasons) for storage.
func CleanText(input string) string {
	cleaned, _ := CleanUTF8(input)
	return strings.TrimSpace(cleaned)
}
