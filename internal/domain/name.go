// Package domain contains the room, round and template entities. State
// transitions live in core; this package only holds data and the rules
// that need no collaborators.
package domain

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	MaxNameLen  = 36
	MaxTopicLen = 200
)

// NormalizeName trims, NFC-normalizes and truncates a display name.
// Blank and whitespace-only names are rejected.
func NormalizeName(raw string) (string, error) {
	name := strings.TrimSpace(norm.NFC.String(raw))
	if name == "" {
		return "", ErrNameRequired
	}
	return truncateRunes(name, MaxNameLen), nil
}

// NormalizeTopic applies the same rules as NormalizeName with a longer limit.
func NormalizeTopic(raw string) (string, error) {
	topic := strings.TrimSpace(norm.NFC.String(raw))
	if topic == "" {
		return "", ErrTopicRequired
	}
	return truncateRunes(topic, MaxTopicLen), nil
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max]))
}
