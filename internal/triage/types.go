package triage

import (
	"fmt"
	"strings"
)

// Classification is the label assigned to a message by the oracle.
// Only Important and LowPriority are legal values.
type Classification string

const (
	Important   Classification = "important"
	LowPriority Classification = "low_priority"
)

// Classifications lists every legal classification in display order.
var Classifications = []Classification{Important, LowPriority}

// Valid reports whether c is one of the two legal values.
func (c Classification) Valid() bool {
	return c == Important || c == LowPriority
}

// Title returns the human-readable name used in reports and log lines.
func (c Classification) Title() string {
	switch c {
	case Important:
		return "Important"
	case LowPriority:
		return "Low Priority"
	}
	return string(c)
}

// ParseClassification converts a persisted value back into a Classification.
func ParseClassification(s string) (Classification, error) {
	c := Classification(strings.TrimSpace(s))
	if !c.Valid() {
		return "", fmt.Errorf("invalid classification %q", s)
	}
	return c, nil
}

// MessageDetail is the metadata of one message needed for classification and
// reporting. It is never persisted.
type MessageDetail struct {
	ID      string
	From    string
	Subject string
	Date    string
	Snippet string
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
