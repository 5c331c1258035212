// Package utils provides shared utilities for text, math, and logging.
package utils

import (
	"regexp"
	"strings"
)

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

var (
	trailingWS   = regexp.MustCompile(`[ \t\x{00A0}]+\n`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
	horizontalWS = regexp.MustCompile(`[ \t\x{00A0}]+`)
)

// Normalize canonicalizes raw extracted text: carriage returns become line
// feeds, trailing whitespace before newlines is stripped, runs of three or
// more newlines collapse to exactly two, runs of horizontal whitespace
// (including non-breaking spaces) collapse to a single space, and the result
// is trimmed. Empty input yields empty output.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = trailingWS.ReplaceAllString(text, "\n")
	text = multiNewline.ReplaceAllString(text, "\n\n")
	text = horizontalWS.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
