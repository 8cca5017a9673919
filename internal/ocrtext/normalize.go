// Package ocrtext turns raw OCR output into comparable text and pulls the
// transferred amount out of it.
package ocrtext

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripAccents removes combining marks, so "Martínez" becomes "Martinez".
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeLine lowercases, strips accents and collapses inner whitespace of a single line.
func NormalizeLine(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(StripAccents(s))), " ")
}

// Normalize canonicalises a whole OCR document. Line breaks are kept because
// the destination extractor works line by line; empty lines are dropped.
func Normalize(text string) string {
	lines := SplitLines(text)
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if n := NormalizeLine(line); n != "" {
			out = append(out, n)
		}
	}
	return strings.Join(out, "\n")
}

// SplitLines splits on any of \n, \r\n or \r.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}
