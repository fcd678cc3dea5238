// Package textproc provides text normalization and chunking for the
// knowledge ingestion pipeline.
//
// Raw ticket and documentation text arrives full of HTML, URLs, and
// markdown noise that degrades embedding quality. Normalize reduces it
// to lowercase plain text; Split cuts normalized text into overlapping,
// sentence-aware chunks sized for the embedding model.
//
// All functions are pure and safe for concurrent use.
package textproc

import (
	"regexp"
	"strings"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	urlPattern        = regexp.MustCompile(`(?i)https?://[^\s]+`)
	markdownPattern   = regexp.MustCompile("[*_`#\\-\\[\\]]")
	specialPattern    = regexp.MustCompile(`[^\p{L}\p{N}\s.,!?-]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	edgePunctPattern  = regexp.MustCompile(`^[.,!?\-]+|[.,!?\-]+$`)
)

// Normalize cleans raw text for embedding. The steps run in a fixed
// order because later steps assume earlier cleanup:
//
//  1. strip HTML/XML tags
//  2. strip URLs
//  3. strip markdown punctuation (emphasis, headings, list markers)
//  4. strip characters outside letters/digits/whitespace/basic punctuation
//  5. collapse consecutive whitespace to a single space
//  6. lowercase
//  7. trim
//  8. strip leading/trailing punctuation
//
// Empty or whitespace-only input yields "". Normalize never fails.
func Normalize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	cleaned := htmlTagPattern.ReplaceAllString(raw, "")
	cleaned = urlPattern.ReplaceAllString(cleaned, "")
	cleaned = markdownPattern.ReplaceAllString(cleaned, "")
	cleaned = specialPattern.ReplaceAllString(cleaned, "")
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(strings.ToLower(cleaned))
	cleaned = edgePunctPattern.ReplaceAllString(cleaned, "")

	return cleaned
}

// IsValidForEmbedding reports whether text, once normalized, falls
// within [minLen, maxLen]. Used to reject near-empty or pathologically
// long content before spending an embedding call.
func IsValidForEmbedding(text string, minLen, maxLen int) bool {
	n := len(Normalize(text))
	return n >= minLen && n <= maxLen
}

// Truncate caps text at maxLen bytes, trimming trailing whitespace.
func Truncate(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return strings.TrimSpace(text[:maxLen])
}
