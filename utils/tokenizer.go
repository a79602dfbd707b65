// Package utils provides text helpers for parsing console commands: splitting
// a line into tokens and recognizing numeric arguments.
package utils

import "strings"

// Tokenize splits s on any of the runes in delims. Runs of delimiters are
// treated as one separator and empty tokens are dropped.
//
// Parameters:
//   - s: The text to split
//   - delims: Every rune in this string separates tokens
//
// Returns:
//   - The tokens in order; empty if s holds only delimiters
//
// Example:
//
//	Tokenize("/kick  7\n", " \t\n") // ["/kick", "7"]
func Tokenize(s, delims string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(delims, r)
	})
}

// TokenizeN is like Tokenize but returns at most n tokens; the last one holds
// the rest of s untouched, apart from the delimiters that precede it. n <= 0
// means no limit.
//
// Example:
//
//	TokenizeN("/send 2 hello  world", " ", 3) // ["/send", "2", "hello  world"]
func TokenizeN(s, delims string, n int) []string {
	if n <= 0 {
		return Tokenize(s, delims)
	}

	isDelim := func(r rune) bool { return strings.ContainsRune(delims, r) }

	var tokens []string
	for len(tokens) < n-1 {
		s = strings.TrimLeftFunc(s, isDelim)
		if s == "" {
			return tokens
		}

		end := strings.IndexFunc(s, isDelim)
		if end < 0 {
			return append(tokens, s)
		}

		tokens = append(tokens, s[:end])
		s = s[end:]
	}

	if s = strings.TrimLeftFunc(s, isDelim); s != "" {
		tokens = append(tokens, s)
	}

	return tokens
}
