package contract

import (
	"unicode/utf16"
	"unicode/utf8"
)

// Positions in analyzer output are UTF-16 code-unit offsets so they line up with the
// string indices the orchestrator uses.

// QueryLength returns the length of s in UTF-16 code units.
func QueryLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// SpanText returns the substring of s covered by [start, end). ok is false when the span is
// out of bounds, empty, or cuts through a surrogate pair.
func SpanText(s string, start, end int) (string, bool) {
	if start < 0 || end <= start {
		return "", false
	}
	units := 0
	from, to := -1, -1
	for i, r := range s {
		if units == start {
			from = i
		}
		if units == end {
			to = i
			break
		}
		units += utf16.RuneLen(r)
		if (units > start && from < 0) || (to < 0 && units > end) {
			return "", false
		}
	}
	if units == end && to < 0 {
		to = len(s)
	}
	if from < 0 || to < 0 {
		return "", false
	}
	return s[from:to], true
}

// UTF16Offset converts a byte offset in s into a UTF-16 offset.
func UTF16Offset(s string, byteOffset int) int {
	if byteOffset > len(s) {
		byteOffset = len(s)
	}
	n := 0
	for i := 0; i < byteOffset; {
		r, size := utf8.DecodeRuneInString(s[i:])
		n += utf16.RuneLen(r)
		i += size
	}
	return n
}
