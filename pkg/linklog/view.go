package linklog

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseViewArgs interprets the free-form argument text of a view command
// against the current log size and paging window.
//
// The leading token selects a 1-based page offset when it is a plain
// in-range decimal number; everything after it becomes a lower-cased
// search query. Any other input is a search query with its casing
// preserved, except that a bare out-of-range number collapses to an empty
// query. The trim/lower asymmetry between the two paths is deliberate and
// load-bearing: a pure search query keeps the user's casing, a query
// following a page number is normalized for matching.
func ParseViewArgs(raw string, currentSize int, windowSize int) (offset int, query string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		offset = currentSize - windowSize
		if offset < 0 {
			offset = 0
		}
		return offset, ""
	}

	head, tail := splitLeadingToken(trimmed)
	if isAllDigits(head) {
		number, err := strconv.ParseInt(head, 10, 32)
		switch {
		case err == nil && number >= 1 && int(number) <= currentSize:
			return int(number) - 1, strings.ToLower(strings.TrimSpace(tail))
		case err == nil && strings.TrimSpace(tail) == "":
			// A bare number outside the log is an empty query, not
			// search text.
			return 0, ""
		}
	}

	return 0, trimmed
}

// splitLeadingToken cuts the first whitespace-delimited token off input.
// input must already be trimmed.
func splitLeadingToken(input string) (head string, tail string) {
	boundary := strings.IndexFunc(input, unicode.IsSpace)
	if boundary < 0 {
		return input, ""
	}

	return input[:boundary], input[boundary+1:]
}

// FilterWindow returns up to windowSize numbered entries starting at
// offset, keeping only entries whose title or comments contain query
// case-insensitively. An empty query keeps the whole window.
func FilterWindow(entries []Entry, offset int, windowSize int, query string) []NumberedEntry {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) || windowSize <= 0 {
		return nil
	}
	end := offset + windowSize
	if end > len(entries) {
		end = len(entries)
	}

	needle := strings.ToLower(query)
	window := make([]NumberedEntry, 0, end-offset)
	for position := offset; position < end; position++ {
		if needle != "" && !entryContains(entries[position], needle) {
			continue
		}
		window = append(window, NumberedEntry{
			Index: position + 1,
			Entry: entries[position],
		})
	}

	return window
}

// entryContains reports whether the lower-cased needle appears in the
// entry title or any comment text.
func entryContains(entry Entry, needle string) bool {
	if strings.Contains(strings.ToLower(entry.Title), needle) {
		return true
	}
	for _, comment := range entry.Comments {
		if strings.Contains(strings.ToLower(comment.Text), needle) {
			return true
		}
	}

	return false
}
