package linklog

import (
	"strings"
	"unicode"
)

// SplitKeywords splits one configured keyword property value on commas
// and/or whitespace, dropping empty fragments.
func SplitKeywords(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return nil
	}

	return fields
}

// MatchKeywords adds every configured keyword that appears in title as a
// case-insensitive substring to the entry's tag set, preserving the
// keyword's configured casing. Merging follows the tag set rules: an
// equal-case tag is never duplicated, while a different-case variant of
// an existing tag is still added.
func MatchKeywords(title string, entry *Entry, keywords []string) {
	if entry == nil {
		return
	}
	lowerTitle := strings.ToLower(title)
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if !strings.Contains(lowerTitle, strings.ToLower(keyword)) {
			continue
		}
		entry.AddTag(keyword)
	}
}
