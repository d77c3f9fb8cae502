package linklog

import (
	"strconv"
	"strings"
)

// DirectiveKind identifies what a parsed addressing directive does to the
// addressed comment.
type DirectiveKind string

const (
	// DirectiveDelete removes the addressed comment.
	DirectiveDelete DirectiveKind = "delete"
	// DirectiveAuthor reassigns the addressed comment's author.
	DirectiveAuthor DirectiveKind = "author"
	// DirectiveUpsert replaces the addressed comment or appends a new one.
	DirectiveUpsert DirectiveKind = "upsert"
)

// Directive is one parsed `<prefix>N.M:<payload>` addressing command.
//
// Entry and Comment are 1-based addresses. Range checking against the
// live log happens at application time, not parse time.
type Directive struct {
	// Entry is the 1-based display index of the addressed entry.
	Entry int
	// Comment is the 1-based position of the addressed comment.
	Comment int
	// Kind selects the mutation the payload requests.
	Kind DirectiveKind
	// Value is the comment text for upserts, or the replacement author
	// nick for author reassignment. Empty for deletions.
	Value string
	// RawInput is the original untrimmed line.
	RawInput string
}

// ParseDirective parses one chat line against the addressing grammar
// `<prefix>N.M:<payload>`.
//
// The prefix comparison is case-insensitive; the payload is kept verbatim.
// matched is false for anything that is not an addressing command: wrong
// prefix, a missing entry or comment number, or a line that does not
// contain exactly one colon. Mismatches are never errors; the line simply
// belongs to another handler.
func ParseDirective(prefix string, line string) (directive Directive, matched bool) {
	directive.RawInput = line
	if prefix == "" {
		return directive, false
	}

	trimmed := strings.TrimSpace(line)
	if len(trimmed) <= len(prefix) {
		return directive, false
	}
	if !strings.EqualFold(trimmed[:len(prefix)], prefix) {
		return directive, false
	}
	if strings.Count(trimmed, ":") != 1 {
		return directive, false
	}

	address, payload, ok := strings.Cut(trimmed[len(prefix):], ":")
	if !ok {
		return directive, false
	}

	entryDigits, commentDigits, ok := strings.Cut(address, ".")
	if !ok {
		return directive, false
	}
	entry, ok := parseAddressNumber(entryDigits)
	if !ok {
		return directive, false
	}
	comment, ok := parseAddressNumber(commentDigits)
	if !ok {
		return directive, false
	}
	if payload == "" {
		return directive, false
	}

	directive.Entry = entry
	directive.Comment = comment

	switch {
	case payload == "-":
		directive.Kind = DirectiveDelete
	case strings.HasPrefix(payload, "?"):
		directive.Kind = DirectiveAuthor
		directive.Value = payload[1:]
	default:
		directive.Kind = DirectiveUpsert
		directive.Value = payload
	}

	return directive, true
}

// parseAddressNumber parses one unsigned decimal address component.
// Non-digit characters and overflow both disqualify the line.
func parseAddressNumber(digits string) (int, bool) {
	if digits == "" || !isAllDigits(digits) {
		return 0, false
	}
	value, err := strconv.ParseInt(digits, 10, 32)
	if err != nil {
		return 0, false
	}

	return int(value), true
}

func isAllDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}

	return value != ""
}
