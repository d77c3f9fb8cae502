package links

import (
	"fmt"
	"strings"

	"linklog/pkg/linklog"
)

// renderWindow formats one view page as chat text.
func renderWindow(window []linklog.NumberedEntry, offset int, total int, windowSize int, query string) string {
	if total == 0 {
		return "no entries logged yet"
	}
	if len(window) == 0 {
		if query != "" {
			return fmt.Sprintf("no entries matching %q", query)
		}
		return "no entries on that page"
	}

	var view strings.Builder
	for position, numbered := range window {
		if position > 0 {
			view.WriteByte('\n')
		}
		view.WriteString(renderEntry(numbered))
	}

	remaining := total - (offset + windowSize)
	if remaining > 0 {
		view.WriteString(fmt.Sprintf("\n(%d more, %d total)", remaining, total))
	}

	return view.String()
}

// renderEntry formats one entry with its comment thread indented below.
func renderEntry(numbered linklog.NumberedEntry) string {
	entry := numbered.Entry

	var line strings.Builder
	fmt.Fprintf(&line, "%d. %s (%s)", numbered.Index, entry.Title, entry.Nick)
	if len(entry.Tags) > 0 {
		fmt.Fprintf(&line, " [%s]", strings.Join(entry.Tags, ", "))
	}
	line.WriteString(" " + entry.Link)

	for position, comment := range entry.Comments {
		fmt.Fprintf(&line, "\n  %d.%d <%s> %s", numbered.Index, position+1, comment.Nick, comment.Text)
	}

	return line.String()
}

func renderKeywords(keywords []string) string {
	if len(keywords) == 0 {
		return "no tag keywords configured"
	}

	return "tag keywords: " + strings.Join(keywords, ", ")
}
