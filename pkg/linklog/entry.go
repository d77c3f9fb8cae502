package linklog

import "time"

// NoTitle is the display sentinel used when no title could be resolved
// for a posted link.
const NoTitle = "No Title"

// Comment is one threaded remark attached to an entry.
//
// A comment's address is its 1-based position in the entry's comment
// sequence; comments carry no identifier of their own.
type Comment struct {
	// Nick is the chat nickname of the comment author.
	Nick string `json:"nick"`
	// Text is the comment body.
	Text string `json:"text"`
	// CreatedAt records when the comment was written or last replaced.
	CreatedAt time.Time `json:"created_at"`
}

// Entry is one logged link with its metadata, tags, and comment thread.
//
// An entry has no stored index: its display index is always its 1-based
// position in the current log and is recomputed on every read.
type Entry struct {
	// Link is the logged URL. Duplicates across entries are allowed.
	Link string `json:"link"`
	// Title is the display title, or NoTitle when none could be resolved.
	Title string `json:"title"`
	// Nick is the chat nickname that posted the link.
	Nick string `json:"nick"`
	// Login is the transport-level login of the poster when known.
	Login string `json:"login,omitempty"`
	// Channel is the conversation the link was posted in.
	Channel string `json:"channel"`
	// CreatedAt records when the link was posted.
	CreatedAt time.Time `json:"created_at"`
	// Tags is a case-preserved tag set; no two elements are equal under
	// case-sensitive comparison.
	Tags []string `json:"tags,omitempty"`
	// Comments is the dense ordered comment thread.
	Comments []Comment `json:"comments,omitempty"`
}

// HasTag reports whether tag is already present under case-sensitive
// comparison.
func (e *Entry) HasTag(tag string) bool {
	for _, existing := range e.Tags {
		if existing == tag {
			return true
		}
	}

	return false
}

// AddTag inserts tag unless an equal-case tag is already present.
// It reports whether the tag was added.
func (e *Entry) AddTag(tag string) bool {
	if tag == "" || e.HasTag(tag) {
		return false
	}
	e.Tags = append(e.Tags, tag)

	return true
}

// CloneEntry returns a deep copy safe to hand to other goroutines.
func CloneEntry(entry Entry) Entry {
	cloned := entry
	if len(entry.Tags) > 0 {
		cloned.Tags = append([]string(nil), entry.Tags...)
	}
	if len(entry.Comments) > 0 {
		cloned.Comments = append([]Comment(nil), entry.Comments...)
	}

	return cloned
}

// NumberedEntry pairs an entry snapshot with its 1-based display index.
type NumberedEntry struct {
	// Index is the entry's 1-based position in the current log.
	Index int
	// Entry is the entry snapshot.
	Entry Entry
}
