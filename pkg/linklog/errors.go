package linklog

import "errors"

// ErrIndexOutOfRange reports an entry or comment address outside the
// currently valid 1-based range.
var ErrIndexOutOfRange = errors.New("index out of range")

// ErrEmptyURL reports a bookmark or entry operation invoked without a URL.
var ErrEmptyURL = errors.New("empty url")
