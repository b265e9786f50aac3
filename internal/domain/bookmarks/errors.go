package bookmarks

import "errors"

var (
	// ErrGroupNameInvalid rejects empty or over-long group names.
	ErrGroupNameInvalid = errors.New("group name must be 1-30 characters")

	// ErrDefaultGroupImmutable guards the built-in group against edits and
	// deletion.
	ErrDefaultGroupImmutable = errors.New("default group cannot be modified")

	// ErrGroupNotFound reports a reference to a group id that does not exist.
	ErrGroupNotFound = errors.New("group not found")

	// ErrBookmarkNotFound reports a reference to a bookmark id that does not
	// exist.
	ErrBookmarkNotFound = errors.New("bookmark not found")
)
