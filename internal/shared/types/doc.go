// Package types defines the shared data model: bookmarks, groups, sync
// snapshots, and the events broadcast when the store changes.
package types
