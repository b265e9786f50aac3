// Package bookmarks owns the bookmark and group collections.
//
// All mutations are read-modify-write against the key-value store, applied
// under a single lock and followed by a change-event broadcast. The two
// dedup policies are deliberately distinct operations: Capture overwrites an
// existing bookmark for the same URL, ImportMerge silently skips it.
package bookmarks
