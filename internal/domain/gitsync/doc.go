// Package gitsync pushes and pulls the bookmark snapshot as a single JSON
// file in a user-owned repository on a Git-hosting provider.
//
// A sync run is a fixed sequence of REST calls: validate token, check repo,
// create repo if missing, resolve the remote file state, then upload or
// download. Steps never run concurrently within one run, and at most one run
// is in flight at a time; a second caller gets a skipped report instead of
// queuing. Provider differences (auth scheme, default branch, API quirks)
// live behind the Provider interface.
package gitsync
