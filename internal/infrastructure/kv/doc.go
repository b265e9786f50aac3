// Package kv implements the process-wide key-value store backing the
// bookmark collections and sync settings.
//
// Values are JSON documents persisted one file per key under a data
// directory, with an in-memory read cache. Writes are serialized, and every
// successful write is broadcast to subscribers, which is what drives UI
// refresh and auto-sync triggering.
package kv
