// Package main is the entry point for the marksyncy backend server.
//
// The server owns the bookmark and group collections, serves the dashboard
// REST and WebSocket surface, imports and exports Netscape bookmark files,
// and syncs the collections to a user-owned Gitee or GitHub repository.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -data /var/lib/marksyncy
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
