// Package http serves the dashboard REST surface: bookmark and group CRUD,
// Netscape file import/export, and sync settings and triggers.
package http
