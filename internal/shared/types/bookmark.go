package types

import "time"

// DefaultGroupID is the id of the built-in group. It always exists and is
// never deletable; bookmarks of a deleted group are reassigned to it.
const DefaultGroupID = "default"

// SnapshotVersion is the wire-format version of the sync snapshot.
const SnapshotVersion = "1.0"

// Bookmark is a saved page. URL is the identity key for dedup during
// import/merge; ID is assigned once at creation and never reused.
type Bookmark struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Timestamp string `json:"timestamp"`
	Favicon   string `json:"favicon,omitempty"`
	Group     string `json:"group"`
}

// Group is a named collection of bookmarks. ParentFolder is an import-time
// hierarchy hint used by the exporter; it is not enforced at runtime.
type Group struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Color           string `json:"color"`
	CreatedAt       string `json:"createdAt"`
	ParentFolder    string `json:"parentFolder,omitempty"`
	PersonalToolbar bool   `json:"isPersonalToolbar,omitempty"`
}

// Snapshot is the JSON document persisted remotely as a single file.
type Snapshot struct {
	Bookmarks []Bookmark `json:"bookmarks"`
	Groups    []Group    `json:"groups"`
	SyncTime  string     `json:"syncTime"`
	Version   string     `json:"version"`
}

// NewSnapshot builds a snapshot of the given collections stamped with now.
func NewSnapshot(bookmarks []Bookmark, groups []Group) Snapshot {
	return Snapshot{
		Bookmarks: bookmarks,
		Groups:    groups,
		SyncTime:  time.Now().UTC().Format(time.RFC3339),
		Version:   SnapshotVersion,
	}
}

// DefaultGroup returns a fresh copy of the built-in group record.
func DefaultGroup() Group {
	return Group{
		ID:        DefaultGroupID,
		Name:      "Default",
		Color:     "#667eea",
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}
