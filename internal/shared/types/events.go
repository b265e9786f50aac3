package types

// ChangeKind names the store mutation that produced a change event.
type ChangeKind string

const (
	ChangeCapture     ChangeKind = "capture"
	ChangeDelete      ChangeKind = "delete"
	ChangeBatchDelete ChangeKind = "batch_delete"
	ChangeBatchMove   ChangeKind = "batch_move"
	ChangeImport      ChangeKind = "import"
	ChangeGroupCreate ChangeKind = "group_create"
	ChangeGroupUpdate ChangeKind = "group_update"
	ChangeGroupDelete ChangeKind = "group_delete"
	ChangeRestore     ChangeKind = "restore"
)

// ChangeEvent is broadcast after every successful store write. Remote is set
// when the mutation was applied from a cloud snapshot, so the auto-sync
// worker does not push it straight back.
type ChangeEvent struct {
	Kind      ChangeKind `json:"kind"`
	Bookmarks int        `json:"bookmarks"`
	Groups    int        `json:"groups"`
	Remote    bool       `json:"remote,omitempty"`
}

// SyncStatus is the coarse state of the sync client.
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncSyncing SyncStatus = "syncing"
	SyncSuccess SyncStatus = "success"
	SyncError   SyncStatus = "error"
)

// SyncReport is published on every sync status transition.
type SyncReport struct {
	RunID     string     `json:"run_id"`
	Direction string     `json:"direction"` // "to-cloud" or "from-cloud"
	Status    SyncStatus `json:"status"`
	Message   string     `json:"message,omitempty"`
	Skipped   bool       `json:"skipped,omitempty"`
}
