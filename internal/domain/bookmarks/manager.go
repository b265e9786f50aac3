package bookmarks

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marksyncy/backend/internal/domain/netscape"
	"github.com/marksyncy/backend/internal/infrastructure/kv"
	"github.com/marksyncy/backend/internal/infrastructure/logging"
	"github.com/marksyncy/backend/internal/shared/id"
	"github.com/marksyncy/backend/internal/shared/types"
)

const maxGroupNameLen = 30

// Manager is the sole owner of the bookmark and group collections.
type Manager struct {
	store  *kv.Store
	logger *logging.Logger

	mu   sync.Mutex // serializes read-modify-write cycles
	subs []chan types.ChangeEvent
	subM sync.RWMutex
}

// NewManager creates a bookmark manager over the given store.
func NewManager(store *kv.Store, logger *logging.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// ImportStats summarizes what an import actually merged.
type ImportStats struct {
	BookmarksAdded int `json:"bookmarks_added"`
	GroupsAdded    int `json:"groups_added"`
}

// Bookmarks returns the current bookmark collection.
func (m *Manager) Bookmarks() ([]types.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bookmarks, _, err := m.load()
	return bookmarks, err
}

// Groups returns the current group collection, default group included.
func (m *Manager) Groups() ([]types.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, groups, err := m.load()
	return groups, err
}

// Capture saves a page into a group with context-menu semantics: an existing
// bookmark for the same URL is overwritten in place, keeping its id.
func (m *Manager) Capture(b types.Bookmark) (types.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bookmarks, groups, err := m.load()
	if err != nil {
		return types.Bookmark{}, err
	}

	if !groupExists(groups, b.Group) {
		b.Group = types.DefaultGroupID
	}
	if b.Timestamp == "" {
		b.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	replaced := false
	for i := range bookmarks {
		if bookmarks[i].URL == b.URL {
			b.ID = bookmarks[i].ID
			bookmarks[i] = b
			replaced = true
			break
		}
	}
	if !replaced {
		b.ID = id.NewBookmarkID()
		bookmarks = append(bookmarks, b)
	}

	if err := m.save(bookmarks, groups); err != nil {
		return types.Bookmark{}, err
	}

	m.notify(types.ChangeCapture, len(bookmarks), len(groups), false)
	m.logger.Info("Bookmark captured",
		zap.String("url", b.URL),
		zap.String("group", b.Group),
		zap.Bool("overwrote", replaced),
	)
	return b, nil
}

// Delete removes a bookmark by id.
func (m *Manager) Delete(bookmarkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bookmarks, groups, err := m.load()
	if err != nil {
		return err
	}

	kept := bookmarks[:0]
	found := false
	for _, b := range bookmarks {
		if b.ID == bookmarkID {
			found = true
			continue
		}
		kept = append(kept, b)
	}
	if !found {
		return ErrBookmarkNotFound
	}

	if err := m.save(kept, groups); err != nil {
		return err
	}
	m.notify(types.ChangeDelete, len(kept), len(groups), false)
	return nil
}

// BatchDelete removes every bookmark whose id is in ids, returning how many
// were removed. Unknown ids are ignored.
func (m *Manager) BatchDelete(ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bookmarks, groups, err := m.load()
	if err != nil {
		return 0, err
	}

	doomed := make(map[string]bool, len(ids))
	for _, bid := range ids {
		doomed[bid] = true
	}

	kept := bookmarks[:0]
	for _, b := range bookmarks {
		if !doomed[b.ID] {
			kept = append(kept, b)
		}
	}
	removed := len(bookmarks) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	if err := m.save(kept, groups); err != nil {
		return 0, err
	}
	m.notify(types.ChangeBatchDelete, len(kept), len(groups), false)
	return removed, nil
}

// BatchMove reassigns the listed bookmarks to groupID.
func (m *Manager) BatchMove(ids []string, groupID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bookmarks, groups, err := m.load()
	if err != nil {
		return 0, err
	}
	if !groupExists(groups, groupID) {
		return 0, ErrGroupNotFound
	}

	wanted := make(map[string]bool, len(ids))
	for _, bid := range ids {
		wanted[bid] = true
	}

	moved := 0
	for i := range bookmarks {
		if wanted[bookmarks[i].ID] && bookmarks[i].Group != groupID {
			bookmarks[i].Group = groupID
			moved++
		}
	}
	if moved == 0 {
		return 0, nil
	}

	if err := m.save(bookmarks, groups); err != nil {
		return 0, err
	}
	m.notify(types.ChangeBatchMove, len(bookmarks), len(groups), false)
	return moved, nil
}

// CreateGroup adds a named group. Names are trimmed and must be 1-30
// characters.
func (m *Manager) CreateGroup(name, color string) (types.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxGroupNameLen {
		return types.Group{}, ErrGroupNameInvalid
	}
	if color == "" {
		color = "#667eea"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bookmarks, groups, err := m.load()
	if err != nil {
		return types.Group{}, err
	}

	group := types.Group{
		ID:        id.NewGroupID(),
		Name:      name,
		Color:     color,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	groups = append(groups, group)

	if err := m.save(bookmarks, groups); err != nil {
		return types.Group{}, err
	}
	m.notify(types.ChangeGroupCreate, len(bookmarks), len(groups), false)
	return group, nil
}

// UpdateGroup renames or recolors a group. The default group is immutable.
func (m *Manager) UpdateGroup(groupID, name, color string) (types.Group, error) {
	if groupID == types.DefaultGroupID {
		return types.Group{}, ErrDefaultGroupImmutable
	}
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxGroupNameLen {
		return types.Group{}, ErrGroupNameInvalid
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bookmarks, groups, err := m.load()
	if err != nil {
		return types.Group{}, err
	}

	var updated *types.Group
	for i := range groups {
		if groups[i].ID == groupID {
			groups[i].Name = name
			if color != "" {
				groups[i].Color = color
			}
			updated = &groups[i]
			break
		}
	}
	if updated == nil {
		return types.Group{}, ErrGroupNotFound
	}

	if err := m.save(bookmarks, groups); err != nil {
		return types.Group{}, err
	}
	m.notify(types.ChangeGroupUpdate, len(bookmarks), len(groups), false)
	return *updated, nil
}

// DeleteGroup removes a group, reassigning its bookmarks to the default
// group first. The default group itself is not deletable.
func (m *Manager) DeleteGroup(groupID string) error {
	if groupID == types.DefaultGroupID {
		return ErrDefaultGroupImmutable
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bookmarks, groups, err := m.load()
	if err != nil {
		return err
	}

	kept := groups[:0]
	found := false
	for _, g := range groups {
		if g.ID == groupID {
			found = true
			continue
		}
		kept = append(kept, g)
	}
	if !found {
		return ErrGroupNotFound
	}

	for i := range bookmarks {
		if bookmarks[i].Group == groupID {
			bookmarks[i].Group = types.DefaultGroupID
		}
	}

	if err := m.save(bookmarks, kept); err != nil {
		return err
	}
	m.notify(types.ChangeGroupDelete, len(bookmarks), len(kept), false)
	return nil
}

// ImportMerge merges a parsed bookmark file with file-import semantics:
// bookmarks whose URL already exists are skipped, folders whose name already
// exists are merged by remapping incoming bookmarks onto the surviving
// group's id. The merge is all-or-nothing.
func (m *Manager) ImportMerge(parsed *netscape.Result) (ImportStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bookmarks, groups, err := m.load()
	if err != nil {
		return ImportStats{}, err
	}

	existingNames := make(map[string]string, len(groups)) // name -> id
	for _, g := range groups {
		existingNames[g.Name] = g.ID
	}

	// Folders colliding by name are dropped; their bookmarks move to the
	// existing group of the same name.
	remap := make(map[string]string)
	var newGroups []types.Group
	for _, f := range parsed.Folders {
		if existing, ok := existingNames[f.Name]; ok {
			remap[f.ID] = existing
			continue
		}
		newGroups = append(newGroups, f)
	}

	keptIDs := make(map[string]bool, len(newGroups))
	for _, g := range newGroups {
		keptIDs[g.ID] = true
	}

	existingURLs := make(map[string]bool, len(bookmarks))
	for _, b := range bookmarks {
		existingURLs[b.URL] = true
	}

	var newBookmarks []types.Bookmark
	for _, b := range parsed.Bookmarks {
		if existingURLs[b.URL] {
			continue
		}
		if mapped, ok := remap[b.Group]; ok {
			b.Group = mapped
		} else if b.Group != types.DefaultGroupID && !keptIDs[b.Group] && !groupExists(groups, b.Group) {
			b.Group = types.DefaultGroupID
		}
		newBookmarks = append(newBookmarks, b)
	}

	if len(newBookmarks) == 0 && len(newGroups) == 0 {
		return ImportStats{}, nil
	}

	groups = append(groups, newGroups...)
	bookmarks = append(bookmarks, newBookmarks...)

	if err := m.save(bookmarks, groups); err != nil {
		return ImportStats{}, err
	}

	stats := ImportStats{BookmarksAdded: len(newBookmarks), GroupsAdded: len(newGroups)}
	m.notify(types.ChangeImport, len(bookmarks), len(groups), false)
	m.logger.Info("Bookmarks imported",
		zap.Int("bookmarks", stats.BookmarksAdded),
		zap.Int("groups", stats.GroupsAdded),
	)
	return stats, nil
}

// Snapshot produces the sync wire format for the current collections.
func (m *Manager) Snapshot() (types.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bookmarks, groups, err := m.load()
	if err != nil {
		return types.Snapshot{}, err
	}
	return types.NewSnapshot(bookmarks, groups), nil
}

// Restore replaces both collections wholesale from a cloud snapshot. The
// resulting change event is flagged remote so auto-sync does not echo it
// back.
func (m *Manager) Restore(snap types.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bookmarks := snap.Bookmarks
	groups := ensureDefault(snap.Groups)
	if bookmarks == nil {
		bookmarks = []types.Bookmark{}
	}

	for i := range bookmarks {
		if !groupExists(groups, bookmarks[i].Group) {
			bookmarks[i].Group = types.DefaultGroupID
		}
	}

	if err := m.save(bookmarks, groups); err != nil {
		return err
	}
	m.notify(types.ChangeRestore, len(bookmarks), len(groups), true)
	return nil
}

// Subscribe returns a channel receiving an event after every successful
// mutation. Slow consumers drop events rather than block mutations.
func (m *Manager) Subscribe() <-chan types.ChangeEvent {
	ch := make(chan types.ChangeEvent, 64)
	m.subM.Lock()
	m.subs = append(m.subs, ch)
	m.subM.Unlock()
	return ch
}

func (m *Manager) notify(kind types.ChangeKind, bookmarks, groups int, remote bool) {
	ev := types.ChangeEvent{Kind: kind, Bookmarks: bookmarks, Groups: groups, Remote: remote}
	m.subM.RLock()
	defer m.subM.RUnlock()
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// load reads both collections, tolerating never-written keys and making sure
// the default group is present.
func (m *Manager) load() ([]types.Bookmark, []types.Group, error) {
	var bookmarks []types.Bookmark
	if err := m.store.Get(kv.KeyBookmarks, &bookmarks); err != nil && !errors.Is(err, kv.ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to load bookmarks: %w", err)
	}
	if bookmarks == nil {
		bookmarks = []types.Bookmark{}
	}

	var groups []types.Group
	if err := m.store.Get(kv.KeyGroups, &groups); err != nil && !errors.Is(err, kv.ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to load groups: %w", err)
	}
	return bookmarks, ensureDefault(groups), nil
}

func (m *Manager) save(bookmarks []types.Bookmark, groups []types.Group) error {
	if err := m.store.Set(kv.KeyGroups, groups); err != nil {
		return fmt.Errorf("failed to save groups: %w", err)
	}
	if err := m.store.Set(kv.KeyBookmarks, bookmarks); err != nil {
		return fmt.Errorf("failed to save bookmarks: %w", err)
	}
	return nil
}

func ensureDefault(groups []types.Group) []types.Group {
	for _, g := range groups {
		if g.ID == types.DefaultGroupID {
			return groups
		}
	}
	return append([]types.Group{types.DefaultGroup()}, groups...)
}

func groupExists(groups []types.Group, groupID string) bool {
	for _, g := range groups {
		if g.ID == groupID {
			return true
		}
	}
	return false
}
