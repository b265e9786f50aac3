package gitsync

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marksyncy/backend/internal/infrastructure/kv"
	"github.com/marksyncy/backend/internal/infrastructure/logging"
	"github.com/marksyncy/backend/internal/shared/types"
)

// Sync directions reported to subscribers.
const (
	DirectionToCloud   = "to-cloud"
	DirectionFromCloud = "from-cloud"
)

// fromCloudThrottle suppresses auto pulls shortly after a sync, so a
// mutation's own change notification does not trigger a redundant download.
const fromCloudThrottle = time.Minute

// ErrNoProvider reports that no sync provider is configured.
var ErrNoProvider = errors.New("no sync provider configured")

// ErrNoToken reports that the configured provider has no access token.
var ErrNoToken = errors.New("no access token configured for sync provider")

// Collections is the local state the client snapshots and restores.
type Collections interface {
	Snapshot() (types.Snapshot, error)
	Restore(types.Snapshot) error
}

// Client runs sync operations against the configured provider.
type Client struct {
	store     *kv.Store
	col       Collections
	logger    *logging.Logger
	providers map[string]Provider
	repoName  string
	filePath  string

	inFlight atomic.Bool

	subM sync.RWMutex
	subs []chan types.SyncReport

	statusM sync.RWMutex
	status  types.SyncReport
}

// NewClient creates a sync client. repoName and filePath fix the remote
// location of the snapshot.
func NewClient(store *kv.Store, col Collections, logger *logging.Logger, repoName, filePath string, providers ...Provider) *Client {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Client{
		store:     store,
		col:       col,
		logger:    logger,
		providers: byName,
		repoName:  repoName,
		filePath:  filePath,
		status:    types.SyncReport{Status: types.SyncIdle},
	}
}

// Status returns the report of the most recent transition.
func (c *Client) Status() types.SyncReport {
	c.statusM.RLock()
	defer c.statusM.RUnlock()
	return c.status
}

// Subscribe returns a channel receiving a report on every status transition.
// Slow consumers drop reports rather than block the sync run.
func (c *Client) Subscribe() <-chan types.SyncReport {
	ch := make(chan types.SyncReport, 64)
	c.subM.Lock()
	c.subs = append(c.subs, ch)
	c.subM.Unlock()
	return ch
}

// ValidateToken checks a token against a provider without touching the
// settings store, returning the remote username.
func (c *Client) ValidateToken(ctx context.Context, provider, token string) (string, error) {
	p, ok := c.providers[provider]
	if !ok {
		return "", fmt.Errorf("unknown sync provider %q", provider)
	}
	return p.ValidateUser(ctx, token)
}

// SyncToCloud uploads the current snapshot. A run already in flight causes a
// skipped report instead of queuing.
func (c *Client) SyncToCloud(ctx context.Context) types.SyncReport {
	runID := uuid.NewString()
	if !c.inFlight.CompareAndSwap(false, true) {
		return c.skip(runID, DirectionToCloud, "sync already in progress")
	}
	defer c.inFlight.Store(false)

	c.publish(types.SyncReport{RunID: runID, Direction: DirectionToCloud, Status: types.SyncSyncing})

	report := c.runToCloud(ctx, runID)
	c.publish(report)
	return report
}

// SyncFromCloud downloads the remote snapshot and replaces local state.
// Auto-triggered pulls are throttled for a minute after the last sync;
// manual pulls are not.
func (c *Client) SyncFromCloud(ctx context.Context, manual bool) types.SyncReport {
	runID := uuid.NewString()
	if !c.inFlight.CompareAndSwap(false, true) {
		return c.skip(runID, DirectionFromCloud, "sync already in progress")
	}
	defer c.inFlight.Store(false)

	if !manual && c.recentlySynced() {
		report := c.skip(runID, DirectionFromCloud, "synced less than a minute ago")
		return report
	}

	c.publish(types.SyncReport{RunID: runID, Direction: DirectionFromCloud, Status: types.SyncSyncing})

	report := c.runFromCloud(ctx, runID)
	c.publish(report)
	return report
}

// RunAutoSync consumes change events and pushes to the cloud after each
// local mutation, as long as auto-sync is enabled and a token is configured.
// Remote-originated events are ignored so restores do not bounce back.
func (c *Client) RunAutoSync(ctx context.Context, events <-chan types.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Remote {
				continue
			}
			if !c.store.GetBool(kv.KeyAutoSyncEnabled) {
				continue
			}
			provider := c.store.GetString(kv.KeySyncProvider)
			if provider == "" || c.store.GetString(kv.TokenKey(provider)) == "" {
				continue
			}

			report := c.SyncToCloud(ctx)
			if report.Status == types.SyncError {
				c.logger.Warn("Auto-sync failed",
					zap.String("run_id", report.RunID),
					zap.String("message", report.Message),
				)
			}
		}
	}
}

func (c *Client) runToCloud(ctx context.Context, runID string) types.SyncReport {
	provider, token, err := c.activeProvider()
	if err != nil {
		return c.fail(runID, DirectionToCloud, err)
	}

	file, state, err := c.resolveRemote(ctx, provider, token, true)
	if err != nil {
		return c.fail(runID, DirectionToCloud, err)
	}

	snap, err := c.col.Snapshot()
	if err != nil {
		return c.fail(runID, DirectionToCloud, err)
	}
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return c.fail(runID, DirectionToCloud, err)
	}
	encoded := base64.StdEncoding.EncodeToString(payload)

	message := "Sync bookmarks at " + snap.SyncTime
	if err := provider.Upload(ctx, token, file, state, encoded, message); err != nil {
		return c.fail(runID, DirectionToCloud, err)
	}

	c.recordSyncTime(snap.SyncTime)
	c.logger.Info("Snapshot uploaded",
		zap.String("run_id", runID),
		zap.String("provider", provider.Name()),
		zap.Int("bookmarks", len(snap.Bookmarks)),
	)
	return types.SyncReport{RunID: runID, Direction: DirectionToCloud, Status: types.SyncSuccess}
}

func (c *Client) runFromCloud(ctx context.Context, runID string) types.SyncReport {
	provider, token, err := c.activeProvider()
	if err != nil {
		return c.fail(runID, DirectionFromCloud, err)
	}

	file, _, err := c.resolveRemote(ctx, provider, token, false)
	if err != nil {
		return c.fail(runID, DirectionFromCloud, err)
	}

	data, err := provider.Download(ctx, token, file)
	if err != nil {
		return c.fail(runID, DirectionFromCloud, err)
	}

	var snap types.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return c.fail(runID, DirectionFromCloud, &DecodeError{Err: err})
	}

	if err := c.col.Restore(snap); err != nil {
		return c.fail(runID, DirectionFromCloud, err)
	}

	c.recordSyncTime(time.Now().UTC().Format(time.RFC3339))
	c.logger.Info("Snapshot restored",
		zap.String("run_id", runID),
		zap.String("provider", provider.Name()),
		zap.Int("bookmarks", len(snap.Bookmarks)),
	)
	return types.SyncReport{RunID: runID, Direction: DirectionFromCloud, Status: types.SyncSuccess}
}

// resolveRemote walks the shared prefix of both directions: validate the
// token, check the repository, create it when pushing to a missing one, and
// resolve the file state.
func (c *Client) resolveRemote(ctx context.Context, provider Provider, token string, createMissing bool) (File, FileState, error) {
	username, err := provider.ValidateUser(ctx, token)
	if err != nil {
		return File{}, FileState{}, err
	}

	repo, err := provider.RepoExists(ctx, token, username, c.repoName)
	if err != nil {
		return File{}, FileState{}, err
	}

	branch := repo.DefaultBranch
	if !repo.Exists {
		if !createMissing {
			return File{}, FileState{}, &NotFoundError{Path: c.filePath}
		}
		if err := provider.CreateRepo(ctx, token, c.repoName, "Bookmark sync storage"); err != nil {
			return File{}, FileState{}, err
		}
		branch = provider.DefaultBranch()
	}

	file := File{Owner: username, Repo: c.repoName, Path: c.filePath, Branch: branch}
	state, err := provider.GetFileState(ctx, token, file)
	if err != nil {
		return File{}, FileState{}, err
	}
	return file, state, nil
}

func (c *Client) activeProvider() (Provider, string, error) {
	name := c.store.GetString(kv.KeySyncProvider)
	if name == "" {
		return nil, "", ErrNoProvider
	}
	provider, ok := c.providers[name]
	if !ok {
		return nil, "", fmt.Errorf("unknown sync provider %q", name)
	}
	token := c.store.GetString(kv.TokenKey(name))
	if token == "" {
		return nil, "", ErrNoToken
	}
	return provider, token, nil
}

func (c *Client) recentlySynced() bool {
	last := c.store.GetString(kv.KeyLastSyncTime)
	if last == "" {
		return false
	}
	t, err := time.Parse(time.RFC3339, last)
	if err != nil {
		return false
	}
	return time.Since(t) < fromCloudThrottle
}

func (c *Client) recordSyncTime(syncTime string) {
	if err := c.store.Set(kv.KeyLastSyncTime, syncTime); err != nil {
		c.logger.Warn("Failed to record sync time", zap.Error(err))
	}
}

func (c *Client) skip(runID, direction, reason string) types.SyncReport {
	report := types.SyncReport{
		RunID:     runID,
		Direction: direction,
		Status:    types.SyncIdle,
		Message:   reason,
		Skipped:   true,
	}
	c.publish(report)
	return report
}

func (c *Client) fail(runID, direction string, err error) types.SyncReport {
	return types.SyncReport{
		RunID:     runID,
		Direction: direction,
		Status:    types.SyncError,
		Message:   err.Error(),
	}
}

func (c *Client) publish(report types.SyncReport) {
	c.statusM.Lock()
	c.status = report
	c.statusM.Unlock()

	c.subM.RLock()
	defer c.subM.RUnlock()
	for _, ch := range c.subs {
		select {
		case ch <- report:
		default:
		}
	}
}
