package gitsync

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marksyncy/backend/internal/infrastructure/kv"
	"github.com/marksyncy/backend/internal/infrastructure/logging"
	"github.com/marksyncy/backend/internal/shared/types"
)

const (
	testRepo = "marksyncy-bookmarks"
	testFile = "bookmarks.json"
)

// fakeCollections is an in-memory Collections implementation.
type fakeCollections struct {
	mu       sync.Mutex
	snap     types.Snapshot
	restored *types.Snapshot
}

func (f *fakeCollections) Snapshot() (types.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, nil
}

func (f *fakeCollections) Restore(s types.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored = &s
	return nil
}

// fakeGitHub emulates the subset of the GitHub API the client touches.
type fakeGitHub struct {
	mu          sync.Mutex
	token       string
	login       string
	repoExists  bool
	fileSHA     string // "" means the file does not exist
	fileContent string // base64 payload served on download
	uploads     []map[string]interface{}
	repoChecks  int
}

func (f *fakeGitHub) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"login": f.login})
	})

	mux.HandleFunc("GET /repos/"+f.login+"/"+testRepo, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.repoChecks++
		exists := f.repoExists
		f.mu.Unlock()
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"default_branch": "main"})
	})

	mux.HandleFunc("POST /user/repos", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.repoExists = true
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})

	mux.HandleFunc("GET /repos/"+f.login+"/"+testRepo+"/contents/"+testFile, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		sha, content := f.fileSHA, f.fileContent
		f.mu.Unlock()
		if sha == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"sha": sha, "content": content})
	})

	mux.HandleFunc("PUT /repos/"+f.login+"/"+testRepo+"/contents/"+testFile, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.uploads = append(f.uploads, body)
		f.fileSHA = "sha-" + time.Now().Format("150405.000000")
		f.fileContent, _ = body["content"].(string)
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

func newTestClient(t *testing.T, fake *fakeGitHub) (*Client, *fakeCollections, *kv.Store) {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	store, err := kv.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set(kv.KeySyncProvider, "github"))
	require.NoError(t, store.Set(kv.TokenKey("github"), fake.token))

	col := &fakeCollections{snap: types.NewSnapshot(
		[]types.Bookmark{{ID: "bm_1", URL: "https://a.com", Title: "A", Group: types.DefaultGroupID}},
		[]types.Group{types.DefaultGroup()},
	)}

	client := NewClient(store, col, logging.NewNop(), testRepo, testFile, NewGitHubAt(srv.URL))
	return client, col, store
}

func TestSyncToCloudCreatesRepoAndFile(t *testing.T) {
	fake := &fakeGitHub{token: "t0k3n", login: "alice"}
	client, _, store := newTestClient(t, fake)

	report := client.SyncToCloud(context.Background())
	require.Equal(t, types.SyncSuccess, report.Status, report.Message)

	require.Len(t, fake.uploads, 1)
	_, hasSHA := fake.uploads[0]["sha"]
	assert.False(t, hasSHA, "first upload of a missing file must not carry a sha")
	assert.Equal(t, "main", fake.uploads[0]["branch"])
	assert.True(t, fake.repoExists, "missing repo is created")

	assert.NotEmpty(t, store.GetString(kv.KeyLastSyncTime))
}

func TestSyncToCloudUpdatesWithSHA(t *testing.T) {
	fake := &fakeGitHub{token: "t0k3n", login: "alice", repoExists: true, fileSHA: "abc123"}
	client, _, _ := newTestClient(t, fake)

	report := client.SyncToCloud(context.Background())
	require.Equal(t, types.SyncSuccess, report.Status, report.Message)

	require.Len(t, fake.uploads, 1)
	assert.Equal(t, "abc123", fake.uploads[0]["sha"])
}

func TestSyncToCloudIdempotent(t *testing.T) {
	fake := &fakeGitHub{token: "t0k3n", login: "alice", repoExists: true}
	client, _, _ := newTestClient(t, fake)

	first := client.SyncToCloud(context.Background())
	require.Equal(t, types.SyncSuccess, first.Status)
	second := client.SyncToCloud(context.Background())
	require.Equal(t, types.SyncSuccess, second.Status)

	require.Len(t, fake.uploads, 2)
	assert.NotEqual(t, fake.uploads[0]["sha"], fake.uploads[1]["sha"], "second upload is conditional on the new sha")
	assert.Equal(t, fake.uploads[0]["content"], fake.uploads[1]["content"], "unchanged data uploads identical content")
}

func TestBadTokenStopsBeforeRepoCheck(t *testing.T) {
	fake := &fakeGitHub{token: "right", login: "alice", repoExists: true}
	client, _, store := newTestClient(t, fake)
	require.NoError(t, store.Set(kv.TokenKey("github"), "wrong"))

	report := client.SyncToCloud(context.Background())
	assert.Equal(t, types.SyncError, report.Status)
	assert.Contains(t, report.Message, "rejected the access token")
	assert.Zero(t, fake.repoChecks, "auth failure aborts before repository checks")
}

func TestConcurrentSyncSkipped(t *testing.T) {
	fake := &fakeGitHub{token: "t0k3n", login: "alice", repoExists: true}

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	inner := fake.handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/user" {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
		inner.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	store, err := kv.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set(kv.KeySyncProvider, "github"))
	require.NoError(t, store.Set(kv.TokenKey("github"), "t0k3n"))

	col := &fakeCollections{snap: types.NewSnapshot(nil, nil)}
	client := NewClient(store, col, logging.NewNop(), testRepo, testFile, NewGitHubAt(srv.URL))

	done := make(chan types.SyncReport, 1)
	go func() { done <- client.SyncToCloud(context.Background()) }()
	<-entered

	second := client.SyncToCloud(context.Background())
	assert.True(t, second.Skipped)
	assert.Equal(t, "sync already in progress", second.Message)

	close(release)
	first := <-done
	assert.Equal(t, types.SyncSuccess, first.Status, first.Message)
	assert.Len(t, fake.uploads, 1, "exactly one upload sequence ran")
}

func TestSyncFromCloudRestores(t *testing.T) {
	remote := types.NewSnapshot(
		[]types.Bookmark{{ID: "bm_9", URL: "https://remote.com", Title: "R", Group: types.DefaultGroupID}},
		[]types.Group{types.DefaultGroup()},
	)
	payload, err := json.Marshal(remote)
	require.NoError(t, err)

	fake := &fakeGitHub{
		token: "t0k3n", login: "alice", repoExists: true,
		fileSHA:     "abc123",
		fileContent: base64.StdEncoding.EncodeToString(payload),
	}
	client, col, store := newTestClient(t, fake)

	report := client.SyncFromCloud(context.Background(), true)
	require.Equal(t, types.SyncSuccess, report.Status, report.Message)

	require.NotNil(t, col.restored)
	require.Len(t, col.restored.Bookmarks, 1)
	assert.Equal(t, "https://remote.com", col.restored.Bookmarks[0].URL)
	assert.NotEmpty(t, store.GetString(kv.KeyLastSyncTime))
}

func TestSyncFromCloudMissingFile(t *testing.T) {
	fake := &fakeGitHub{token: "t0k3n", login: "alice", repoExists: true}
	client, col, _ := newTestClient(t, fake)

	report := client.SyncFromCloud(context.Background(), true)
	assert.Equal(t, types.SyncError, report.Status)
	assert.Contains(t, report.Message, "does not exist")
	assert.Nil(t, col.restored, "failed download leaves local state untouched")
}

func TestAutoFromCloudThrottled(t *testing.T) {
	fake := &fakeGitHub{token: "t0k3n", login: "alice", repoExists: true, fileSHA: "abc"}
	client, _, store := newTestClient(t, fake)

	recent := time.Now().UTC().Add(-10 * time.Second).Format(time.RFC3339)
	require.NoError(t, store.Set(kv.KeyLastSyncTime, recent))

	auto := client.SyncFromCloud(context.Background(), false)
	assert.True(t, auto.Skipped)
	assert.Equal(t, types.SyncIdle, auto.Status)

	stale := time.Now().UTC().Add(-2 * time.Minute).Format(time.RFC3339)
	require.NoError(t, store.Set(kv.KeyLastSyncTime, stale))

	payload, _ := json.Marshal(types.NewSnapshot(nil, nil))
	fake.mu.Lock()
	fake.fileContent = base64.StdEncoding.EncodeToString(payload)
	fake.mu.Unlock()

	auto = client.SyncFromCloud(context.Background(), false)
	assert.False(t, auto.Skipped, "throttle only applies within the window")
}

func TestSyncWithoutProviderFails(t *testing.T) {
	store, err := kv.Open(t.TempDir())
	require.NoError(t, err)
	client := NewClient(store, &fakeCollections{}, logging.NewNop(), testRepo, testFile, NewGitHub())

	report := client.SyncToCloud(context.Background())
	assert.Equal(t, types.SyncError, report.Status)
	assert.Contains(t, report.Message, "no sync provider configured")
}

func TestSubscribeSeesTransitions(t *testing.T) {
	fake := &fakeGitHub{token: "t0k3n", login: "alice", repoExists: true}
	client, _, _ := newTestClient(t, fake)

	reports := client.Subscribe()
	final := client.SyncToCloud(context.Background())
	require.Equal(t, types.SyncSuccess, final.Status)

	syncing := <-reports
	assert.Equal(t, types.SyncSyncing, syncing.Status)
	success := <-reports
	assert.Equal(t, types.SyncSuccess, success.Status)
	assert.Equal(t, syncing.RunID, success.RunID)
	assert.Equal(t, final, client.Status())
}

func TestRunAutoSyncPushesLocalChanges(t *testing.T) {
	fake := &fakeGitHub{token: "t0k3n", login: "alice", repoExists: true}
	client, _, store := newTestClient(t, fake)
	require.NoError(t, store.Set(kv.KeyAutoSyncEnabled, true))

	events := make(chan types.ChangeEvent)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerDone := make(chan struct{})
	go func() {
		client.RunAutoSync(ctx, events)
		close(workerDone)
	}()

	reports := client.Subscribe()

	events <- types.ChangeEvent{Kind: types.ChangeCapture, Bookmarks: 1}
	for {
		r := <-reports
		if r.Status == types.SyncSuccess {
			break
		}
		require.NotEqual(t, types.SyncError, r.Status, r.Message)
	}
	assert.Len(t, fake.uploads, 1)

	// Remote-originated events must not bounce back to the cloud.
	events <- types.ChangeEvent{Kind: types.ChangeRestore, Remote: true}
	close(events)
	<-workerDone
	assert.Len(t, fake.uploads, 1)
}
