package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marksyncy/backend/internal/domain/bookmarks"
	"github.com/marksyncy/backend/internal/domain/gitsync"
	"github.com/marksyncy/backend/internal/infrastructure/kv"
	"github.com/marksyncy/backend/internal/infrastructure/logging"
	"github.com/marksyncy/backend/internal/infrastructure/monitoring"
	"github.com/marksyncy/backend/internal/shared/types"
)

// promauto registers on the default registry, so metrics are created once per
// test binary.
var (
	testMetrics     *monitoring.Metrics
	testMetricsOnce sync.Once
)

func metricsForTest() *monitoring.Metrics {
	testMetricsOnce.Do(func() {
		testMetrics = monitoring.NewMetrics()
	})
	return testMetrics
}

type fixture struct {
	router  *gin.Engine
	store   *kv.Store
	manager *bookmarks.Manager
}

func setup(t *testing.T, providers ...gitsync.Provider) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := kv.Open(t.TempDir())
	require.NoError(t, err)

	logger := logging.NewNop()
	manager := bookmarks.NewManager(store, logger)
	sync := gitsync.NewClient(store, manager, logger, "marksyncy-bookmarks", "bookmarks.json", providers...)

	router := gin.New()
	handler := NewHandler(manager, sync, store, metricsForTest(), logger)
	handler.Register(router)

	return &fixture{router: router, store: store, manager: manager}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCaptureAndList(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/api/bookmarks", gin.H{"url": "https://a.com", "title": "A"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/bookmarks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Len(t, body["bookmarks"], 1)
}

func TestCaptureRequiresURLAndTitle(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/api/bookmarks", gin.H{"title": "no url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteBookmarkNotFound(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodDelete, "/api/bookmarks/bm_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBatchEndpoints(t *testing.T) {
	f := setup(t)

	a, err := f.manager.Capture(types.Bookmark{URL: "https://a.com", Title: "A"})
	require.NoError(t, err)
	b, err := f.manager.Capture(types.Bookmark{URL: "https://b.com", Title: "B"})
	require.NoError(t, err)
	g, err := f.manager.CreateGroup("Work", "")
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/bookmarks/batch-move", gin.H{"ids": []string{a.ID, b.ID}, "group": g.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), decodeBody(t, w)["moved"])

	w = f.do(t, http.MethodPost, "/api/bookmarks/batch-delete", gin.H{"ids": []string{a.ID}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["removed"])
}

func TestGroupLifecycle(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/api/groups", gin.H{"name": "Work", "color": "#fff"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody(t, w)["group"].(map[string]interface{})
	groupID := created["id"].(string)

	w = f.do(t, http.MethodPut, "/api/groups/"+groupID, gin.H{"name": "Projects"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/api/groups/"+groupID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/api/groups/default", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "default group is immutable")
}

func TestImportAndExportRoundTrip(t *testing.T) {
	f := setup(t)

	doc := `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<DL><p>
    <DT><H3 ADD_DATE="1700000000">Work</H3>
    <DL><p>
        <DT><A HREF="https://b.com" ADD_DATE="1700000000">B</A>
    </DL><p>
    <DT><A HREF="https://a.com" ADD_DATE="1700000000">A</A>
</DL><p>`

	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader(doc))
	req.Header.Set("Content-Type", "text/html")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["bookmarks_added"])
	assert.Equal(t, float64(1), body["groups_added"])

	w = f.do(t, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "bookmarks_")
	assert.Contains(t, w.Body.String(), "https://a.com")
	assert.Contains(t, w.Body.String(), "<H3")
	assert.Contains(t, w.Body.String(), "Work")
}

func TestImportSkipsExistingURLs(t *testing.T) {
	f := setup(t)

	_, err := f.manager.Capture(types.Bookmark{URL: "https://a.com", Title: "Existing"})
	require.NoError(t, err)

	doc := `<DL><p><DT><A HREF="https://a.com">Incoming</A></DL><p>`
	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader(doc))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeBody(t, w)["bookmarks_added"])
}

func TestSyncSettingsValidatesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"login": "alice"})
	}))
	t.Cleanup(srv.Close)

	f := setup(t, gitsync.NewGitHubAt(srv.URL))

	w := f.do(t, http.MethodPut, "/api/sync/settings", gin.H{"provider": "github", "token": "bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, f.store.GetString(kv.TokenKey("github")), "rejected token is not stored")

	w = f.do(t, http.MethodPut, "/api/sync/settings", gin.H{"provider": "github", "token": "good", "auto_sync": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, true, body["token_set"])
	assert.Equal(t, true, body["auto_sync"])
	assert.Equal(t, "good", f.store.GetString(kv.TokenKey("github")))
}

func TestSyncSettingsRejectsUnknownProvider(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPut, "/api/sync/settings", gin.H{"provider": "bitbucket"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncStatusStartsIdle(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodGet, "/api/sync/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decodeBody(t, w)["status"].(map[string]interface{})
	assert.Equal(t, "idle", status["status"])
}

func TestSyncToCloudWithoutProvider(t *testing.T) {
	f := setup(t, gitsync.NewGitHub())

	w := f.do(t, http.MethodPost, "/api/sync/to-cloud", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
