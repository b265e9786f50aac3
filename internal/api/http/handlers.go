package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/marksyncy/backend/internal/domain/bookmarks"
	"github.com/marksyncy/backend/internal/domain/gitsync"
	"github.com/marksyncy/backend/internal/domain/netscape"
	"github.com/marksyncy/backend/internal/infrastructure/kv"
	"github.com/marksyncy/backend/internal/infrastructure/logging"
	"github.com/marksyncy/backend/internal/infrastructure/monitoring"
	"github.com/marksyncy/backend/internal/shared/types"
)

// maxImportSize caps uploaded bookmark files at 16 MiB.
const maxImportSize = 16 << 20

// Handler serves the dashboard REST surface.
type Handler struct {
	manager *bookmarks.Manager
	sync    *gitsync.Client
	store   *kv.Store
	metrics *monitoring.Metrics
	logger  *logging.Logger
}

// NewHandler creates the REST handler.
func NewHandler(manager *bookmarks.Manager, sync *gitsync.Client, store *kv.Store, metrics *monitoring.Metrics, logger *logging.Logger) *Handler {
	return &Handler{
		manager: manager,
		sync:    sync,
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// Register mounts all routes on the router.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		api.GET("/bookmarks", h.ListBookmarks)
		api.POST("/bookmarks", h.CaptureBookmark)
		api.DELETE("/bookmarks/:id", h.DeleteBookmark)
		api.POST("/bookmarks/batch-delete", h.BatchDelete)
		api.POST("/bookmarks/batch-move", h.BatchMove)

		api.GET("/groups", h.ListGroups)
		api.POST("/groups", h.CreateGroup)
		api.PUT("/groups/:id", h.UpdateGroup)
		api.DELETE("/groups/:id", h.DeleteGroup)

		api.POST("/import", h.Import)
		api.GET("/export", h.Export)

		api.GET("/sync/settings", h.SyncSettings)
		api.PUT("/sync/settings", h.UpdateSyncSettings)
		api.GET("/sync/status", h.SyncStatus)
		api.POST("/sync/to-cloud", h.SyncToCloud)
		api.POST("/sync/from-cloud", h.SyncFromCloud)
	}
}

// Health returns service health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "marksyncy-backend"})
}

// ListBookmarks returns all bookmarks.
func (h *Handler) ListBookmarks(c *gin.Context) {
	all, err := h.manager.Bookmarks()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarks": all})
}

type captureRequest struct {
	URL     string `json:"url" binding:"required"`
	Title   string `json:"title" binding:"required"`
	Favicon string `json:"favicon"`
	Group   string `json:"group"`
}

// CaptureBookmark saves a page, overwriting any bookmark with the same URL.
func (h *Handler) CaptureBookmark(c *gin.Context) {
	var req captureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := h.manager.Capture(types.Bookmark{
		URL:     req.URL,
		Title:   req.Title,
		Favicon: req.Favicon,
		Group:   req.Group,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.updateCollectionGauges()
	c.JSON(http.StatusCreated, gin.H{"bookmark": b})
}

// DeleteBookmark removes a single bookmark.
func (h *Handler) DeleteBookmark(c *gin.Context) {
	if err := h.manager.Delete(c.Param("id")); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, bookmarks.ErrBookmarkNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	h.updateCollectionGauges()
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type batchDeleteRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// BatchDelete removes a set of bookmarks, ignoring unknown ids.
func (h *Handler) BatchDelete(c *gin.Context) {
	var req batchDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	removed, err := h.manager.BatchDelete(req.IDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.updateCollectionGauges()
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

type batchMoveRequest struct {
	IDs   []string `json:"ids" binding:"required"`
	Group string   `json:"group" binding:"required"`
}

// BatchMove reassigns a set of bookmarks to a group.
func (h *Handler) BatchMove(c *gin.Context) {
	var req batchMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	moved, err := h.manager.BatchMove(req.IDs, req.Group)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, bookmarks.ErrGroupNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"moved": moved})
}

// ListGroups returns all groups.
func (h *Handler) ListGroups(c *gin.Context) {
	all, err := h.manager.Groups()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": all})
}

type groupRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

// CreateGroup adds a named group.
func (h *Handler) CreateGroup(c *gin.Context) {
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, err := h.manager.CreateGroup(req.Name, req.Color)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, bookmarks.ErrGroupNameInvalid) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	h.updateCollectionGauges()
	c.JSON(http.StatusCreated, gin.H{"group": g})
}

// UpdateGroup renames or recolors a group.
func (h *Handler) UpdateGroup(c *gin.Context) {
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, err := h.manager.UpdateGroup(c.Param("id"), req.Name, req.Color)
	if err != nil {
		c.JSON(groupErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": g})
}

// DeleteGroup removes a group, reassigning its bookmarks to the default
// group.
func (h *Handler) DeleteGroup(c *gin.Context) {
	if err := h.manager.DeleteGroup(c.Param("id")); err != nil {
		c.JSON(groupErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	h.updateCollectionGauges()
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func groupErrorStatus(err error) int {
	switch {
	case errors.Is(err, bookmarks.ErrGroupNotFound):
		return http.StatusNotFound
	case errors.Is(err, bookmarks.ErrGroupNameInvalid),
		errors.Is(err, bookmarks.ErrDefaultGroupImmutable):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Import parses an uploaded Netscape bookmark file and merges it. Parse
// failures abort the whole import; nothing is inserted partially.
func (h *Handler) Import(c *gin.Context) {
	reader, err := importReader(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer reader.Close()

	parsed, err := netscape.Parse(io.LimitReader(reader, maxImportSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stats, err := h.manager.ImportMerge(parsed)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.metrics.RecordImport(stats.BookmarksAdded)
	h.updateCollectionGauges()
	h.logger.Info("Import completed",
		zap.Int("bookmarks_added", stats.BookmarksAdded),
		zap.Int("groups_added", stats.GroupsAdded),
	)
	c.JSON(http.StatusOK, gin.H{
		"bookmarks_added": stats.BookmarksAdded,
		"groups_added":    stats.GroupsAdded,
	})
}

// importReader accepts either a multipart "file" field or the raw body.
func importReader(c *gin.Context) (io.ReadCloser, error) {
	if file, err := c.FormFile("file"); err == nil {
		return file.Open()
	}
	return c.Request.Body, nil
}

// Export streams the collections as a downloadable Netscape HTML file.
func (h *Handler) Export(c *gin.Context) {
	all, err := h.manager.Bookmarks()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	groups, err := h.manager.Groups()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	doc := netscape.Export(all, groups)
	h.metrics.RecordExport()

	c.Header("Content-Disposition", `attachment; filename="`+netscape.ExportFilename(time.Now())+`"`)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc))
}

// SyncSettings returns the sync configuration, with the token masked.
func (h *Handler) SyncSettings(c *gin.Context) {
	provider := h.store.GetString(kv.KeySyncProvider)
	c.JSON(http.StatusOK, gin.H{
		"provider":       provider,
		"token_set":      provider != "" && h.store.GetString(kv.TokenKey(provider)) != "",
		"auto_sync":      h.store.GetBool(kv.KeyAutoSyncEnabled),
		"last_sync_time": h.store.GetString(kv.KeyLastSyncTime),
	})
}

type syncSettingsRequest struct {
	Provider string `json:"provider" binding:"required,oneof=gitee github"`
	Token    string `json:"token"`
	AutoSync *bool  `json:"auto_sync"`
}

// UpdateSyncSettings stores provider, token, and auto-sync preference. A
// supplied token is validated against the provider before being saved.
func (h *Handler) UpdateSyncSettings(c *gin.Context) {
	var req syncSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Token != "" {
		username, err := h.sync.ValidateToken(c.Request.Context(), req.Provider, req.Token)
		if err != nil {
			var authErr *gitsync.AuthError
			status := http.StatusBadGateway
			if errors.As(err, &authErr) {
				status = http.StatusUnauthorized
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		if err := h.store.Set(kv.TokenKey(req.Provider), req.Token); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		h.logger.Info("Sync token validated",
			zap.String("provider", req.Provider),
			zap.String("username", username),
		)
	}

	if err := h.store.Set(kv.KeySyncProvider, req.Provider); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if req.AutoSync != nil {
		if err := h.store.Set(kv.KeyAutoSyncEnabled, *req.AutoSync); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	h.SyncSettings(c)
}

// SyncStatus returns the report of the most recent sync transition.
func (h *Handler) SyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": h.sync.Status()})
}

// SyncToCloud triggers a manual upload.
func (h *Handler) SyncToCloud(c *gin.Context) {
	start := time.Now()
	report := h.sync.SyncToCloud(c.Request.Context())
	h.metrics.RecordSyncRun(report.Direction, string(report.Status), time.Since(start))
	c.JSON(syncReportStatus(report), gin.H{"report": report})
}

// SyncFromCloud triggers a manual download and restore. Manual pulls bypass
// the auto-sync throttle.
func (h *Handler) SyncFromCloud(c *gin.Context) {
	start := time.Now()
	report := h.sync.SyncFromCloud(c.Request.Context(), true)
	h.metrics.RecordSyncRun(report.Direction, string(report.Status), time.Since(start))
	if report.Status == types.SyncSuccess {
		h.updateCollectionGauges()
	}
	c.JSON(syncReportStatus(report), gin.H{"report": report})
}

func syncReportStatus(report types.SyncReport) int {
	switch {
	case report.Skipped:
		return http.StatusAccepted
	case report.Status == types.SyncError:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}

func (h *Handler) updateCollectionGauges() {
	all, err := h.manager.Bookmarks()
	if err != nil {
		return
	}
	groups, err := h.manager.Groups()
	if err != nil {
		return
	}
	h.metrics.SetCollectionSizes(len(all), len(groups))
}
