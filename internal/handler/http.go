package handler

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"media-journal/internal/mediastore"
	"media-journal/internal/metadata"
	"media-journal/internal/models"
	"media-journal/internal/repository"
	"media-journal/internal/service"
	"media-journal/internal/timeutil"
)

// allowedKeyProviders lists the provider names accepted by the key endpoints
var allowedKeyProviders = map[string]bool{
	"tmdb": true, "igdb": true, "mal": true,
	"anilist": true, "openlib": true, "musicbrainz": true,
}

// HTTPHandler handles HTTP requests for the web interface
type HTTPHandler struct {
	library      *service.LibraryService
	backupMgr    *service.BackupManager
	itemRepo     *repository.MediaItemRepository
	personRepo   *repository.PersonRepository
	settingsRepo *repository.SettingsRepository
	credRepo     *repository.CredentialRepository
	media        *mediastore.Store
	tmdb         *metadata.TMDBClient
	jikan        *metadata.JikanClient
	igdb         *metadata.IGDBClient
	openlib      *metadata.OpenLibraryClient
	musicbrainz  *metadata.MusicBrainzClient
	apiToken     string
}

// NewHTTPHandler creates a new HTTPHandler
func NewHTTPHandler(
	library *service.LibraryService,
	backupMgr *service.BackupManager,
	itemRepo *repository.MediaItemRepository,
	personRepo *repository.PersonRepository,
	settingsRepo *repository.SettingsRepository,
	credRepo *repository.CredentialRepository,
	media *mediastore.Store,
	tmdb *metadata.TMDBClient,
	jikan *metadata.JikanClient,
	igdb *metadata.IGDBClient,
	openlib *metadata.OpenLibraryClient,
	musicbrainz *metadata.MusicBrainzClient,
	apiToken string,
) *HTTPHandler {
	return &HTTPHandler{
		library:      library,
		backupMgr:    backupMgr,
		itemRepo:     itemRepo,
		personRepo:   personRepo,
		settingsRepo: settingsRepo,
		credRepo:     credRepo,
		media:        media,
		tmdb:         tmdb,
		jikan:        jikan,
		igdb:         igdb,
		openlib:      openlib,
		musicbrainz:  musicbrainz,
		apiToken:     strings.TrimSpace(apiToken),
	}
}

// RegisterRoutes registers all HTTP routes
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.Static("/media", h.media.Root())

	// Health check must allow unauthenticated ping for probes
	r.GET("/api/health", h.Health)

	api := r.Group("/api")
	api.Use(h.authMiddleware)

	// Provider search
	api.GET("/search/tmdb", h.SearchTMDB)
	api.GET("/search/mal", h.SearchMAL)
	api.GET("/search/person", h.SearchPerson)
	api.GET("/search/igdb", h.SearchIGDB)
	api.GET("/search/openlib", h.SearchOpenLibrary)
	api.GET("/search/musicbrainz", h.SearchMusicBrainz)

	// Catalog
	api.POST("/list", h.AddToList)
	api.GET("/items", h.GetItems)
	api.GET("/items/:id", h.GetItem)
	api.PUT("/items/:id", h.EditItem)
	api.DELETE("/items/:id", h.DeleteItem)
	api.POST("/items/:id/refresh", h.RefreshItem)

	// Notifications
	api.GET("/notifications", h.GetNotifications)
	api.POST("/notifications/:id/dismiss", h.DismissNotification)

	// Favorite persons and favorite media ordering
	api.GET("/favorite-persons", h.GetFavoritePersons)
	api.POST("/favorite-persons/toggle", h.ToggleFavoritePerson)
	api.POST("/favorite-persons/:id/refresh", h.RefreshFavoritePerson)
	api.POST("/favorite-persons/reorder", h.ReorderFavoritePersons)
	api.POST("/favorites/reorder", h.ReorderFavoriteMedia)

	// Settings and provider credentials
	api.GET("/settings", h.GetSettings)
	api.PUT("/settings", h.UpdateSettings)
	api.GET("/keys", h.GetKeys)
	api.POST("/keys", h.SaveKey)
	api.PUT("/keys/:name", h.SaveKeyNamed)
	api.DELETE("/keys/:name", h.DeleteKey)

	// Image uploads
	api.POST("/upload/cover", h.UploadCover)
	api.POST("/upload/banner", h.UploadBanner)

	// Backups
	api.GET("/backup/export", h.StartExport)
	api.POST("/backup/import", h.StartImport)
	api.GET("/backup/status/:id", h.BackupStatus)
	api.GET("/backup/cancel/:id", h.CancelBackup)
	api.GET("/backup/download/:id", h.DownloadBackup)
}

// Health returns health status
func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SearchTMDB searches TMDB movies or TV shows depending on ?type=
func (h *HTTPHandler) SearchTMDB(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}

	var results []metadata.TMDBSearchResult
	var err error
	if c.DefaultQuery("type", "movie") == "tv" {
		results, err = h.tmdb.SearchTV(query)
	} else {
		results, err = h.tmdb.SearchMovie(query)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// SearchMAL searches MAL anime or manga depending on ?type=
func (h *HTTPHandler) SearchMAL(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}

	var results []metadata.JikanEntry
	var err error
	if c.DefaultQuery("type", "anime") == "manga" {
		results, err = h.jikan.SearchManga(query)
	} else {
		results, err = h.jikan.SearchAnime(query)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// SearchPerson searches TMDB actors by name
func (h *HTTPHandler) SearchPerson(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}

	results, err := h.tmdb.SearchPerson(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// SearchIGDB searches IGDB games
func (h *HTTPHandler) SearchIGDB(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}

	results, err := h.igdb.SearchGames(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// SearchOpenLibrary searches Open Library books
func (h *HTTPHandler) SearchOpenLibrary(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}

	results, err := h.openlib.SearchBooks(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// SearchMusicBrainz searches MusicBrainz release groups
func (h *HTTPHandler) SearchMusicBrainz(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}

	results, err := h.musicbrainz.SearchReleases(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// AddToList adds a work to the catalog
func (h *HTTPHandler) AddToList(c *gin.Context) {
	var req service.AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.library.AddToList(req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

// GetItems lists catalog items, optionally filtered by ?kind=
func (h *HTTPHandler) GetItems(c *gin.Context) {
	var items []models.MediaItem
	var err error
	if kind := c.Query("kind"); kind != "" {
		if !models.ValidKind(models.MediaKind(kind)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media kind: " + kind})
			return
		}
		items, err = h.itemRepo.GetByKind(models.MediaKind(kind))
	} else {
		items, err = h.itemRepo.GetAll()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if items == nil {
		items = []models.MediaItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetItem returns one catalog item
func (h *HTTPHandler) GetItem(c *gin.Context) {
	id := h.getIntParam(c, "id")
	if id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	item, err := h.itemRepo.GetByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

// EditItem updates the user-owned fields of an item
func (h *HTTPHandler) EditItem(c *gin.Context) {
	id := h.getIntParam(c, "id")
	if id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	var req service.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.library.EditItem(id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

// DeleteItem removes an item and its cached media files
func (h *HTTPHandler) DeleteItem(c *gin.Context) {
	id := h.getIntParam(c, "id")
	if id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	if err := h.library.DeleteItem(id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "item deleted"})
}

// RefreshItem re-fetches provider metadata for one item
func (h *HTTPHandler) RefreshItem(c *gin.Context) {
	id := h.getIntParam(c, "id")
	if id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	item, err := h.library.RefreshItem(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

// GetNotifications lists items with a pending notification, newest first
func (h *HTTPHandler) GetNotifications(c *gin.Context) {
	items, err := h.itemRepo.GetNotifications()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if items == nil {
		items = []models.MediaItem{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// DismissNotification clears the notification flag on an item
func (h *HTTPHandler) DismissNotification(c *gin.Context) {
	id := h.getIntParam(c, "id")
	if id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	if err := h.itemRepo.DismissNotification(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "notification dismissed"})
}

// GetFavoritePersons lists favorite persons in display order
func (h *HTTPHandler) GetFavoritePersons(c *gin.Context) {
	persons, err := h.personRepo.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if persons == nil {
		persons = []models.FavoritePerson{}
	}
	c.JSON(http.StatusOK, gin.H{"persons": persons})
}

// ToggleFavoritePerson adds or removes a favorite person
func (h *HTTPHandler) ToggleFavoritePerson(c *gin.Context) {
	var req service.TogglePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	added, err := h.library.ToggleFavoritePerson(req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

// RefreshFavoritePerson re-fetches biography and filmography for a person
func (h *HTTPHandler) RefreshFavoritePerson(c *gin.Context) {
	id := h.getIntParam(c, "id")
	if id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return
	}

	person, err := h.library.RefreshFavoritePerson(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"person": person})
}

// ReorderRequest carries the full new id order for a reorder operation
type ReorderRequest struct {
	Order []int64 `json:"order" binding:"required"`
}

// ReorderFavoritePersons applies a full new display order to persons
func (h *HTTPHandler) ReorderFavoritePersons(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.library.ReorderFavoritePersons(req.Order); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "order updated"})
}

// ReorderFavoriteMedia applies a full new favorite order to catalog items
func (h *HTTPHandler) ReorderFavoriteMedia(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.library.ReorderFavoriteMedia(req.Order); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "order updated"})
}

// GetSettings returns the settings singleton, creating it if needed
func (h *HTTPHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingsRepo.Get()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// UpdateSettings overwrites the settings singleton
func (h *HTTPHandler) UpdateSettings(c *gin.Context) {
	var settings models.AppSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.settingsRepo.Update(&settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// GetKeys lists stored provider credentials with the secret halves masked
func (h *HTTPHandler) GetKeys(c *gin.Context) {
	creds, err := h.credRepo.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	masked := make([]gin.H, 0, len(creds))
	for _, cred := range creds {
		masked = append(masked, gin.H{
			"provider": cred.Provider,
			"has_key":  cred.Key1 != "",
			"has_key2": cred.Key2 != "",
		})
	}
	c.JSON(http.StatusOK, gin.H{"keys": masked})
}

// KeyRequest is the payload for saving a provider credential
type KeyRequest struct {
	Provider string `json:"provider"`
	Key1     string `json:"key_1" binding:"required"`
	Key2     string `json:"key_2"`
}

// SaveKey stores a provider credential named in the request body
func (h *HTTPHandler) SaveKey(c *gin.Context) {
	var req KeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.saveKey(c, req.Provider, req)
}

// SaveKeyNamed stores a provider credential named in the URL
func (h *HTTPHandler) SaveKeyNamed(c *gin.Context) {
	var req KeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.saveKey(c, c.Param("name"), req)
}

func (h *HTTPHandler) saveKey(c *gin.Context, provider string, req KeyRequest) {
	if !allowedKeyProviders[provider] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider: " + provider})
		return
	}

	cred := &models.ProviderCredential{Provider: provider, Key1: req.Key1, Key2: req.Key2}
	if err := h.credRepo.Upsert(cred); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "key saved"})
}

// DeleteKey removes a provider credential
func (h *HTTPHandler) DeleteKey(c *gin.Context) {
	name := c.Param("name")
	if !allowedKeyProviders[name] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider: " + name})
		return
	}

	if err := h.credRepo.Delete(name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "key deleted"})
}

// UploadCover replaces an item's cover image with an uploaded file
func (h *HTTPHandler) UploadCover(c *gin.Context) {
	h.uploadImage(c, mediastore.FolderPosters, "")
}

// UploadBanner replaces an item's banner image with an uploaded file
func (h *HTTPHandler) UploadBanner(c *gin.Context) {
	h.uploadImage(c, mediastore.FolderBanners, "_banner")
}

func (h *HTTPHandler) uploadImage(c *gin.Context, folder, suffix string) {
	id := h.getIntParam(c, "item_id")
	if id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	item, err := h.itemRepo.GetByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	ext := filepath.Ext(file.Filename)
	if !mediastore.AllowedImageExt(ext) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type: " + ext})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer src.Close()

	url, err := h.media.SaveUpload(folder, item.FileBaseName()+suffix, ext, src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if folder == mediastore.FolderBanners {
		item.BannerURL = url
	} else {
		item.CoverURL = url
	}
	if err := h.itemRepo.Update(item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "item": item})
}

// StartExport begins a backup export and returns its task id
func (h *HTTPHandler) StartExport(c *gin.Context) {
	taskID := h.backupMgr.StartExport()
	c.JSON(http.StatusOK, gin.H{"task_id": taskID})
}

// StartImport persists the uploaded archive and begins a restore task
func (h *HTTPHandler) StartImport(c *gin.Context) {
	file, err := c.FormFile("backup_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "backup_file is required"})
		return
	}

	tmp, err := os.CreateTemp("", "media_journal_upload_*.zip")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	tmp.Close()

	if err := c.SaveUploadedFile(file, tmp.Name()); err != nil {
		_ = os.Remove(tmp.Name())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	taskID := h.backupMgr.StartImport(tmp.Name())
	c.JSON(http.StatusOK, gin.H{"task_id": taskID})
}

// BackupStatus returns the state of one backup task
func (h *HTTPHandler) BackupStatus(c *gin.Context) {
	task, ok := h.backupMgr.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	snap := task.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":   snap.Status,
		"progress": snap.Progress,
		"message":  snap.Message,
		"details":  snap.Details,
		"error":    snap.Error,
	})
}

// CancelBackup requests cancellation of one backup task
func (h *HTTPHandler) CancelBackup(c *gin.Context) {
	ok := h.backupMgr.Cancel(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"success": ok})
}

// DownloadBackup streams a completed export archive
func (h *HTTPHandler) DownloadBackup(c *gin.Context) {
	task, ok := h.backupMgr.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	snap := task.Snapshot()
	if snap.Status != service.TaskCompleted || task.ResultPath() == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "backup is not ready for download"})
		return
	}

	name := fmt.Sprintf("media_journal_backup_%s.zip", timeutil.Now().Format("20060102"))
	c.FileAttachment(task.ResultPath(), name)
}

// respondError maps service errors onto HTTP status codes
func (h *HTTPHandler) respondError(c *gin.Context, err error) {
	var ve service.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// authMiddleware enforces Bearer token authentication when a token is
// configured. An empty token leaves the API open for local use.
func (h *HTTPHandler) authMiddleware(c *gin.Context) {
	if h.apiToken == "" {
		c.Next()
		return
	}

	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
		c.Abort()
		return
	}

	if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(h.apiToken)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		c.Abort()
		return
	}

	c.Next()
}

func (h *HTTPHandler) getIntParam(c *gin.Context, key string) int64 {
	value := c.Param(key)
	if value == "" {
		value = c.Query(key)
	}
	if value == "" {
		value = c.PostForm(key)
	}
	if value == "" {
		return 0
	}

	var id int64
	if _, err := fmt.Sscanf(value, "%d", &id); err != nil {
		return 0
	}
	return id
}
