package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"media-journal/internal/models"
	"media-journal/internal/timeutil"
)

type mediaItemDBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// MediaItemRepository handles MediaItem database operations
type MediaItemRepository struct {
	db   mediaItemDBTX
	base *sql.DB
}

// NewMediaItemRepository creates a new MediaItemRepository
func NewMediaItemRepository(sqliteDB *SQLiteDB) *MediaItemRepository {
	return &MediaItemRepository{db: sqliteDB.db, base: sqliteDB.db}
}

func (r *MediaItemRepository) BeginTx() (*sql.Tx, error) {
	if r.base == nil {
		return nil, errors.New("media item repository: transactions not supported on tx-scoped repo")
	}
	return r.base.Begin()
}

func (r *MediaItemRepository) WithTx(tx *sql.Tx) *MediaItemRepository {
	return &MediaItemRepository{db: tx}
}

const mediaItemColumns = `id, title, media_kind, provider, provider_id, status,
	progress_main, progress_secondary, total_main, total_secondary, personal_rating,
	favorite, favorite_order, cover_url, banner_url, notes, notification_pending,
	added_at, last_checked_at, seasons_json, episodes_json, related_titles_json,
	cast_json, screenshots_json, media_links_json`

// Create inserts a new MediaItem into the database
func (r *MediaItemRepository) Create(item *models.MediaItem) error {
	now := timeutil.Now()
	if item.AddedAt.IsZero() {
		item.AddedAt = now
	}
	if item.LastCheckedAt.IsZero() {
		item.LastCheckedAt = now
	}
	blobs, err := marshalItemBlobs(item)
	if err != nil {
		return err
	}
	result, err := r.db.Exec(`
		INSERT INTO media_items (title, media_kind, provider, provider_id, status,
			progress_main, progress_secondary, total_main, total_secondary, personal_rating,
			favorite, favorite_order, cover_url, banner_url, notes, notification_pending,
			added_at, last_checked_at, seasons_json, episodes_json, related_titles_json,
			cast_json, screenshots_json, media_links_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.Title, item.Kind, item.Provider, item.ProviderID, item.Status,
		item.ProgressMain, item.ProgressSecondary, item.TotalMain, item.TotalSecondary, item.PersonalRating,
		item.Favorite, item.FavoriteOrder, item.CoverURL, item.BannerURL, item.Notes, item.NotificationPending,
		item.AddedAt, item.LastCheckedAt, blobs.seasons, blobs.episodes, blobs.related,
		blobs.cast, blobs.screenshots, blobs.links)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	item.ID = id
	return nil
}

// Upsert inserts a MediaItem, or overwrites every field except the primary
// identity when an item with the same (provider, provider_id, media_kind)
// natural key already exists.
func (r *MediaItemRepository) Upsert(item *models.MediaItem) error {
	now := timeutil.Now()
	if item.AddedAt.IsZero() {
		item.AddedAt = now
	}
	if item.LastCheckedAt.IsZero() {
		item.LastCheckedAt = now
	}
	blobs, err := marshalItemBlobs(item)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`
		INSERT INTO media_items (title, media_kind, provider, provider_id, status,
			progress_main, progress_secondary, total_main, total_secondary, personal_rating,
			favorite, favorite_order, cover_url, banner_url, notes, notification_pending,
			added_at, last_checked_at, seasons_json, episodes_json, related_titles_json,
			cast_json, screenshots_json, media_links_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, provider_id, media_kind) DO UPDATE SET
			title = excluded.title,
			status = excluded.status,
			progress_main = excluded.progress_main,
			progress_secondary = excluded.progress_secondary,
			total_main = excluded.total_main,
			total_secondary = excluded.total_secondary,
			personal_rating = excluded.personal_rating,
			favorite = excluded.favorite,
			favorite_order = excluded.favorite_order,
			cover_url = excluded.cover_url,
			banner_url = excluded.banner_url,
			notes = excluded.notes,
			notification_pending = excluded.notification_pending,
			added_at = excluded.added_at,
			last_checked_at = excluded.last_checked_at,
			seasons_json = excluded.seasons_json,
			episodes_json = excluded.episodes_json,
			related_titles_json = excluded.related_titles_json,
			cast_json = excluded.cast_json,
			screenshots_json = excluded.screenshots_json,
			media_links_json = excluded.media_links_json
	`, item.Title, item.Kind, item.Provider, item.ProviderID, item.Status,
		item.ProgressMain, item.ProgressSecondary, item.TotalMain, item.TotalSecondary, item.PersonalRating,
		item.Favorite, item.FavoriteOrder, item.CoverURL, item.BannerURL, item.Notes, item.NotificationPending,
		item.AddedAt, item.LastCheckedAt, blobs.seasons, blobs.episodes, blobs.related,
		blobs.cast, blobs.screenshots, blobs.links)
	if err != nil {
		return err
	}

	stored, err := r.GetByNaturalKey(item.Provider, item.ProviderID, item.Kind)
	if err != nil {
		return err
	}
	if stored != nil {
		item.ID = stored.ID
	}
	return nil
}

// GetByID retrieves a MediaItem by its ID
func (r *MediaItemRepository) GetByID(id int64) (*models.MediaItem, error) {
	row := r.db.QueryRow(`SELECT `+mediaItemColumns+` FROM media_items WHERE id = ?`, id)
	return scanMediaItem(row)
}

// GetByNaturalKey retrieves a MediaItem by its (provider, provider_id, media_kind) triple
func (r *MediaItemRepository) GetByNaturalKey(provider, providerID string, kind models.MediaKind) (*models.MediaItem, error) {
	row := r.db.QueryRow(`
		SELECT `+mediaItemColumns+` FROM media_items
		WHERE provider = ? AND provider_id = ? AND media_kind = ?
	`, provider, providerID, kind)
	return scanMediaItem(row)
}

// GetAll retrieves every MediaItem
func (r *MediaItemRepository) GetAll() ([]models.MediaItem, error) {
	rows, err := r.db.Query(`SELECT ` + mediaItemColumns + ` FROM media_items ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectMediaItems(rows)
}

// GetByKind retrieves all items of one media kind
func (r *MediaItemRepository) GetByKind(kind models.MediaKind) ([]models.MediaItem, error) {
	rows, err := r.db.Query(`
		SELECT `+mediaItemColumns+` FROM media_items WHERE media_kind = ? ORDER BY title
	`, kind)
	if err != nil {
		return nil, err
	}
	return collectMediaItems(rows)
}

// GetStaleCandidates retrieves refresh candidates for one provider family:
// items whose kind is in kinds, whose last_checked_at is older than cutoff,
// and whose provider_id is not a season sub-record (the "_s" naming
// convention used for per-season entries).
func (r *MediaItemRepository) GetStaleCandidates(provider string, kinds []models.MediaKind, cutoff time.Time) ([]models.MediaItem, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(kinds))
	placeholders = placeholders[:len(placeholders)-1]

	args := []any{provider}
	for _, k := range kinds {
		args = append(args, k)
	}
	args = append(args, cutoff)

	rows, err := r.db.Query(`
		SELECT `+mediaItemColumns+` FROM media_items
		WHERE provider = ?
		  AND media_kind IN (`+placeholders+`)
		  AND provider_id NOT LIKE '%\_s%' ESCAPE '\'
		  AND last_checked_at < ?
		ORDER BY last_checked_at
	`, args...)
	if err != nil {
		return nil, err
	}
	return collectMediaItems(rows)
}

// GetNotifications retrieves items with a pending notification, newest first
func (r *MediaItemRepository) GetNotifications() ([]models.MediaItem, error) {
	rows, err := r.db.Query(`
		SELECT ` + mediaItemColumns + ` FROM media_items
		WHERE notification_pending = TRUE
		ORDER BY last_checked_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return collectMediaItems(rows)
}

// Update updates an existing MediaItem in the database
func (r *MediaItemRepository) Update(item *models.MediaItem) error {
	blobs, err := marshalItemBlobs(item)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`
		UPDATE media_items
		SET title = ?, status = ?, progress_main = ?, progress_secondary = ?,
			total_main = ?, total_secondary = ?, personal_rating = ?, favorite = ?,
			favorite_order = ?, cover_url = ?, banner_url = ?, notes = ?,
			notification_pending = ?, last_checked_at = ?, seasons_json = ?,
			episodes_json = ?, related_titles_json = ?, cast_json = ?,
			screenshots_json = ?, media_links_json = ?
		WHERE id = ?
	`, item.Title, item.Status, item.ProgressMain, item.ProgressSecondary,
		item.TotalMain, item.TotalSecondary, item.PersonalRating, item.Favorite,
		item.FavoriteOrder, item.CoverURL, item.BannerURL, item.Notes,
		item.NotificationPending, item.LastCheckedAt, blobs.seasons,
		blobs.episodes, blobs.related, blobs.cast,
		blobs.screenshots, blobs.links, item.ID)
	return err
}

// Delete removes a MediaItem by ID
func (r *MediaItemRepository) Delete(id int64) error {
	_, err := r.db.Exec(`DELETE FROM media_items WHERE id = ?`, id)
	return err
}

// DismissNotification clears the notification flag on an item
func (r *MediaItemRepository) DismissNotification(id int64) error {
	_, err := r.db.Exec(`UPDATE media_items SET notification_pending = FALSE WHERE id = ?`, id)
	return err
}

// ReorderFavorites assigns favorite_order 1..n following the given id order.
// The whole reorder runs in one transaction so a failure leaves no mix of
// old and new positions.
func (r *MediaItemRepository) ReorderFavorites(ids []int64) error {
	tx, err := r.BeginTx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for position, id := range ids {
		if _, err := tx.Exec(`UPDATE media_items SET favorite_order = ? WHERE id = ?`, position+1, id); err != nil {
			return fmt.Errorf("failed to set favorite order: %w", err)
		}
	}

	return tx.Commit()
}

type itemBlobs struct {
	seasons     string
	episodes    string
	related     string
	cast        string
	screenshots string
	links       string
}

func marshalItemBlobs(item *models.MediaItem) (*itemBlobs, error) {
	seasons, err := marshalList(item.Seasons)
	if err != nil {
		return nil, err
	}
	episodes, err := marshalList(item.Episodes)
	if err != nil {
		return nil, err
	}
	related, err := marshalList(item.RelatedTitles)
	if err != nil {
		return nil, err
	}
	cast, err := marshalList(item.Cast)
	if err != nil {
		return nil, err
	}
	screenshots, err := marshalList(item.Screenshots)
	if err != nil {
		return nil, err
	}
	links, err := marshalList(item.MediaLinks)
	if err != nil {
		return nil, err
	}
	return &itemBlobs{
		seasons:     seasons,
		episodes:    episodes,
		related:     related,
		cast:        cast,
		screenshots: screenshots,
		links:       links,
	}, nil
}

func marshalList[T any](list []T) (string, error) {
	if list == nil {
		return "[]", nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to encode item blob: %w", err)
	}
	return string(data), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMediaItemFields(s rowScanner) (*models.MediaItem, error) {
	item := &models.MediaItem{}
	var progressSecondary, totalMain, totalSecondary, rating, favOrder sql.NullInt64
	var seasons, episodes, related, cast, screenshots, links string

	err := s.Scan(
		&item.ID, &item.Title, &item.Kind, &item.Provider, &item.ProviderID, &item.Status,
		&item.ProgressMain, &progressSecondary, &totalMain, &totalSecondary, &rating,
		&item.Favorite, &favOrder, &item.CoverURL, &item.BannerURL, &item.Notes, &item.NotificationPending,
		&item.AddedAt, &item.LastCheckedAt, &seasons, &episodes, &related,
		&cast, &screenshots, &links,
	)
	if err != nil {
		return nil, err
	}

	item.ProgressSecondary = nullableInt(progressSecondary)
	item.TotalMain = nullableInt(totalMain)
	item.TotalSecondary = nullableInt(totalSecondary)
	item.PersonalRating = nullableInt(rating)
	item.FavoriteOrder = nullableInt(favOrder)

	if err := unmarshalList(seasons, &item.Seasons); err != nil {
		return nil, err
	}
	if err := unmarshalList(episodes, &item.Episodes); err != nil {
		return nil, err
	}
	if err := unmarshalList(related, &item.RelatedTitles); err != nil {
		return nil, err
	}
	if err := unmarshalList(cast, &item.Cast); err != nil {
		return nil, err
	}
	if err := unmarshalList(screenshots, &item.Screenshots); err != nil {
		return nil, err
	}
	if err := unmarshalList(links, &item.MediaLinks); err != nil {
		return nil, err
	}

	return item, nil
}

func scanMediaItem(row *sql.Row) (*models.MediaItem, error) {
	item, err := scanMediaItemFields(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func collectMediaItems(rows *sql.Rows) ([]models.MediaItem, error) {
	defer rows.Close()

	var items []models.MediaItem
	for rows.Next() {
		item, err := scanMediaItemFields(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func unmarshalList[T any](data string, dst *[]T) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), dst); err != nil {
		return fmt.Errorf("failed to decode item blob: %w", err)
	}
	return nil
}
