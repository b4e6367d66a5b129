package service

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"media-journal/internal/mediastore"
	"media-journal/internal/metadata"
	"media-journal/internal/models"
	"media-journal/internal/repository"
	"media-journal/internal/timeutil"
)

type staticKeys struct{}

func (staticKeys) ProviderKeys(name string) (string, string, error) {
	return "test-key", "test-secret", nil
}

func newServiceTestDB(t *testing.T) *repository.SQLiteDB {
	t.Helper()
	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}
	return db
}

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	timeutil.SetNowFunc(func() time.Time { return at })
	t.Cleanup(func() { timeutil.SetNowFunc(time.Now) })
}

func tvRefreshFixture(t *testing.T, remoteSeasons int) (*RefreshService, *repository.MediaItemRepository, *models.MediaItem) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": 95396, "name": "Severance", "seasons": [`)
		for i := 1; i <= remoteSeasons; i++ {
			if i > 1 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"season_number": %d, "name": "Season %d", "episode_count": 9, "poster_path": "", "air_date": "2022-02-18"}`, i, i)
		}
		fmt.Fprint(w, `]}`)
	}))
	t.Cleanup(srv.Close)

	tmdb := metadata.NewTMDBClient(staticKeys{})
	tmdb.SetBaseURL(srv.URL)

	db := newServiceTestDB(t)
	itemRepo := repository.NewMediaItemRepository(db)
	media := mediastore.NewStore(t.TempDir())
	refresher := NewRefreshService(tmdb, metadata.NewAniListClient(), itemRepo, media)

	item := &models.MediaItem{
		Title: "Severance", Kind: models.KindTV, Provider: "tmdb", ProviderID: "95396",
		Status: models.StatusOngoing,
		Seasons: []models.Season{
			{SeasonNumber: 1, Name: "Season 1", EpisodeCount: 9},
			{SeasonNumber: 2, Name: "Season 2", EpisodeCount: 9},
		},
	}
	if err := itemRepo.Create(item); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return refresher, itemRepo, item
}

// Remote [1,2,3] against local [1,2]: exactly one season is appended, the
// notification flag is set and the stored seasons keep their data
func TestRefreshTVSeasonsAppendsNewSeason(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	freezeClock(t, now)

	refresher, itemRepo, item := tvRefreshFixture(t, 3)

	added, err := refresher.RefreshTVSeasons(item)
	if err != nil {
		t.Fatalf("RefreshTVSeasons failed: %v", err)
	}
	if !added {
		t.Fatal("Expected a new season to be reported")
	}

	got, err := itemRepo.GetByID(item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(got.Seasons) != 3 {
		t.Fatalf("Expected 3 seasons, got %d", len(got.Seasons))
	}
	if got.Seasons[0].SeasonNumber != 1 || got.Seasons[1].SeasonNumber != 2 {
		t.Error("Existing seasons were disturbed")
	}
	if got.Seasons[2].SeasonNumber != 3 {
		t.Errorf("Appended season has number %d", got.Seasons[2].SeasonNumber)
	}
	if !got.NotificationPending {
		t.Error("Notification flag not set")
	}
	if !got.LastCheckedAt.Equal(now) {
		t.Errorf("last_checked_at not advanced: %v", got.LastCheckedAt)
	}
}

// Remote equals local: nothing is appended, no notification, but the
// check timestamp still advances
func TestRefreshTVSeasonsNoChange(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	freezeClock(t, now)

	refresher, itemRepo, item := tvRefreshFixture(t, 2)

	added, err := refresher.RefreshTVSeasons(item)
	if err != nil {
		t.Fatalf("RefreshTVSeasons failed: %v", err)
	}
	if added {
		t.Fatal("No new season expected")
	}

	got, err := itemRepo.GetByID(item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(got.Seasons) != 2 {
		t.Fatalf("Expected 2 seasons, got %d", len(got.Seasons))
	}
	if got.NotificationPending {
		t.Error("Notification flag set without new content")
	}
	if !got.LastCheckedAt.Equal(now) {
		t.Errorf("last_checked_at not advanced: %v", got.LastCheckedAt)
	}
}

// A fetch failure on the TV path leaves the item untouched so the next
// cycle retries it
func TestRefreshTVSeasonsFetchErrorLeavesItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	tmdb := metadata.NewTMDBClient(staticKeys{})
	tmdb.SetBaseURL(srv.URL)

	db := newServiceTestDB(t)
	itemRepo := repository.NewMediaItemRepository(db)
	refresher := NewRefreshService(tmdb, metadata.NewAniListClient(), itemRepo, mediastore.NewStore(t.TempDir()))

	checked := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	item := &models.MediaItem{
		Title: "Severance", Kind: models.KindTV, Provider: "tmdb", ProviderID: "95396",
		Status: models.StatusOngoing, LastCheckedAt: checked, AddedAt: checked,
	}
	if err := itemRepo.Create(item); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := refresher.RefreshTVSeasons(item); err == nil {
		t.Fatal("Expected fetch error")
	}

	got, _ := itemRepo.GetByID(item.ID)
	if !got.LastCheckedAt.Equal(checked) {
		t.Errorf("last_checked_at moved on a failed TV fetch: %v", got.LastCheckedAt)
	}
}

// A fetch failure on the anime/manga path still advances last_checked_at,
// so an unreachable endpoint cannot cause a retry storm
func TestRefreshRelatedTitlesAdvancesTimestampOnError(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	freezeClock(t, now)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	anilist := metadata.NewAniListClient()
	anilist.SetBaseURL(srv.URL)

	db := newServiceTestDB(t)
	itemRepo := repository.NewMediaItemRepository(db)
	refresher := NewRefreshService(metadata.NewTMDBClient(staticKeys{}), anilist, itemRepo, mediastore.NewStore(t.TempDir()))

	checked := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	item := &models.MediaItem{
		Title: "Monster", Kind: models.KindAnime, Provider: "mal", ProviderID: "19",
		Status: models.StatusCompleted, LastCheckedAt: checked, AddedAt: checked,
	}
	if err := itemRepo.Create(item); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := refresher.RefreshRelatedTitles(item); err == nil {
		t.Fatal("Expected fetch error")
	}

	got, _ := itemRepo.GetByID(item.ID)
	if !got.LastCheckedAt.Equal(now) {
		t.Errorf("last_checked_at not advanced on failure: %v", got.LastCheckedAt)
	}
}

// Only relations tagged sequel are appended, diffed by MAL id against what
// is already stored
func TestRefreshRelatedTitlesAppendsSequelsOnly(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	freezeClock(t, now)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": {"Media": {"relations": {"edges": [
			{"relationType": "SEQUEL", "node": {"idMal": 201, "title": {"english": "Part Two", "romaji": ""}, "coverImage": {"large": ""}}},
			{"relationType": "SEQUEL", "node": {"idMal": 100, "title": {"english": "Already Stored", "romaji": ""}, "coverImage": {"large": ""}}},
			{"relationType": "PREQUEL", "node": {"idMal": 300, "title": {"english": "Part Zero", "romaji": ""}, "coverImage": {"large": ""}}}
		]}}}}`)
	}))
	t.Cleanup(srv.Close)

	anilist := metadata.NewAniListClient()
	anilist.SetBaseURL(srv.URL)

	db := newServiceTestDB(t)
	itemRepo := repository.NewMediaItemRepository(db)
	refresher := NewRefreshService(metadata.NewTMDBClient(staticKeys{}), anilist, itemRepo, mediastore.NewStore(t.TempDir()))

	item := &models.MediaItem{
		Title: "Part One", Kind: models.KindAnime, Provider: "mal", ProviderID: "99",
		Status: models.StatusCompleted,
		RelatedTitles: []models.RelatedTitle{
			{MALID: 100, Title: "Already Stored", Relation: "Sequel"},
		},
	}
	if err := itemRepo.Create(item); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	added, err := refresher.RefreshRelatedTitles(item)
	if err != nil {
		t.Fatalf("RefreshRelatedTitles failed: %v", err)
	}
	if !added {
		t.Fatal("Expected a new sequel to be reported")
	}

	got, _ := itemRepo.GetByID(item.ID)
	if len(got.RelatedTitles) != 2 {
		t.Fatalf("Expected 2 related titles, got %d", len(got.RelatedTitles))
	}
	if got.RelatedTitles[1].MALID != 201 || got.RelatedTitles[1].Relation != "Sequel" {
		t.Errorf("Appended relation wrong: %+v", got.RelatedTitles[1])
	}
	if !got.NotificationPending {
		t.Error("Notification flag not set")
	}
}
