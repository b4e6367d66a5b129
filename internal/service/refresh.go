package service

import (
	"fmt"
	"log"
	"strings"

	"media-journal/internal/mediastore"
	"media-journal/internal/metadata"
	"media-journal/internal/models"
	"media-journal/internal/repository"
	"media-journal/internal/timeutil"
)

// RefreshService performs the per-item provider re-polls used by the
// background scheduler: season discovery for TV items and sequel discovery
// for anime/manga items.
type RefreshService struct {
	tmdb     *metadata.TMDBClient
	anilist  *metadata.AniListClient
	itemRepo *repository.MediaItemRepository
	media    *mediastore.Store
}

// NewRefreshService creates a new RefreshService
func NewRefreshService(
	tmdb *metadata.TMDBClient,
	anilist *metadata.AniListClient,
	itemRepo *repository.MediaItemRepository,
	media *mediastore.Store,
) *RefreshService {
	return &RefreshService{
		tmdb:     tmdb,
		anilist:  anilist,
		itemRepo: itemRepo,
		media:    media,
	}
}

// RefreshTVSeasons re-fetches a TV item's provider detail and appends any
// season present remotely but absent locally. New seasons set the
// notification flag; in either case last_checked_at advances. A fetch
// failure leaves the item untouched so the next cycle retries it.
func (s *RefreshService) RefreshTVSeasons(item *models.MediaItem) (bool, error) {
	if item.Kind != models.KindTV || item.Provider != "tmdb" {
		return false, nil
	}

	details, err := s.tmdb.GetTVDetails(item.ProviderID)
	if err != nil {
		return false, fmt.Errorf("tmdb fetch failed for %s: %w", item.ProviderID, err)
	}

	existing := make(map[int]bool, len(item.Seasons))
	for _, season := range item.Seasons {
		existing[season.SeasonNumber] = true
	}

	var added []models.Season
	for _, season := range details.Seasons {
		if existing[season.SeasonNumber] {
			continue
		}

		localPoster := ""
		if season.PosterPath != "" {
			name := fmt.Sprintf("tmdb_%s_s%d.jpg", item.ProviderID, season.SeasonNumber)
			localPoster, err = s.media.Download(s.tmdb.ImageURL(season.PosterPath), mediastore.FolderSeasons, name)
			if err != nil {
				log.Printf("season poster download failed for %s: %v", item.Title, err)
			}
		}

		added = append(added, models.Season{
			SeasonNumber: season.SeasonNumber,
			Name:         season.Name,
			EpisodeCount: season.EpisodeCount,
			PosterPath:   localPoster,
			AirDate:      season.AirDate,
		})
	}

	if len(added) > 0 {
		item.Seasons = append(item.Seasons, added...)
		item.NotificationPending = true
	}
	item.LastCheckedAt = timeutil.Now()

	if err := s.itemRepo.Update(item); err != nil {
		return false, fmt.Errorf("failed to save refreshed item: %w", err)
	}
	return len(added) > 0, nil
}

// RefreshRelatedTitles re-fetches related-title data for an anime/manga item
// and appends any sequel relation not already stored. last_checked_at
// advances even when the fetch fails, so a down endpoint does not cause a
// retry storm.
func (s *RefreshService) RefreshRelatedTitles(item *models.MediaItem) (bool, error) {
	if item.Provider != "mal" || (item.Kind != models.KindAnime && item.Kind != models.KindManga) {
		return false, nil
	}

	relations, err := s.anilist.FetchRelations(item.ProviderID, string(item.Kind))
	if err != nil {
		item.LastCheckedAt = timeutil.Now()
		if saveErr := s.itemRepo.Update(item); saveErr != nil {
			log.Printf("failed to save last-checked timestamp for %s: %v", item.Title, saveErr)
		}
		return false, fmt.Errorf("anilist fetch failed for %s: %w", item.ProviderID, err)
	}

	existing := make(map[int]bool, len(item.RelatedTitles))
	for _, rel := range item.RelatedTitles {
		if rel.MALID != 0 {
			existing[rel.MALID] = true
		}
	}

	var added []models.RelatedTitle
	for _, rel := range relations {
		if !strings.EqualFold(rel.Relation, "sequel") || existing[rel.MALID] {
			continue
		}

		localPoster := ""
		if rel.PosterURL != "" {
			name := fmt.Sprintf("mal_%d.jpg", rel.MALID)
			localPoster, err = s.media.Download(rel.PosterURL, mediastore.FolderRelated, name)
			if err != nil {
				log.Printf("related poster download failed for %s: %v", item.Title, err)
			}
		}

		added = append(added, models.RelatedTitle{
			MALID:      rel.MALID,
			Title:      rel.Title,
			PosterPath: localPoster,
			Relation:   "Sequel",
		})
	}

	if len(added) > 0 {
		item.RelatedTitles = append(item.RelatedTitles, added...)
		item.NotificationPending = true
	}
	item.LastCheckedAt = timeutil.Now()

	if err := s.itemRepo.Update(item); err != nil {
		return false, fmt.Errorf("failed to save refreshed item: %w", err)
	}
	return len(added) > 0, nil
}
