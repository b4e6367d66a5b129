package service

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"media-journal/internal/mediastore"
	"media-journal/internal/metadata"
	"media-journal/internal/models"
	"media-journal/internal/repository"
	"media-journal/internal/timeutil"
)

// ErrNotFound is returned when a referenced row does not exist
var ErrNotFound = errors.New("not found")

// ValidationError marks a client-input problem; handlers map it to 400
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

const (
	maxCastMembers     = 15
	maxFilmographySize = 20
)

// kindsByProvider limits each provider to the media kinds it can describe
var kindsByProvider = map[string][]models.MediaKind{
	"tmdb":        {models.KindMovie, models.KindTV},
	"mal":         {models.KindAnime, models.KindManga},
	"igdb":        {models.KindGame},
	"openlib":     {models.KindBook},
	"musicbrainz": {models.KindMusic},
}

// LibraryService implements the user-facing catalog operations: adding,
// editing, deleting and manually refreshing items, plus favorite-person
// toggling and reordering.
type LibraryService struct {
	itemRepo   *repository.MediaItemRepository
	personRepo *repository.PersonRepository
	tmdb       *metadata.TMDBClient
	jikan      *metadata.JikanClient
	anilist    *metadata.AniListClient
	igdb       *metadata.IGDBClient
	media      *mediastore.Store
}

// NewLibraryService creates a new LibraryService
func NewLibraryService(
	itemRepo *repository.MediaItemRepository,
	personRepo *repository.PersonRepository,
	tmdb *metadata.TMDBClient,
	jikan *metadata.JikanClient,
	anilist *metadata.AniListClient,
	igdb *metadata.IGDBClient,
	media *mediastore.Store,
) *LibraryService {
	return &LibraryService{
		itemRepo:   itemRepo,
		personRepo: personRepo,
		tmdb:       tmdb,
		jikan:      jikan,
		anilist:    anilist,
		igdb:       igdb,
		media:      media,
	}
}

// AddRequest is the payload for adding one work to the catalog
type AddRequest struct {
	Provider       string           `json:"provider"`
	ProviderID     string           `json:"provider_id"`
	Kind           models.MediaKind `json:"media_kind"`
	Title          string           `json:"title"`
	CoverURL       string           `json:"cover_url"` // remote, for providers without a detail fetch
	TotalMain      *int             `json:"total_main"`
	TotalSecondary *int             `json:"total_secondary"`
}

// AddToList adds a work to the catalog: one-time provider detail fetch,
// image downloads, then an upsert by the natural key. Adding an already
// tracked work returns the stored item unchanged.
func (s *LibraryService) AddToList(req AddRequest) (*models.MediaItem, error) {
	if err := validateAddRequest(req); err != nil {
		return nil, err
	}

	existing, err := s.itemRepo.GetByNaturalKey(req.Provider, req.ProviderID, req.Kind)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	item := &models.MediaItem{
		Title:          req.Title,
		Kind:           req.Kind,
		Provider:       req.Provider,
		ProviderID:     req.ProviderID,
		Status:         models.StatusPlanned,
		TotalMain:      req.TotalMain,
		TotalSecondary: req.TotalSecondary,
	}

	if err := s.enrich(item, req.CoverURL); err != nil {
		return nil, err
	}

	if err := s.itemRepo.Upsert(item); err != nil {
		return nil, fmt.Errorf("failed to save item: %w", err)
	}
	return item, nil
}

func validateAddRequest(req AddRequest) error {
	if req.ProviderID == "" {
		return ValidationError("provider_id is required")
	}
	allowed, ok := kindsByProvider[req.Provider]
	if !ok {
		return ValidationError(fmt.Sprintf("unknown provider: %s", req.Provider))
	}
	for _, k := range allowed {
		if k == req.Kind {
			return nil
		}
	}
	return ValidationError(fmt.Sprintf("provider %s cannot describe media kind %s", req.Provider, req.Kind))
}

// enrich replaces the provider-derived fields of an item with freshly
// fetched data. User-entered fields are never touched, so both the initial
// add and a manual refresh can share it.
func (s *LibraryService) enrich(item *models.MediaItem, remoteCover string) error {
	switch item.Provider {
	case "tmdb":
		return s.enrichTMDB(item)
	case "mal":
		return s.enrichMAL(item)
	case "igdb":
		return s.enrichIGDB(item)
	default:
		// Open Library and MusicBrainz carry their cover in the search
		// result; there is nothing further to fetch by id.
		if remoteCover != "" {
			item.CoverURL = s.localOrRemote(remoteCover, mediastore.FolderPosters, item.FileBaseName()+".jpg")
		}
		return nil
	}
}

func (s *LibraryService) enrichTMDB(item *models.MediaItem) error {
	var details *metadata.TMDBDetails
	var err error
	if item.Kind == models.KindTV {
		details, err = s.tmdb.GetTVDetails(item.ProviderID)
	} else {
		details, err = s.tmdb.GetMovieDetails(item.ProviderID)
	}
	if err != nil {
		return fmt.Errorf("tmdb fetch failed: %w", err)
	}

	item.Title = details.DisplayTitle()
	item.CoverURL = s.localOrRemote(s.tmdb.ImageURL(details.PosterPath),
		mediastore.FolderPosters, item.FileBaseName()+".jpg")
	item.BannerURL = s.localOrRemote(s.tmdb.ImageURL(details.BackdropPath),
		mediastore.FolderBanners, item.FileBaseName()+"_banner.jpg")
	item.Cast = s.downloadCast(details.Credits.Cast)

	if item.Kind == models.KindTV {
		if details.NumberOfEpisodes > 0 {
			item.TotalMain = intPtr(details.NumberOfEpisodes)
		}
		if details.NumberOfSeasons > 0 {
			item.TotalSecondary = intPtr(details.NumberOfSeasons)
		}
		item.Seasons = item.Seasons[:0]
		for _, season := range details.Seasons {
			name := fmt.Sprintf("tmdb_%s_s%d.jpg", item.ProviderID, season.SeasonNumber)
			item.Seasons = append(item.Seasons, models.Season{
				SeasonNumber: season.SeasonNumber,
				Name:         season.Name,
				EpisodeCount: season.EpisodeCount,
				PosterPath:   s.localOrRemote(s.tmdb.ImageURL(season.PosterPath), mediastore.FolderSeasons, name),
				AirDate:      season.AirDate,
			})
		}
	}
	return nil
}

func (s *LibraryService) enrichMAL(item *models.MediaItem) error {
	var entry *metadata.JikanEntry
	var err error
	if item.Kind == models.KindManga {
		entry, err = s.jikan.GetMangaDetails(item.ProviderID)
	} else {
		entry, err = s.jikan.GetAnimeDetails(item.ProviderID)
	}
	if err != nil {
		return fmt.Errorf("mal fetch failed: %w", err)
	}

	item.Title = entry.DisplayTitle()
	item.CoverURL = s.localOrRemote(entry.ImageURL(),
		mediastore.FolderPosters, item.FileBaseName()+".jpg")

	if item.Kind == models.KindManga {
		if entry.Chapters != nil {
			item.TotalMain = entry.Chapters
		}
		if entry.Volumes != nil {
			item.TotalSecondary = entry.Volumes
		}
	} else if entry.Episodes != nil {
		item.TotalMain = entry.Episodes
	}

	// Related titles come from AniList; a failure here is not fatal to the
	// add, the background loop will pick them up later.
	relations, err := s.anilist.FetchRelations(item.ProviderID, string(item.Kind))
	if err != nil {
		log.Printf("related titles fetch failed for %s: %v", item.Title, err)
		return nil
	}
	item.RelatedTitles = item.RelatedTitles[:0]
	for _, rel := range relations {
		name := fmt.Sprintf("mal_%d.jpg", rel.MALID)
		item.RelatedTitles = append(item.RelatedTitles, models.RelatedTitle{
			MALID:      rel.MALID,
			Title:      rel.Title,
			PosterPath: s.localOrRemote(rel.PosterURL, mediastore.FolderRelated, name),
			Relation:   formatRelation(rel.Relation),
		})
	}
	return nil
}

func (s *LibraryService) enrichIGDB(item *models.MediaItem) error {
	game, err := s.igdb.GetGameDetails(item.ProviderID)
	if err != nil {
		return fmt.Errorf("igdb fetch failed: %w", err)
	}

	item.Title = game.Name
	item.CoverURL = s.localOrRemote(metadata.ImageURL(game.Cover.URL),
		mediastore.FolderPosters, item.FileBaseName()+".jpg")

	item.Screenshots = item.Screenshots[:0]
	for i, shot := range game.Screenshots {
		name := fmt.Sprintf("igdb_%s_%d.jpg", item.ProviderID, i+1)
		local := s.localOrRemote(metadata.ImageURL(shot.URL), mediastore.FolderScreenshots, name)
		if local != "" {
			item.Screenshots = append(item.Screenshots, local)
		}
	}
	return nil
}

// downloadCast caches cast images locally, capped so a long credits list
// does not turn one add into hundreds of downloads
func (s *LibraryService) downloadCast(cast []metadata.TMDBCastMember) []models.CastMember {
	if len(cast) > maxCastMembers {
		cast = cast[:maxCastMembers]
	}
	members := make([]models.CastMember, 0, len(cast))
	for _, c := range cast {
		image := ""
		if c.ProfilePath != "" {
			name := fmt.Sprintf("tmdb_person_%d.jpg", c.ID)
			image = s.localOrRemote(s.tmdb.ImageURL(c.ProfilePath), mediastore.FolderCast, name)
		}
		members = append(members, models.CastMember{
			Name:       c.Name,
			Character:  c.Character,
			ImagePath:  image,
			ProviderID: fmt.Sprintf("%d", c.ID),
		})
	}
	return members
}

// localOrRemote downloads an image into the media store and falls back to
// the remote URL when the download fails
func (s *LibraryService) localOrRemote(url, folder, name string) string {
	if url == "" {
		return ""
	}
	local, err := s.media.Download(url, folder, name)
	if err != nil {
		log.Printf("image download failed for %s: %v", url, err)
		return url
	}
	return local
}

// formatRelation turns an API relation constant like SIDE_STORY into the
// stored display form "Side Story"
func formatRelation(raw string) string {
	words := strings.Split(strings.ToLower(strings.ReplaceAll(raw, "_", " ")), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// EditRequest carries the user-owned fields of an item; nil means unchanged
type EditRequest struct {
	Status            *models.WatchStatus `json:"status"`
	ProgressMain      *int                `json:"progress_main"`
	ProgressSecondary *int                `json:"progress_secondary"`
	PersonalRating    *int                `json:"personal_rating"`
	Notes             *string             `json:"notes"`
	Favorite          *bool               `json:"favorite"`
}

// EditItem mutates the user-owned fields of an item. Provider-derived data
// is untouched; a rating outside 1-100 is rejected, 0 clears it.
func (s *LibraryService) EditItem(id int64, req EditRequest) (*models.MediaItem, error) {
	item, err := s.itemRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}

	if req.Status != nil {
		if !models.ValidStatus(*req.Status) {
			return nil, ValidationError(fmt.Sprintf("invalid status: %s", *req.Status))
		}
		item.Status = *req.Status
	}
	if req.ProgressMain != nil {
		if *req.ProgressMain < 0 {
			return nil, ValidationError("progress cannot be negative")
		}
		item.ProgressMain = *req.ProgressMain
	}
	if req.ProgressSecondary != nil {
		if *req.ProgressSecondary < 0 {
			return nil, ValidationError("progress cannot be negative")
		}
		item.ProgressSecondary = req.ProgressSecondary
	}
	if req.PersonalRating != nil {
		switch {
		case *req.PersonalRating == 0:
			item.PersonalRating = nil
		case *req.PersonalRating < 1 || *req.PersonalRating > 100:
			return nil, ValidationError("rating must be between 1 and 100")
		default:
			item.PersonalRating = req.PersonalRating
		}
	}
	if req.Notes != nil {
		item.Notes = *req.Notes
	}
	if req.Favorite != nil {
		item.Favorite = *req.Favorite
		if !item.Favorite {
			item.FavoriteOrder = nil
		}
	}

	if err := s.itemRepo.Update(item); err != nil {
		return nil, fmt.Errorf("failed to save item: %w", err)
	}
	return item, nil
}

// DeleteItem removes an item and the cached media files it exclusively owns.
// Cast and related-title images are shared across items and stay.
func (s *LibraryService) DeleteItem(id int64) error {
	item, err := s.itemRepo.GetByID(id)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrNotFound
	}

	if err := s.itemRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	base := item.FileBaseName()
	for _, folder := range []string{
		mediastore.FolderPosters, mediastore.FolderBanners,
		mediastore.FolderScreenshots, mediastore.FolderSeasons,
		mediastore.FolderEpisodes,
	} {
		s.media.RemoveByBase(folder, base)
	}
	return nil
}

// RefreshItem re-fetches provider metadata for one item and replaces the
// provider-derived fields, preserving everything the user entered
func (s *LibraryService) RefreshItem(id int64) (*models.MediaItem, error) {
	item, err := s.itemRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}

	if err := s.enrich(item, ""); err != nil {
		return nil, err
	}
	item.LastCheckedAt = timeutil.Now()

	if err := s.itemRepo.Update(item); err != nil {
		return nil, fmt.Errorf("failed to save refreshed item: %w", err)
	}
	return item, nil
}

// TogglePersonRequest identifies a person by the (name, kind) toggle key
type TogglePersonRequest struct {
	Name     string            `json:"name"`
	Kind     models.PersonKind `json:"kind"`
	ImageURL string            `json:"image_url"`
	PersonID string            `json:"person_id"`
}

// ToggleFavoritePerson adds a person to the favorites strip or removes them
// when already present. Removal closes the display-order gap; addition
// appends at the end. Returns true when the person was added.
func (s *LibraryService) ToggleFavoritePerson(req TogglePersonRequest) (bool, error) {
	if req.Name == "" {
		return false, ValidationError("name is required")
	}
	if req.Kind != models.PersonActor && req.Kind != models.PersonCharacter {
		return false, ValidationError(fmt.Sprintf("invalid person kind: %s", req.Kind))
	}

	existing, err := s.personRepo.GetByNameKind(req.Name, req.Kind)
	if err != nil {
		return false, err
	}
	if existing != nil {
		if err := s.personRepo.DeleteAndResequence(existing.ID); err != nil {
			return false, fmt.Errorf("failed to remove favorite person: %w", err)
		}
		s.media.RemoveByBase(mediastore.FolderFavorites, personImageBase(existing.Name, existing.ProviderPersonID))
		return false, nil
	}

	maxOrder, err := s.personRepo.MaxDisplayOrder()
	if err != nil {
		return false, err
	}

	image := ""
	if req.ImageURL != "" {
		name := personImageBase(req.Name, req.PersonID) + ".jpg"
		image = s.localOrRemote(req.ImageURL, mediastore.FolderFavorites, name)
	}

	person := &models.FavoritePerson{
		Name:             req.Name,
		ImageURL:         image,
		Kind:             req.Kind,
		DisplayOrder:     maxOrder + 1,
		ProviderPersonID: req.PersonID,
	}

	// Actors with a TMDB person id get biography, birth date and
	// filmography on the spot; a provider failure is not fatal to the
	// toggle, RefreshFavoritePerson can fill them in later.
	if person.Kind == models.PersonActor && person.ProviderPersonID != "" {
		if err := s.enrichPerson(person); err != nil {
			log.Printf("person details fetch failed for %s: %v", person.Name, err)
		}
	}

	if err := s.personRepo.Create(person); err != nil {
		return false, fmt.Errorf("failed to save favorite person: %w", err)
	}
	return true, nil
}

// RefreshFavoritePerson re-fetches biography, birth date and filmography
// for a favorite person by their stored provider person id
func (s *LibraryService) RefreshFavoritePerson(id int64) (*models.FavoritePerson, error) {
	person, err := s.personRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if person == nil {
		return nil, ErrNotFound
	}
	if person.ProviderPersonID == "" {
		return nil, ValidationError("person has no provider id to refresh from")
	}

	if err := s.enrichPerson(person); err != nil {
		return nil, err
	}

	if err := s.personRepo.Update(person); err != nil {
		return nil, fmt.Errorf("failed to save refreshed person: %w", err)
	}
	return person, nil
}

// enrichPerson replaces the provider-derived fields of a favorite person
// with freshly fetched TMDB data. The toggle key and display order are
// never touched.
func (s *LibraryService) enrichPerson(person *models.FavoritePerson) error {
	details, err := s.tmdb.GetPersonDetails(person.ProviderPersonID)
	if err != nil {
		return fmt.Errorf("tmdb person fetch failed: %w", err)
	}

	person.Biography = details.Biography
	person.BirthDate = details.Birthday

	person.Filmography = person.Filmography[:0]
	seen := make(map[string]bool)
	for _, credit := range details.CombinedCredits.Cast {
		title := credit.DisplayTitle()
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true
		person.Filmography = append(person.Filmography, title)
		if len(person.Filmography) == maxFilmographySize {
			break
		}
	}

	if person.ImageURL == "" && details.ProfilePath != "" {
		name := personImageBase(person.Name, person.ProviderPersonID) + ".jpg"
		person.ImageURL = s.localOrRemote(s.tmdb.ImageURL(details.ProfilePath),
			mediastore.FolderFavorites, name)
	}
	return nil
}

// ReorderFavoritePersons applies a full new display order; all positions
// update or none do
func (s *LibraryService) ReorderFavoritePersons(ids []int64) error {
	if len(ids) == 0 {
		return ValidationError("order must not be empty")
	}
	return s.personRepo.Reorder(ids)
}

// ReorderFavoriteMedia applies a full new favorite order to catalog items
func (s *LibraryService) ReorderFavoriteMedia(ids []int64) error {
	if len(ids) == 0 {
		return ValidationError("order must not be empty")
	}
	return s.itemRepo.ReorderFavorites(ids)
}

// personImageBase names a cached person image after the provider person id
// when known, else a slug of the name
func personImageBase(name, personID string) string {
	if personID != "" {
		return "person_" + personID
	}
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return "person_" + b.String()
}

func intPtr(v int) *int {
	return &v
}
