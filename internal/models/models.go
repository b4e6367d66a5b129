package models

import (
	"strings"
	"time"
)

// MediaKind represents the kind of tracked work
type MediaKind string

const (
	KindMovie MediaKind = "movie"
	KindTV    MediaKind = "tv"
	KindAnime MediaKind = "anime"
	KindManga MediaKind = "manga"
	KindGame  MediaKind = "game"
	KindBook  MediaKind = "book"
	KindMusic MediaKind = "music"
)

// ValidKind reports whether k is one of the supported media kinds
func ValidKind(k MediaKind) bool {
	switch k {
	case KindMovie, KindTV, KindAnime, KindManga, KindGame, KindBook, KindMusic:
		return true
	}
	return false
}

// WatchStatus represents the personal tracking status of an item
type WatchStatus string

const (
	StatusOngoing   WatchStatus = "ongoing"
	StatusCompleted WatchStatus = "completed"
	StatusPlanned   WatchStatus = "planned"
	StatusDropped   WatchStatus = "dropped"
	StatusOnHold    WatchStatus = "on_hold"
)

// ValidStatus reports whether s is one of the supported statuses
func ValidStatus(s WatchStatus) bool {
	switch s {
	case StatusOngoing, StatusCompleted, StatusPlanned, StatusDropped, StatusOnHold:
		return true
	}
	return false
}

// Season is one season of a TV series as fetched from the provider
type Season struct {
	SeasonNumber int    `json:"season_number"`
	Name         string `json:"name"`
	EpisodeCount int    `json:"episode_count"`
	PosterPath   string `json:"poster_path"` // local media URL once downloaded
	AirDate      string `json:"air_date"`    // YYYY-MM-DD
}

// EpisodeRef is one episode entry stored on a TV/anime item
type EpisodeRef struct {
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	Title         string `json:"title"`
	StillPath     string `json:"still_path"`
	AirDate       string `json:"air_date"`
}

// RelatedTitle is a related work (sequel, prequel, side story)
type RelatedTitle struct {
	MALID      int    `json:"mal_id"`
	Title      string `json:"title"`
	PosterPath string `json:"poster_path"`
	Relation   string `json:"relation"` // e.g. "Sequel", "Prequel"
}

// CastMember is one actor or voice actor credited on an item
type CastMember struct {
	Name       string `json:"name"`
	Character  string `json:"character"`
	ImagePath  string `json:"image_path"`
	ProviderID string `json:"provider_id"`
}

// MediaLink is an extra media reference (trailer, music video)
type MediaLink struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Position int    `json:"position"`
}

// MediaItem represents one tracked work in the personal catalog.
// The triple (Provider, ProviderID, Kind) is the natural key: no two
// stored items may share it, and imports merge on it.
type MediaItem struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Kind       MediaKind `json:"media_kind"`
	Provider   string    `json:"provider"`    // tmdb, mal, igdb, openlib, musicbrainz
	ProviderID string    `json:"provider_id"` // opaque id in the provider's namespace

	Status            WatchStatus `json:"status"`
	ProgressMain      int         `json:"progress_main"`      // episodes / chapters / pages / hours
	ProgressSecondary *int        `json:"progress_secondary"` // seasons / volumes
	TotalMain         *int        `json:"total_main"`
	TotalSecondary    *int        `json:"total_secondary"`
	PersonalRating    *int        `json:"personal_rating"` // 1-100 canonical scale
	Favorite          bool        `json:"favorite"`
	FavoriteOrder     *int        `json:"favorite_order"`

	CoverURL  string `json:"cover_url"`
	BannerURL string `json:"banner_url"`
	Notes     string `json:"notes"`

	NotificationPending bool      `json:"notification_pending"`
	AddedAt             time.Time `json:"added_at"`
	LastCheckedAt       time.Time `json:"last_checked_at"`

	// Provider-derived nested data, stored as JSON columns
	Seasons       []Season       `json:"seasons"`
	Episodes      []EpisodeRef   `json:"episodes"`
	RelatedTitles []RelatedTitle `json:"related_titles"`
	Cast          []CastMember   `json:"cast"`
	Screenshots   []string       `json:"screenshots"`
	MediaLinks    []MediaLink    `json:"media_links"`
}

// FileBaseName returns the stem used for this item's cached image files.
// Deleting an item removes every cached file sharing this stem.
func (m *MediaItem) FileBaseName() string {
	return m.Provider + "_" + m.ProviderID
}

// HasSequel reports whether the stored related titles already include a
// relation tagged "sequel" (case-insensitive). Items with a known sequel
// are skipped by the serial refresh loop.
func (m *MediaItem) HasSequel() bool {
	for _, rel := range m.RelatedTitles {
		if strings.EqualFold(rel.Relation, "sequel") {
			return true
		}
	}
	return false
}

// PersonKind distinguishes favorited actors from characters
type PersonKind string

const (
	PersonActor     PersonKind = "actor"
	PersonCharacter PersonKind = "character"
)

// FavoritePerson represents a favorited actor or character.
// Toggle semantics key on (Name, Kind); provider refresh keys on ProviderPersonID.
type FavoritePerson struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	ImageURL         string     `json:"image_url"`
	Kind             PersonKind `json:"kind"`
	DisplayOrder     int        `json:"display_order"`
	ProviderPersonID string     `json:"provider_person_id"`
	Biography        string     `json:"biography"`
	BirthDate        string     `json:"birth_date"`
	Filmography      []string   `json:"filmography"`
	CreatedAt        time.Time  `json:"created_at"`
}

// AppSettings is the singleton process-wide configuration row.
// Exactly one row is expected; zero rows are tolerated by creating a default.
type AppSettings struct {
	ID             int64  `json:"id"`
	RatingMode     string `json:"rating_mode"` // faces, stars, hundred
	ThemeMode      string `json:"theme_mode"`
	Username       string `json:"username"`
	ShowNav        bool   `json:"show_nav"`
	EnableDiscover bool   `json:"enable_discover"`
}

// DefaultSettings returns the settings row created on first access
func DefaultSettings() *AppSettings {
	return &AppSettings{
		RatingMode:     "faces",
		ThemeMode:      "dark",
		ShowNav:        true,
		EnableDiscover: true,
	}
}

// ProviderCredential holds up to two opaque credential strings for one
// external provider, keyed by provider name
type ProviderCredential struct {
	ID       int64  `json:"id"`
	Provider string `json:"provider"` // unique
	Key1     string `json:"key_1"`    // API key or client ID
	Key2     string `json:"key_2"`    // secret or optional extra
}
