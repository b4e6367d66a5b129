package metadata

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	tmdbDefaultBaseURL  = "https://api.themoviedb.org/3"
	tmdbDefaultImageURL = "https://image.tmdb.org/t/p/w300"
	tmdbRequestInterval = 100 * time.Millisecond
)

// TMDBClient handles all interactions with the TMDB API (movies and TV)
type TMDBClient struct {
	keys         KeySource
	baseURL      string
	imageBaseURL string
	httpClient   *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// NewTMDBClient creates a new TMDB API client
func NewTMDBClient(keys KeySource) *TMDBClient {
	return &TMDBClient{
		keys:         keys,
		baseURL:      tmdbDefaultBaseURL,
		imageBaseURL: tmdbDefaultImageURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// SetBaseURL allows overriding the base URL (useful for testing)
func (c *TMDBClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// SetImageBaseURL allows overriding the image base URL (useful for testing)
func (c *TMDBClient) SetImageBaseURL(imageBaseURL string) {
	c.imageBaseURL = imageBaseURL
}

// TMDBSearchResult represents a single movie or TV show from search results
type TMDBSearchResult struct {
	ID           int    `json:"id"`
	Name         string `json:"name,omitempty"`
	Title        string `json:"title,omitempty"`
	PosterPath   string `json:"poster_path"`
	FirstAirDate string `json:"first_air_date,omitempty"`
	ReleaseDate  string `json:"release_date,omitempty"`
	Overview     string `json:"overview"`
}

// TMDBSeason represents one season entry of a TV show
type TMDBSeason struct {
	SeasonNumber int    `json:"season_number"`
	Name         string `json:"name"`
	EpisodeCount int    `json:"episode_count"`
	PosterPath   string `json:"poster_path"`
	AirDate      string `json:"air_date"`
}

// TMDBCastMember represents one credited cast member
type TMDBCastMember struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	ProfilePath string `json:"profile_path"`
}

// TMDBDetails represents detailed movie or TV show information
type TMDBDetails struct {
	ID               int          `json:"id"`
	Name             string       `json:"name,omitempty"`
	Title            string       `json:"title,omitempty"`
	Status           string       `json:"status"`
	PosterPath       string       `json:"poster_path"`
	BackdropPath     string       `json:"backdrop_path"`
	Overview         string       `json:"overview"`
	NumberOfSeasons  int          `json:"number_of_seasons"`
	NumberOfEpisodes int          `json:"number_of_episodes"`
	Runtime          int          `json:"runtime"`
	Seasons          []TMDBSeason `json:"seasons"`
	Credits          struct {
		Cast []TMDBCastMember `json:"cast"`
	} `json:"credits"`
}

// DisplayTitle returns the TV name or movie title, whichever is set
func (d *TMDBDetails) DisplayTitle() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Title
}

// TMDBPerson represents an actor from person search
type TMDBPerson struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ProfilePath string `json:"profile_path"`
}

// TMDBPersonCredit is one entry of a person's combined movie/TV credits
type TMDBPersonCredit struct {
	Title      string  `json:"title,omitempty"`
	Name       string  `json:"name,omitempty"`
	Popularity float64 `json:"popularity"`
}

// DisplayTitle returns the movie title or TV name, whichever is set
func (c *TMDBPersonCredit) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Name
}

// TMDBPersonDetails represents detailed person information, including
// combined movie and TV credits
type TMDBPersonDetails struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Biography       string `json:"biography"`
	Birthday        string `json:"birthday"`
	ProfilePath     string `json:"profile_path"`
	CombinedCredits struct {
		Cast []TMDBPersonCredit `json:"cast"`
	} `json:"combined_credits"`
}

type tmdbSearchResponse struct {
	Results []TMDBSearchResult `json:"results"`
}

type tmdbPersonResponse struct {
	Results []TMDBPerson `json:"results"`
}

// ImageURL builds the full image URL for a TMDB image path
func (c *TMDBClient) ImageURL(path string) string {
	if path == "" {
		return ""
	}
	return c.imageBaseURL + path
}

func (c *TMDBClient) apiKey() (string, error) {
	key, _, err := c.keys.ProviderKeys("tmdb")
	if err != nil {
		return "", fmt.Errorf("tmdb credentials not configured: %w", err)
	}
	return key, nil
}

// SearchTV searches for TV shows by query string
func (c *TMDBClient) SearchTV(query string) ([]TMDBSearchResult, error) {
	return c.search("/search/tv", query)
}

// SearchMovie searches for movies by query string
func (c *TMDBClient) SearchMovie(query string) ([]TMDBSearchResult, error) {
	return c.search("/search/movie", query)
}

func (c *TMDBClient) search(path, query string) ([]TMDBSearchResult, error) {
	if query == "" {
		return []TMDBSearchResult{}, nil
	}
	key, err := c.apiKey()
	if err != nil {
		return nil, err
	}

	c.rateLimit()

	endpoint := fmt.Sprintf("%s%s?api_key=%s&query=%s", c.baseURL, path, key, url.QueryEscape(query))

	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to search TMDB: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var result tmdbSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return result.Results, nil
}

// SearchPerson searches for actors by name
func (c *TMDBClient) SearchPerson(query string) ([]TMDBPerson, error) {
	if query == "" {
		return []TMDBPerson{}, nil
	}
	key, err := c.apiKey()
	if err != nil {
		return nil, err
	}

	c.rateLimit()

	endpoint := fmt.Sprintf("%s/search/person?api_key=%s&query=%s", c.baseURL, key, url.QueryEscape(query))

	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to search person: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var result tmdbPersonResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode person response: %w", err)
	}
	return result.Results, nil
}

// GetPersonDetails fetches biography, birthday and combined credits for
// a person by TMDB id
func (c *TMDBClient) GetPersonDetails(personID string) (*TMDBPersonDetails, error) {
	key, err := c.apiKey()
	if err != nil {
		return nil, err
	}

	c.rateLimit()

	endpoint := fmt.Sprintf("%s/person/%s?api_key=%s&append_to_response=combined_credits",
		c.baseURL, url.PathEscape(personID), key)

	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get person details: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var details TMDBPersonDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("failed to decode person details response: %w", err)
	}
	return &details, nil
}

// GetTVDetails fetches detailed information for a TV show, including its
// season list and cast credits
func (c *TMDBClient) GetTVDetails(tmdbID string) (*TMDBDetails, error) {
	return c.details("/tv/" + url.PathEscape(tmdbID))
}

// GetMovieDetails fetches detailed information for a movie
func (c *TMDBClient) GetMovieDetails(tmdbID string) (*TMDBDetails, error) {
	return c.details("/movie/" + url.PathEscape(tmdbID))
}

func (c *TMDBClient) details(path string) (*TMDBDetails, error) {
	key, err := c.apiKey()
	if err != nil {
		return nil, err
	}

	c.rateLimit()

	endpoint := fmt.Sprintf("%s%s?api_key=%s&append_to_response=credits", c.baseURL, path, key)

	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get TMDB details: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var details TMDBDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("failed to decode details response: %w", err)
	}
	return &details, nil
}

// rateLimit ensures requests are spaced out to avoid hitting API limits.
// The client is shared between the scheduler goroutine and HTTP handlers,
// so the check-and-set runs under the mutex.
func (c *TMDBClient) rateLimit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.lastRequest)
	if elapsed < tmdbRequestInterval {
		time.Sleep(tmdbRequestInterval - elapsed)
	}
	c.lastRequest = time.Now()
}
