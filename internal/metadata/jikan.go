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
	jikanDefaultBaseURL  = "https://api.jikan.moe/v4"
	jikanRequestInterval = 400 * time.Millisecond
)

// JikanClient handles anime/manga metadata lookups through the Jikan REST
// mirror of MyAnimeList. The API is public but rate limited.
type JikanClient struct {
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// NewJikanClient creates a new Jikan client
func NewJikanClient() *JikanClient {
	return &JikanClient{
		baseURL: jikanDefaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// SetBaseURL allows overriding the base URL (useful for testing)
func (c *JikanClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// JikanEntry represents one anime or manga from search or detail queries
type JikanEntry struct {
	MALID        int    `json:"mal_id"`
	Title        string `json:"title"`
	TitleEnglish string `json:"title_english"`
	Synopsis     string `json:"synopsis"`
	Episodes     *int   `json:"episodes"`
	Chapters     *int   `json:"chapters"`
	Volumes      *int   `json:"volumes"`
	Images       struct {
		JPG struct {
			LargeImageURL string `json:"large_image_url"`
		} `json:"jpg"`
	} `json:"images"`
}

// DisplayTitle returns the English title when MAL has one
func (e *JikanEntry) DisplayTitle() string {
	if e.TitleEnglish != "" {
		return e.TitleEnglish
	}
	return e.Title
}

// ImageURL returns the large cover image URL
func (e *JikanEntry) ImageURL() string {
	return e.Images.JPG.LargeImageURL
}

type jikanSearchResponse struct {
	Data []JikanEntry `json:"data"`
}

type jikanDetailResponse struct {
	Data JikanEntry `json:"data"`
}

// SearchAnime searches MAL anime by title
func (c *JikanClient) SearchAnime(query string) ([]JikanEntry, error) {
	return c.search("/anime", query)
}

// SearchManga searches MAL manga by title
func (c *JikanClient) SearchManga(query string) ([]JikanEntry, error) {
	return c.search("/manga", query)
}

func (c *JikanClient) search(path, query string) ([]JikanEntry, error) {
	if query == "" {
		return []JikanEntry{}, nil
	}

	c.rateLimit()

	endpoint := fmt.Sprintf("%s%s?q=%s&limit=20", c.baseURL, path, url.QueryEscape(query))

	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to search MAL: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var result jikanSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return result.Data, nil
}

// GetAnimeDetails fetches one anime by MAL id
func (c *JikanClient) GetAnimeDetails(malID string) (*JikanEntry, error) {
	return c.details("/anime/" + url.PathEscape(malID))
}

// GetMangaDetails fetches one manga by MAL id
func (c *JikanClient) GetMangaDetails(malID string) (*JikanEntry, error) {
	return c.details("/manga/" + url.PathEscape(malID))
}

func (c *JikanClient) details(path string) (*JikanEntry, error) {
	c.rateLimit()

	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("failed to get MAL details: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var result jikanDetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode details response: %w", err)
	}
	return &result.Data, nil
}

// rateLimit ensures requests are spaced out to avoid hitting API limits.
// Shared between the scheduler goroutine and HTTP handlers, so the
// check-and-set runs under the mutex.
func (c *JikanClient) rateLimit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.lastRequest)
	if elapsed < jikanRequestInterval {
		time.Sleep(jikanRequestInterval - elapsed)
	}
	c.lastRequest = time.Now()
}
