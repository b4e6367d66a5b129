package metadata

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const musicBrainzDefaultBaseURL = "https://musicbrainz.org/ws/2"

// MusicBrainzClient handles music metadata lookups. MusicBrainz enforces a
// 1 request/second policy and requires an identifying User-Agent.
type MusicBrainzClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    chan time.Time
}

// NewMusicBrainzClient creates a new MusicBrainz client
func NewMusicBrainzClient() *MusicBrainzClient {
	c := &MusicBrainzClient{
		baseURL:   musicBrainzDefaultBaseURL,
		userAgent: "media-journal/1.0",
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter: make(chan time.Time, 1),
	}
	c.limiter <- time.Now().Add(-time.Second) // allow immediate first request
	return c
}

// SetBaseURL allows overriding the base URL (useful for testing)
func (c *MusicBrainzClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// waitRateLimit enforces the 1 request/second policy
func (c *MusicBrainzClient) waitRateLimit() {
	last := <-c.limiter
	elapsed := time.Since(last)
	if elapsed < time.Second {
		time.Sleep(time.Second - elapsed)
	}
	c.limiter <- time.Now()
}

// MusicBrainzRelease represents one release group (album) from a search
type MusicBrainzRelease struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Artist           string `json:"artist"`
	FirstReleaseDate string `json:"first_release_date"`
	PrimaryType      string `json:"primary_type"`
}

type musicBrainzSearchResponse struct {
	ReleaseGroups []struct {
		ID               string `json:"id"`
		Title            string `json:"title"`
		FirstReleaseDate string `json:"first-release-date"`
		PrimaryType      string `json:"primary-type"`
		ArtistCredit     []struct {
			Name string `json:"name"`
		} `json:"artist-credit"`
	} `json:"release-groups"`
}

// SearchReleases searches release groups (albums) by title
func (c *MusicBrainzClient) SearchReleases(query string) ([]MusicBrainzRelease, error) {
	if query == "" {
		return []MusicBrainzRelease{}, nil
	}

	endpoint := fmt.Sprintf("%s/release-group/?query=%s&fmt=json&limit=20",
		c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	c.waitRateLimit()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search MusicBrainz: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, fmt.Errorf("MusicBrainz rate limited")
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var result musicBrainzSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	releases := make([]MusicBrainzRelease, 0, len(result.ReleaseGroups))
	for _, rg := range result.ReleaseGroups {
		release := MusicBrainzRelease{
			ID:               rg.ID,
			Title:            rg.Title,
			FirstReleaseDate: rg.FirstReleaseDate,
			PrimaryType:      rg.PrimaryType,
		}
		if len(rg.ArtistCredit) > 0 {
			release.Artist = rg.ArtistCredit[0].Name
		}
		releases = append(releases, release)
	}
	return releases, nil
}
