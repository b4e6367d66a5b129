package metadata

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	igdbDefaultBaseURL  = "https://api.igdb.com/v4"
	igdbDefaultTokenURL = "https://id.twitch.tv/oauth2/token"
)

// IGDBClient handles game metadata lookups. IGDB sits behind Twitch OAuth:
// the client ID/secret pair from the credential store is exchanged for a
// bearer token, cached until shortly before expiry.
type IGDBClient struct {
	keys       KeySource
	baseURL    string
	tokenURL   string
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewIGDBClient creates a new IGDB client
func NewIGDBClient(keys KeySource) *IGDBClient {
	return &IGDBClient{
		keys:     keys,
		baseURL:  igdbDefaultBaseURL,
		tokenURL: igdbDefaultTokenURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// SetBaseURL allows overriding the base URL (useful for testing)
func (c *IGDBClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// SetTokenURL allows overriding the OAuth token URL (useful for testing)
func (c *IGDBClient) SetTokenURL(tokenURL string) {
	c.tokenURL = tokenURL
}

// IGDBGame represents a game from IGDB search or detail queries
type IGDBGame struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Summary string `json:"summary"`
	Cover   struct {
		URL string `json:"url"`
	} `json:"cover"`
	FirstReleaseDate int64 `json:"first_release_date"`
	Screenshots      []struct {
		URL string `json:"url"`
	} `json:"screenshots"`
}

type igdbTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a valid bearer token, refreshing it when expired
func (c *IGDBClient) token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	clientID, clientSecret, err := c.keys.ProviderKeys("igdb")
	if err != nil {
		return "", fmt.Errorf("igdb credentials not configured: %w", err)
	}

	params := url.Values{}
	params.Set("client_id", clientID)
	params.Set("client_secret", clientSecret)
	params.Set("grant_type", "client_credentials")

	resp, err := c.httpClient.Post(c.tokenURL+"?"+params.Encode(), "application/json", nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch IGDB token: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return "", err
	}

	var token igdbTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	c.accessToken = token.AccessToken
	// Renew a minute early so in-flight requests never carry a stale token
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn-60) * time.Second)
	return c.accessToken, nil
}

// SearchGames searches IGDB for games by name
func (c *IGDBClient) SearchGames(query string) ([]IGDBGame, error) {
	if query == "" {
		return []IGDBGame{}, nil
	}
	body := fmt.Sprintf(`search %q; fields name, summary, cover.url, first_release_date; limit 20;`, query)
	return c.query(body)
}

// GetGameDetails fetches one game with cover and screenshots. The id is
// interpolated into the apicalypse body, so it must be numeric.
func (c *IGDBClient) GetGameDetails(igdbID string) (*IGDBGame, error) {
	id, err := strconv.Atoi(igdbID)
	if err != nil {
		return nil, fmt.Errorf("invalid IGDB ID: %q", igdbID)
	}
	body := fmt.Sprintf(`fields name, summary, cover.url, first_release_date, screenshots.url; where id = %d;`, id)
	games, err := c.query(body)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, fmt.Errorf("game not found: %s", igdbID)
	}
	return &games[0], nil
}

func (c *IGDBClient) query(body string) ([]IGDBGame, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	clientID, _, err := c.keys.ProviderKeys("igdb")
	if err != nil {
		return nil, fmt.Errorf("igdb credentials not configured: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/games", strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-ID", clientID)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query IGDB: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var games []IGDBGame
	if err := json.NewDecoder(resp.Body).Decode(&games); err != nil {
		return nil, fmt.Errorf("failed to decode IGDB response: %w", err)
	}
	return games, nil
}

// ImageURL normalizes an IGDB image URL to https with a reasonable size
func ImageURL(raw string) string {
	if raw == "" {
		return ""
	}
	u := strings.Replace(raw, "t_thumb", "t_cover_big", 1)
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}
	return u
}
