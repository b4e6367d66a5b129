package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const anilistDefaultBaseURL = "https://graphql.anilist.co"

// AniListClient fetches anime/manga relation data from the AniList GraphQL
// API. Items are keyed by their MAL id, which AniList can resolve directly.
type AniListClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAniListClient creates a new AniList client. The API is public, so no
// credentials are required.
func NewAniListClient() *AniListClient {
	return &AniListClient{
		baseURL: anilistDefaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// SetBaseURL allows overriding the base URL (useful for testing)
func (c *AniListClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// AniListRelation is one related work edge
type AniListRelation struct {
	MALID     int    `json:"mal_id"`
	Title     string `json:"title"`
	PosterURL string `json:"poster_url"`
	Relation  string `json:"relation"` // SEQUEL, PREQUEL, SIDE_STORY, ...
}

const anilistRelationsQuery = `
query ($malId: Int, $type: MediaType) {
  Media(idMal: $malId, type: $type) {
    relations {
      edges {
        relationType
        node {
          idMal
          title {
            english
            romaji
          }
          coverImage {
            large
          }
        }
      }
    }
  }
}`

type anilistGraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type anilistRelationsResponse struct {
	Data struct {
		Media struct {
			Relations struct {
				Edges []struct {
					RelationType string `json:"relationType"`
					Node         struct {
						IDMal int `json:"idMal"`
						Title struct {
							English string `json:"english"`
							Romaji  string `json:"romaji"`
						} `json:"title"`
						CoverImage struct {
							Large string `json:"large"`
						} `json:"coverImage"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"relations"`
		} `json:"Media"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchRelations returns the related titles of an anime or manga identified
// by its MAL id. kind must be "anime" or "manga".
func (c *AniListClient) FetchRelations(malID string, kind string) ([]AniListRelation, error) {
	id, err := strconv.Atoi(malID)
	if err != nil {
		return nil, fmt.Errorf("invalid MAL ID: %q", malID)
	}

	mediaType := "ANIME"
	if strings.EqualFold(kind, "manga") {
		mediaType = "MANGA"
	}

	reqBody, err := json.Marshal(anilistGraphQLRequest{
		Query: anilistRelationsQuery,
		Variables: map[string]any{
			"malId": id,
			"type":  mediaType,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode GraphQL request: %w", err)
	}

	resp, err := c.httpClient.Post(c.baseURL, "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to query AniList: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var result anilistRelationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode AniList response: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("AniList error: %s", result.Errors[0].Message)
	}

	var relations []AniListRelation
	for _, edge := range result.Data.Media.Relations.Edges {
		if edge.Node.IDMal == 0 {
			continue // entries without a MAL id cannot be keyed locally
		}
		title := edge.Node.Title.English
		if title == "" {
			title = edge.Node.Title.Romaji
		}
		relations = append(relations, AniListRelation{
			MALID:     edge.Node.IDMal,
			Title:     title,
			PosterURL: edge.Node.CoverImage.Large,
			Relation:  edge.RelationType,
		})
	}
	return relations, nil
}
