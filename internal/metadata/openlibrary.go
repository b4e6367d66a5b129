package metadata

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const openLibraryDefaultBaseURL = "https://openlibrary.org"

// OpenLibraryClient handles book metadata lookups. The API is public.
type OpenLibraryClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOpenLibraryClient creates a new Open Library client
func NewOpenLibraryClient() *OpenLibraryClient {
	return &OpenLibraryClient{
		baseURL: openLibraryDefaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// SetBaseURL allows overriding the base URL (useful for testing)
func (c *OpenLibraryClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// OpenLibraryBook represents one work from an Open Library search
type OpenLibraryBook struct {
	WorkID           string   `json:"work_id"`
	Title            string   `json:"title"`
	Authors          []string `json:"authors"`
	FirstPublishYear int      `json:"first_publish_year"`
	CoverURL         string   `json:"cover_url"`
	PageCount        int      `json:"page_count"`
}

type openLibrarySearchResponse struct {
	Docs []struct {
		Key              string   `json:"key"`
		Title            string   `json:"title"`
		AuthorName       []string `json:"author_name"`
		FirstPublishYear int      `json:"first_publish_year"`
		CoverI           int      `json:"cover_i"`
		NumberOfPages    int      `json:"number_of_pages_median"`
	} `json:"docs"`
}

// SearchBooks searches Open Library works by title
func (c *OpenLibraryClient) SearchBooks(query string) ([]OpenLibraryBook, error) {
	if query == "" {
		return []OpenLibraryBook{}, nil
	}

	endpoint := fmt.Sprintf("%s/search.json?q=%s&limit=20", c.baseURL, url.QueryEscape(query))

	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to search Open Library: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var result openLibrarySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	books := make([]OpenLibraryBook, 0, len(result.Docs))
	for _, doc := range result.Docs {
		book := OpenLibraryBook{
			WorkID:           strings.TrimPrefix(doc.Key, "/works/"),
			Title:            doc.Title,
			Authors:          doc.AuthorName,
			FirstPublishYear: doc.FirstPublishYear,
			PageCount:        doc.NumberOfPages,
		}
		if doc.CoverI > 0 {
			book.CoverURL = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-M.jpg", doc.CoverI)
		}
		books = append(books, book)
	}
	return books, nil
}
