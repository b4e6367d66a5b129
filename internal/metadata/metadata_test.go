package metadata

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type fakeKeys struct{}

func (fakeKeys) ProviderKeys(name string) (string, string, error) {
	return "key", "secret", nil
}

func TestCheckResponseWrapsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()

	err = checkResponse(resp)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Wrong status code: %d", apiErr.StatusCode)
	}
}

func TestJikanSearchParsesEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/anime" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": [
			{"mal_id": 19, "title": "Monster", "title_english": "Monster", "episodes": 74,
			 "images": {"jpg": {"large_image_url": "https://cdn.example/19.jpg"}}}
		]}`)
	}))
	t.Cleanup(srv.Close)

	client := NewJikanClient()
	client.SetBaseURL(srv.URL)

	entries, err := client.SearchAnime("monster")
	if err != nil {
		t.Fatalf("SearchAnime failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.MALID != 19 || e.DisplayTitle() != "Monster" {
		t.Errorf("Entry parsed wrong: %+v", e)
	}
	if e.Episodes == nil || *e.Episodes != 74 {
		t.Errorf("Episode count parsed wrong: %v", e.Episodes)
	}
	if e.ImageURL() != "https://cdn.example/19.jpg" {
		t.Errorf("Image URL parsed wrong: %s", e.ImageURL())
	}
}

func TestMusicBrainzSearchFlattensArtistCredit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Error("User-Agent header missing")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"release-groups": [
			{"id": "abc", "title": "OK Computer", "first-release-date": "1997-05-21",
			 "primary-type": "Album", "artist-credit": [{"name": "Radiohead"}]}
		]}`)
	}))
	t.Cleanup(srv.Close)

	client := NewMusicBrainzClient()
	client.SetBaseURL(srv.URL)

	releases, err := client.SearchReleases("ok computer")
	if err != nil {
		t.Fatalf("SearchReleases failed: %v", err)
	}
	if len(releases) != 1 {
		t.Fatalf("Expected 1 release, got %d", len(releases))
	}
	if releases[0].Artist != "Radiohead" || releases[0].PrimaryType != "Album" {
		t.Errorf("Release parsed wrong: %+v", releases[0])
	}
}

// The Twitch token is fetched once and reused until it expires
func TestIGDBTokenCaching(t *testing.T) {
	tokenCalls := 0
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "tok", "expires_in": 3600}`)
	}))
	t.Cleanup(tokenSrv.Close)

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Bearer token missing, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id": 1, "name": "Outer Wilds"}]`)
	}))
	t.Cleanup(apiSrv.Close)

	client := NewIGDBClient(fakeKeys{})
	client.SetTokenURL(tokenSrv.URL)
	client.SetBaseURL(apiSrv.URL)

	for i := 0; i < 3; i++ {
		games, err := client.SearchGames("outer wilds")
		if err != nil {
			t.Fatalf("SearchGames failed: %v", err)
		}
		if len(games) != 1 || games[0].Name != "Outer Wilds" {
			t.Errorf("Games parsed wrong: %+v", games)
		}
	}
	if tokenCalls != 1 {
		t.Errorf("Token fetched %d times, expected 1", tokenCalls)
	}
}

func TestTMDBPersonDetailsParsesCredits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/person/23532" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("append_to_response") != "combined_credits" {
			t.Error("combined_credits not requested")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": 23532, "name": "Adam Scott",
			"biography": "Adam Scott is an American actor.",
			"birthday": "1973-04-03", "profile_path": "/adam.jpg",
			"combined_credits": {"cast": [
				{"title": "Step Brothers"},
				{"name": "Severance"}
			]}}`)
	}))
	t.Cleanup(srv.Close)

	client := NewTMDBClient(fakeKeys{})
	client.SetBaseURL(srv.URL)

	details, err := client.GetPersonDetails("23532")
	if err != nil {
		t.Fatalf("GetPersonDetails failed: %v", err)
	}
	if details.Biography == "" || details.Birthday != "1973-04-03" {
		t.Errorf("Person fields parsed wrong: %+v", details)
	}
	credits := details.CombinedCredits.Cast
	if len(credits) != 2 {
		t.Fatalf("Expected 2 credits, got %d", len(credits))
	}
	if credits[0].DisplayTitle() != "Step Brothers" || credits[1].DisplayTitle() != "Severance" {
		t.Errorf("Credit titles parsed wrong: %+v", credits)
	}
}

// The detail id is interpolated into the apicalypse body, so anything
// non-numeric must be rejected before a request goes out
func TestIGDBGameDetailsRejectsNonNumericID(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	t.Cleanup(srv.Close)

	client := NewIGDBClient(fakeKeys{})
	client.SetTokenURL(srv.URL)
	client.SetBaseURL(srv.URL)

	if _, err := client.GetGameDetails("1; fields *"); err == nil {
		t.Fatal("Non-numeric id accepted")
	}
	if requests != 0 {
		t.Errorf("Request sent for invalid id: %d", requests)
	}
}

// The TMDB client is shared between the background loops and request
// handlers, so the pacing state must tolerate concurrent callers
func TestTMDBSearchConcurrentCallers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results": []}`)
	}))
	t.Cleanup(srv.Close)

	client := NewTMDBClient(fakeKeys{})
	client.SetBaseURL(srv.URL)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.SearchMovie("dune"); err != nil {
				t.Errorf("SearchMovie failed: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestIGDBImageURLNormalization(t *testing.T) {
	got := ImageURL("//images.igdb.com/igdb/image/upload/t_thumb/co1r7f.jpg")
	want := "https://images.igdb.com/igdb/image/upload/t_cover_big/co1r7f.jpg"
	if got != want {
		t.Errorf("ImageURL = %s, want %s", got, want)
	}
	if ImageURL("") != "" {
		t.Error("Empty input should stay empty")
	}
}
