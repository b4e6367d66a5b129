package mediastore

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Well-known subfolders under the media root. Export and import walk
// exactly this set.
const (
	FolderPosters     = "posters"
	FolderBanners     = "banners"
	FolderCast        = "cast"
	FolderRelated     = "related"
	FolderScreenshots = "screenshots"
	FolderSeasons     = "seasons"
	FolderEpisodes    = "episodes"
	FolderFavorites   = "favorites"
)

// Folders lists every tracked media subfolder
var Folders = []string{
	FolderPosters, FolderBanners, FolderCast, FolderRelated,
	FolderScreenshots, FolderSeasons, FolderEpisodes, FolderFavorites,
}

var allowedImageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
}

// AllowedImageExt reports whether ext (including the dot) is an accepted
// image upload extension
func AllowedImageExt(ext string) bool {
	return allowedImageExts[strings.ToLower(ext)]
}

// Store is the media blob store: image files under a root path, referenced
// from catalog rows by /media/... URLs.
type Store struct {
	root       string
	httpClient *http.Client
}

// NewStore creates a Store rooted at root
func NewStore(root string) *Store {
	return &Store{
		root: root,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Root returns the filesystem root of the store
func (s *Store) Root() string {
	return s.root
}

// URLFor converts a store-relative path into the URL stored on catalog rows
func (s *Store) URLFor(relPath string) string {
	return "/media/" + filepath.ToSlash(relPath)
}

// Download fetches url and saves it under folder/name, returning the local
// media URL. A fetch failure returns an empty URL with the error so callers
// can log and keep the remote reference instead.
func (s *Store) Download(url, folder, name string) (string, error) {
	if url == "" {
		return "", nil
	}

	relPath := filepath.Join(folder, name)
	localPath := filepath.Join(s.root, relPath)
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create media folder: %w", err)
	}

	resp, err := s.httpClient.Get(url)
	if err != nil {
		return "", fmt.Errorf("image download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image download failed: HTTP %d", resp.StatusCode)
	}

	out, err := os.Create(localPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", err
	}

	return s.URLFor(relPath), nil
}

// SaveUpload stores an uploaded image under folder using a collision-resistant
// name: base plus a millisecond timestamp. Older files for the same base are
// removed so a replaced cover does not accumulate stale copies; a concurrent
// writer racing this call gets its own unique filename instead of a corrupt
// shared one.
func (s *Store) SaveUpload(folder, base, ext string, r io.Reader) (string, error) {
	if !AllowedImageExt(ext) {
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}

	dir := filepath.Join(s.root, folder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create media folder: %w", err)
	}

	s.RemoveByBase(folder, base)

	name := fmt.Sprintf("%s_%d%s", base, time.Now().UnixMilli(), strings.ToLower(ext))
	localPath := filepath.Join(dir, name)

	out, err := os.Create(localPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return "", err
	}

	return s.URLFor(filepath.Join(folder, name)), nil
}

// RemoveByBase deletes every file in folder whose name (without extension)
// is base or base plus a timestamp suffix. Used when replacing an image and
// when deleting an item that exclusively owns its cached files.
func (s *Store) RemoveByBase(folder, base string) {
	dir := filepath.Join(s.root, folder)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if stem == base || strings.HasPrefix(stem, base+"_") {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
}
