package service

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"media-journal/internal/mediastore"
	"media-journal/internal/models"
	"media-journal/internal/repository"
)

type backupFixture struct {
	itemRepo     *repository.MediaItemRepository
	personRepo   *repository.PersonRepository
	settingsRepo *repository.SettingsRepository
	credRepo     *repository.CredentialRepository
	mgr          *BackupManager
	mediaRoot    string
	tmpDir       string
}

func newBackupFixture(t *testing.T) *backupFixture {
	t.Helper()
	db := newServiceTestDB(t)

	f := &backupFixture{
		itemRepo:     repository.NewMediaItemRepository(db),
		personRepo:   repository.NewPersonRepository(db),
		settingsRepo: repository.NewSettingsRepository(db),
		credRepo:     repository.NewCredentialRepository(db),
		mediaRoot:    t.TempDir(),
		tmpDir:       t.TempDir(),
	}
	f.mgr = NewBackupManager(f.itemRepo, f.personRepo, f.settingsRepo, f.credRepo,
		mediastore.NewStore(f.mediaRoot))
	f.mgr.SetTempDir(f.tmpDir)
	return f
}

func (f *backupFixture) writeMediaFile(t *testing.T, folder, name, content string) {
	t.Helper()
	dir := filepath.Join(f.mediaRoot, folder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func (f *backupFixture) runExport(t *testing.T) *BackupTask {
	t.Helper()
	task := newBackupTask(TaskExport, "")
	f.mgr.register(task)
	f.mgr.run(task, f.mgr.doExport)
	return task
}

func (f *backupFixture) runImport(t *testing.T, archivePath string) *BackupTask {
	t.Helper()
	// The manager removes the upload when done, so import a copy
	upload := filepath.Join(t.TempDir(), "upload.zip")
	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if err := os.WriteFile(upload, data, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	task := newBackupTask(TaskImport, upload)
	f.mgr.register(task)
	f.mgr.run(task, f.mgr.doImport)
	return task
}

func seedCatalog(t *testing.T, f *backupFixture) {
	t.Helper()
	items := []*models.MediaItem{
		{Title: "Severance", Kind: models.KindTV, Provider: "tmdb", ProviderID: "95396",
			Status: models.StatusOngoing,
			Seasons: []models.Season{{SeasonNumber: 1, Name: "Season 1", EpisodeCount: 9}}},
		{Title: "Monster", Kind: models.KindAnime, Provider: "mal", ProviderID: "19",
			Status: models.StatusCompleted,
			RelatedTitles: []models.RelatedTitle{{MALID: 100, Title: "X", Relation: "Sequel"}}},
	}
	for _, item := range items {
		if err := f.itemRepo.Create(item); err != nil {
			t.Fatalf("Create item failed: %v", err)
		}
	}

	person := &models.FavoritePerson{Name: "Adam Scott", Kind: models.PersonActor, DisplayOrder: 1}
	if err := f.personRepo.Create(person); err != nil {
		t.Fatalf("Create person failed: %v", err)
	}

	if err := f.credRepo.Upsert(&models.ProviderCredential{Provider: "tmdb", Key1: "abc"}); err != nil {
		t.Fatalf("Upsert credential failed: %v", err)
	}

	settings, err := f.settingsRepo.Get()
	if err != nil {
		t.Fatalf("Get settings failed: %v", err)
	}
	settings.RatingMode = "stars"
	if err := f.settingsRepo.Update(settings); err != nil {
		t.Fatalf("Update settings failed: %v", err)
	}
}

// A full export imported into an empty instance reproduces every row and
// every media file
func TestBackupRoundTrip(t *testing.T) {
	src := newBackupFixture(t)
	seedCatalog(t, src)
	src.writeMediaFile(t, mediastore.FolderPosters, "tmdb_95396.jpg", "poster-bytes")
	src.writeMediaFile(t, mediastore.FolderSeasons, "tmdb_95396_s1.jpg", "season-bytes")

	export := src.runExport(t)
	snap := export.Snapshot()
	if snap.Status != TaskCompleted {
		t.Fatalf("Export did not complete: %+v", snap)
	}
	if snap.Progress != 100 || snap.Message != "Done!" {
		t.Errorf("Unexpected final state: %+v", snap)
	}

	dst := newBackupFixture(t)
	imp := dst.runImport(t, export.ResultPath())
	if s := imp.Snapshot(); s.Status != TaskCompleted {
		t.Fatalf("Import did not complete: %+v", s)
	}

	items, err := dst.itemRepo.GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items after import, got %d", len(items))
	}

	tv, err := dst.itemRepo.GetByNaturalKey("tmdb", "95396", models.KindTV)
	if err != nil || tv == nil {
		t.Fatalf("TV item missing after import: %v", err)
	}
	if len(tv.Seasons) != 1 || tv.Seasons[0].EpisodeCount != 9 {
		t.Errorf("Season blob not restored: %+v", tv.Seasons)
	}

	person, err := dst.personRepo.GetByNameKind("Adam Scott", models.PersonActor)
	if err != nil || person == nil {
		t.Fatalf("Person missing after import: %v", err)
	}

	cred, err := dst.credRepo.Get("tmdb")
	if err != nil || cred == nil || cred.Key1 != "abc" {
		t.Fatalf("Credential not restored: %+v", cred)
	}

	settings, err := dst.settingsRepo.Get()
	if err != nil {
		t.Fatalf("Get settings failed: %v", err)
	}
	if settings.RatingMode != "stars" {
		t.Errorf("Settings not restored: %+v", settings)
	}

	for _, rel := range []string{"posters/tmdb_95396.jpg", "seasons/tmdb_95396_s1.jpg"} {
		if _, err := os.Stat(filepath.Join(dst.mediaRoot, filepath.FromSlash(rel))); err != nil {
			t.Errorf("Media file %s not restored: %v", rel, err)
		}
	}
}

// Importing the same archive twice merges by natural key instead of
// duplicating rows
func TestImportIdempotent(t *testing.T) {
	src := newBackupFixture(t)
	seedCatalog(t, src)

	export := src.runExport(t)
	if export.Snapshot().Status != TaskCompleted {
		t.Fatal("Export did not complete")
	}

	dst := newBackupFixture(t)
	for i := 0; i < 2; i++ {
		imp := dst.runImport(t, export.ResultPath())
		if s := imp.Snapshot(); s.Status != TaskCompleted {
			t.Fatalf("Import %d did not complete: %+v", i+1, s)
		}
	}

	items, err := dst.itemRepo.GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items after double import, got %d", len(items))
	}

	persons, err := dst.personRepo.GetAll()
	if err != nil {
		t.Fatalf("GetAll persons failed: %v", err)
	}
	if len(persons) != 1 {
		t.Fatalf("Expected 1 person after double import, got %d", len(persons))
	}
}

// A cancelled export finishes with cancelled status and leaves no archive
// behind
func TestCancelledExportLeavesNoArchive(t *testing.T) {
	f := newBackupFixture(t)
	seedCatalog(t, f)

	task := newBackupTask(TaskExport, "")
	f.mgr.register(task)
	task.Cancel()
	f.mgr.run(task, f.mgr.doExport)

	if s := task.Snapshot(); s.Status != TaskCancelled {
		t.Fatalf("Expected cancelled status, got %+v", s)
	}

	archives, err := filepath.Glob(filepath.Join(f.tmpDir, "*.zip"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(archives) != 0 {
		t.Errorf("Cancelled export left archives behind: %v", archives)
	}
}

// Archive entries that point outside the media root are skipped; safe
// entries are still extracted
func TestImportRejectsPathTraversal(t *testing.T) {
	f := newBackupFixture(t)

	archive := filepath.Join(t.TempDir(), "crafted.zip")
	out, err := os.Create(archive)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	zw := zip.NewWriter(out)

	write := func(name, content string) {
		t.Helper()
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip.Create failed: %v", err)
		}
		if _, err := io.WriteString(w, content); err != nil {
			t.Fatalf("WriteString failed: %v", err)
		}
	}
	write("backup_data.json", "[]")
	write("../evil.jpg", "escaped")
	write("/abs.jpg", "absolute")
	write("posters/ok.jpg", "fine")

	if err := zw.Close(); err != nil {
		t.Fatalf("zip.Close failed: %v", err)
	}
	out.Close()

	imp := f.runImport(t, archive)
	if s := imp.Snapshot(); s.Status != TaskCompleted {
		t.Fatalf("Import did not complete: %+v", s)
	}

	if _, err := os.Stat(filepath.Join(f.mediaRoot, "posters", "ok.jpg")); err != nil {
		t.Errorf("Safe entry not extracted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(f.mediaRoot), "evil.jpg")); err == nil {
		t.Error("Traversal entry escaped the media root")
	}
}

// Archives from before the backup format rename still restore through the
// legacy entry name
func TestImportLegacyDataEntry(t *testing.T) {
	src := newBackupFixture(t)
	seedCatalog(t, src)

	export := src.runExport(t)
	if export.Snapshot().Status != TaskCompleted {
		t.Fatal("Export did not complete")
	}

	// Rewrite the archive with the data entry under its legacy name
	legacy := filepath.Join(t.TempDir(), "legacy.zip")
	rewriteEntryName(t, export.ResultPath(), legacy, backupDataEntry, legacyBackupDataEntry)

	dst := newBackupFixture(t)
	imp := dst.runImport(t, legacy)
	if s := imp.Snapshot(); s.Status != TaskCompleted {
		t.Fatalf("Import did not complete: %+v", s)
	}

	items, err := dst.itemRepo.GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items from legacy archive, got %d", len(items))
	}
}

// Records with an unrecognized model name are skipped without failing the
// restore; known records around them still merge
func TestImportSkipsUnknownModel(t *testing.T) {
	f := newBackupFixture(t)

	archive := filepath.Join(t.TempDir(), "mixed.zip")
	out, err := os.Create(archive)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	zw := zip.NewWriter(out)
	w, err := zw.Create(backupDataEntry)
	if err != nil {
		t.Fatalf("zip.Create failed: %v", err)
	}
	_, err = io.WriteString(w, `[
		{"model": "watch_party", "fields": {"label": "movie night"}},
		{"model": "media_item", "fields": {"title": "Monster", "media_kind": "anime",
			"provider": "mal", "provider_id": "19", "status": "completed"}}
	]`)
	if err != nil {
		t.Fatalf("WriteString failed: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip.Close failed: %v", err)
	}
	out.Close()

	imp := f.runImport(t, archive)
	if s := imp.Snapshot(); s.Status != TaskCompleted {
		t.Fatalf("Import did not complete: %+v", s)
	}

	items, err := f.itemRepo.GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Monster" {
		t.Fatalf("Known record not restored around unknown one: %+v", items)
	}
}

// An import failure records error status with the failure text
func TestImportBadArchive(t *testing.T) {
	f := newBackupFixture(t)

	bad := filepath.Join(t.TempDir(), "not-a-zip.zip")
	if err := os.WriteFile(bad, []byte("garbage"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	imp := f.runImport(t, bad)
	snap := imp.Snapshot()
	if snap.Status != TaskError {
		t.Fatalf("Expected error status, got %+v", snap)
	}
	if snap.Error == "" {
		t.Error("Error text missing")
	}
}

func rewriteEntryName(t *testing.T, srcPath, dstPath, from, to string) {
	t.Helper()
	zr, err := zip.OpenReader(srcPath)
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer zr.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer out.Close()
	zw := zip.NewWriter(out)

	for _, entry := range zr.File {
		name := entry.Name
		if name == from {
			name = to
		}
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip.Create failed: %v", err)
		}
		rc, err := entry.Open()
		if err != nil {
			t.Fatalf("entry.Open failed: %v", err)
		}
		if _, err := io.Copy(w, rc); err != nil {
			t.Fatalf("Copy failed: %v", err)
		}
		rc.Close()
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip.Close failed: %v", err)
	}
}
