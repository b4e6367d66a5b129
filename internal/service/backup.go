package service

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"media-journal/internal/mediastore"
	"media-journal/internal/models"
	"media-journal/internal/repository"
)

// TaskKind distinguishes export from import runs
type TaskKind string

const (
	TaskExport TaskKind = "export"
	TaskImport TaskKind = "import"
)

// TaskStatus is the lifecycle state of a backup task
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskError     TaskStatus = "error"
	TaskCancelled TaskStatus = "cancelled"
)

const (
	backupDataEntry       = "backup_data.json"
	legacyBackupDataEntry = "media_items.json"
	taskMaxAge            = time.Hour
	progressEvery         = 100
)

var errTaskCancelled = errors.New("task cancelled")

// BackupTask is one in-memory export or import run. Task state is not
// persisted: a process restart loses any in-flight task.
type BackupTask struct {
	ID        string
	Kind      TaskKind
	CreatedAt time.Time

	mu         sync.Mutex
	status     TaskStatus
	progress   int
	message    string
	details    string
	errText    string
	resultPath string
	uploadPath string

	cancelled atomic.Bool
	startedAt time.Time
}

// TaskSnapshot is the externally visible view of a task
type TaskSnapshot struct {
	ID       string     `json:"task_id"`
	Kind     TaskKind   `json:"kind"`
	Status   TaskStatus `json:"status"`
	Progress int        `json:"progress"`
	Message  string     `json:"message"`
	Details  string     `json:"details"`
	Error    string     `json:"error"`
}

func newBackupTask(kind TaskKind, uploadPath string) *BackupTask {
	return &BackupTask{
		ID:         uuid.New().String(),
		Kind:       kind,
		CreatedAt:  time.Now(),
		status:     TaskPending,
		message:    "Initializing...",
		uploadPath: uploadPath,
	}
}

// Cancel requests cooperative cancellation. The worker checks the flag
// before and after each record or file.
func (t *BackupTask) Cancel() {
	t.cancelled.Store(true)
	t.mu.Lock()
	t.status = TaskCancelled
	t.message = "Cancelling..."
	t.mu.Unlock()
}

// Snapshot returns the current task state for status polling
func (t *BackupTask) Snapshot() TaskSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TaskSnapshot{
		ID:       t.ID,
		Kind:     t.Kind,
		Status:   t.status,
		Progress: t.progress,
		Message:  t.message,
		Details:  t.details,
		Error:    t.errText,
	}
}

// ResultPath returns the finished archive path (export tasks)
func (t *BackupTask) ResultPath() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resultPath
}

func (t *BackupTask) isCancelled() bool {
	return t.cancelled.Load()
}

func (t *BackupTask) setMessage(msg string) {
	t.mu.Lock()
	t.message = msg
	t.mu.Unlock()
}

func (t *BackupTask) setResultPath(p string) {
	t.mu.Lock()
	t.resultPath = p
	t.mu.Unlock()
}

// updateProgress records a percentage plus a "N/M (time left)" estimate
// from a linear rate projection over elapsed time.
func (t *BackupTask) updateProgress(processed, total int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.progress = processed * 100 / total
	t.message = message

	elapsed := time.Since(t.startedAt).Seconds()
	if elapsed > 0 && processed > 0 {
		rate := float64(processed) / elapsed
		secondsLeft := int(float64(total-processed) / rate)

		var timeStr string
		if secondsLeft < 60 {
			timeStr = fmt.Sprintf("%d sec left", secondsLeft)
		} else {
			timeStr = fmt.Sprintf("%d min %d sec left", secondsLeft/60, secondsLeft%60)
		}
		t.details = fmt.Sprintf("%d/%d (%s)", processed, total, timeStr)
	} else {
		t.details = fmt.Sprintf("%d/%d", processed, total)
	}
}

// backupRecord is one typed row in the archive's structured-data entry
type backupRecord struct {
	Model  string          `json:"model"`
	Fields json.RawMessage `json:"fields"`
}

// BackupManager owns the in-memory task registry and runs export/import
// work on background goroutines.
type BackupManager struct {
	itemRepo     *repository.MediaItemRepository
	personRepo   *repository.PersonRepository
	settingsRepo *repository.SettingsRepository
	credRepo     *repository.CredentialRepository
	media        *mediastore.Store
	tmpDir       string

	mu    sync.Mutex
	tasks map[string]*BackupTask
}

// NewBackupManager creates a new BackupManager
func NewBackupManager(
	itemRepo *repository.MediaItemRepository,
	personRepo *repository.PersonRepository,
	settingsRepo *repository.SettingsRepository,
	credRepo *repository.CredentialRepository,
	media *mediastore.Store,
) *BackupManager {
	return &BackupManager{
		itemRepo:     itemRepo,
		personRepo:   personRepo,
		settingsRepo: settingsRepo,
		credRepo:     credRepo,
		media:        media,
		tmpDir:       os.TempDir(),
		tasks:        make(map[string]*BackupTask),
	}
}

// SetTempDir overrides where export archives and uploads are staged
func (m *BackupManager) SetTempDir(dir string) {
	m.tmpDir = dir
}

// StartExport registers a new export task and begins work on a goroutine,
// returning the task id immediately.
func (m *BackupManager) StartExport() string {
	m.cleanupOldTasks()

	task := newBackupTask(TaskExport, "")
	m.register(task)

	go m.run(task, m.doExport)
	return task.ID
}

// StartImport registers a new import task for an already-persisted upload
// and begins work on a goroutine, returning the task id immediately.
func (m *BackupManager) StartImport(uploadPath string) string {
	m.cleanupOldTasks()

	task := newBackupTask(TaskImport, uploadPath)
	m.register(task)

	go m.run(task, m.doImport)
	return task.ID
}

// Get returns a task by id
func (m *BackupManager) Get(id string) (*BackupTask, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	return task, ok
}

// Cancel requests cancellation of a task by id
func (m *BackupManager) Cancel(id string) bool {
	task, ok := m.Get(id)
	if !ok {
		return false
	}
	task.Cancel()
	return true
}

func (m *BackupManager) register(task *BackupTask) {
	m.mu.Lock()
	m.tasks[task.ID] = task
	m.mu.Unlock()
}

// cleanupOldTasks removes tasks older than the max age along with their
// backing files. Invoked whenever a new task is created, which bounds
// registry growth without a standalone reaper.
func (m *BackupManager) cleanupOldTasks() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, task := range m.tasks {
		if time.Since(task.CreatedAt) <= taskMaxAge {
			continue
		}
		if p := task.ResultPath(); p != "" {
			_ = os.Remove(p)
		}
		if task.uploadPath != "" {
			_ = os.Remove(task.uploadPath)
		}
		delete(m.tasks, id)
	}
}

// run executes one task body with the shared lifecycle: status transitions,
// upload cleanup, and cancelled-export archive removal.
func (m *BackupManager) run(task *BackupTask, body func(*BackupTask) error) {
	task.mu.Lock()
	task.status = TaskRunning
	task.startedAt = time.Now()
	task.mu.Unlock()

	err := body(task)

	// The uploaded archive is temporary regardless of outcome
	if task.uploadPath != "" {
		_ = os.Remove(task.uploadPath)
	}

	task.mu.Lock()
	defer task.mu.Unlock()

	switch {
	case err == nil && !task.cancelled.Load():
		task.status = TaskCompleted
		task.progress = 100
		task.message = "Done!"
	case task.cancelled.Load() || errors.Is(err, errTaskCancelled):
		task.status = TaskCancelled
		task.message = "Cancelled."
		if task.resultPath != "" {
			_ = os.Remove(task.resultPath)
		}
	default:
		log.Printf("backup task %s failed: %v", task.ID, err)
		task.status = TaskError
		task.errText = err.Error()
	}
}

// doExport serializes every row of every entity type plus all media files
// into one zip archive.
func (m *BackupManager) doExport(task *BackupTask) error {
	task.setMessage("Gathering database data")

	records, err := m.collectRecords()
	if err != nil {
		return err
	}
	jsonData, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode backup data: %w", err)
	}

	if task.isCancelled() {
		return errTaskCancelled
	}

	task.setMessage("Scanning files")
	files := m.scanMediaFiles()

	zipPath := filepath.Join(m.tmpDir, fmt.Sprintf("media_journal_backup_%s.zip", strings.ReplaceAll(task.ID, "-", "")))
	task.setResultPath(zipPath)

	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	total := len(files) + 1
	processed := 0

	w, err := zw.Create(backupDataEntry)
	if err != nil {
		return fmt.Errorf("failed to write backup data entry: %w", err)
	}
	if _, err := w.Write(jsonData); err != nil {
		return fmt.Errorf("failed to write backup data entry: %w", err)
	}
	processed++
	task.updateProgress(processed, total, "Archiving")

	for _, file := range files {
		if task.isCancelled() {
			return errTaskCancelled
		}

		if err := addFileToZip(zw, file.absPath, file.relPath); err != nil {
			log.Printf("could not archive %s: %v", file.absPath, err)
		}

		processed++
		if processed%progressEvery == 0 {
			task.updateProgress(processed, total, "Archiving")
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return out.Sync()
}

type mediaFile struct {
	absPath string
	relPath string
}

// scanMediaFiles enumerates every file under the well-known media subfolders
func (m *BackupManager) scanMediaFiles() []mediaFile {
	var files []mediaFile
	root := m.media.Root()

	for _, folder := range mediastore.Folders {
		folderPath := filepath.Join(root, folder)
		_ = filepath.WalkDir(folderPath, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return nil
			}
			files = append(files, mediaFile{absPath: path, relPath: filepath.ToSlash(rel)})
			return nil
		})
	}
	return files
}

func addFileToZip(zw *zip.Writer, absPath, relPath string) error {
	in, err := os.Open(absPath)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   relPath,
		Method: zip.Store,
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}

// collectRecords serializes every persisted entity type into typed records
func (m *BackupManager) collectRecords() ([]backupRecord, error) {
	var records []backupRecord

	items, err := m.itemRepo.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load media items: %w", err)
	}
	for i := range items {
		rec, err := encodeRecord("media_item", &items[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	persons, err := m.personRepo.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load favorite persons: %w", err)
	}
	for i := range persons {
		rec, err := encodeRecord("favorite_person", &persons[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	creds, err := m.credRepo.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	for i := range creds {
		rec, err := encodeRecord("provider_credential", &creds[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	settings, err := m.settingsRepo.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	rec, err := encodeRecord("app_settings", settings)
	if err != nil {
		return nil, err
	}
	records = append(records, rec)

	return records, nil
}

func encodeRecord(model string, v any) (backupRecord, error) {
	fields, err := json.Marshal(v)
	if err != nil {
		return backupRecord{}, fmt.Errorf("failed to encode %s record: %w", model, err)
	}
	return backupRecord{Model: model, Fields: fields}, nil
}

// doImport merges the archive's records into the catalog by natural key and
// extracts its media files under the media root.
func (m *BackupManager) doImport(task *BackupTask) error {
	task.setMessage("Reading backup file")
	if task.uploadPath == "" {
		return errors.New("upload file not found")
	}

	zr, err := zip.OpenReader(task.uploadPath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer zr.Close()

	var dataEntry, legacyEntry *zip.File
	var fileEntries []*zip.File
	for _, f := range zr.File {
		switch f.Name {
		case backupDataEntry:
			dataEntry = f
		case legacyBackupDataEntry:
			legacyEntry = f
		default:
			if !strings.HasSuffix(f.Name, ".json") {
				fileEntries = append(fileEntries, f)
			}
		}
	}
	if dataEntry == nil {
		dataEntry = legacyEntry // older exports used a different entry name
	}

	processed := 0
	total := len(fileEntries)

	merge := m.mergeStrategies()

	if dataEntry != nil {
		task.setMessage("Restoring database")

		records, err := decodeRecords(dataEntry)
		if err != nil {
			return err
		}
		total += len(records)
		if total == 0 {
			total = 1
		}

		for _, rec := range records {
			if task.isCancelled() {
				return errTaskCancelled
			}

			fn, ok := merge[rec.Model]
			if !ok {
				log.Printf("skipping record of unknown model %q", rec.Model)
			} else if err := fn(rec.Fields); err != nil {
				log.Printf("error restoring %s record: %v", rec.Model, err)
			}

			processed++
			if processed%progressEvery == 0 {
				task.updateProgress(processed, total, "Restoring database")
			}
		}
	}

	task.setMessage("Restoring media files")
	if total == 0 {
		total = 1
	}

	for _, f := range fileEntries {
		if task.isCancelled() {
			return errTaskCancelled
		}

		if err := m.extractMediaFile(f); err != nil {
			log.Printf("error extracting %s: %v", f.Name, err)
		}

		processed++
		if processed%progressEvery == 0 {
			task.updateProgress(processed, total, "Restoring media files")
		}
	}

	return nil
}

func decodeRecords(entry *zip.File) ([]backupRecord, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open backup data entry: %w", err)
	}
	defer rc.Close()

	var records []backupRecord
	if err := json.NewDecoder(rc).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode backup data: %w", err)
	}
	return records, nil
}

// extractMediaFile writes one archive entry under the media root, skipping
// entries whose path would escape it.
func (m *BackupManager) extractMediaFile(f *zip.File) error {
	name := f.Name
	if strings.Contains(name, "..") || strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
		return fmt.Errorf("rejected unsafe path %q", name)
	}

	target := filepath.Join(m.media.Root(), filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

type mergeFunc func(fields json.RawMessage) error

// mergeStrategies maps a record's model name to its merge-by-natural-key
// upsert. Adding an entity type is a table entry, not a new branch.
func (m *BackupManager) mergeStrategies() map[string]mergeFunc {
	return map[string]mergeFunc{
		"media_item":          m.mergeMediaItem,
		"favorite_person":     m.mergeFavoritePerson,
		"provider_credential": m.mergeCredential,
		"app_settings":        m.mergeSettings,
	}
}

// mergeMediaItem upserts by the (provider, provider_id, media_kind) triple
func (m *BackupManager) mergeMediaItem(fields json.RawMessage) error {
	var item models.MediaItem
	if err := json.Unmarshal(fields, &item); err != nil {
		return err
	}
	item.ID = 0
	return m.itemRepo.Upsert(&item)
}

// mergeFavoritePerson matches by (name, kind): overwrite in place when
// found, insert otherwise
func (m *BackupManager) mergeFavoritePerson(fields json.RawMessage) error {
	var person models.FavoritePerson
	if err := json.Unmarshal(fields, &person); err != nil {
		return err
	}

	existing, err := m.personRepo.GetByNameKind(person.Name, person.Kind)
	if err != nil {
		return err
	}
	if existing != nil {
		person.ID = existing.ID
		return m.personRepo.Update(&person)
	}
	person.ID = 0
	return m.personRepo.Create(&person)
}

// mergeCredential upserts by provider name
func (m *BackupManager) mergeCredential(fields json.RawMessage) error {
	var cred models.ProviderCredential
	if err := json.Unmarshal(fields, &cred); err != nil {
		return err
	}
	cred.ID = 0
	return m.credRepo.Upsert(&cred)
}

// mergeSettings overwrites the singleton row in place; a second row is
// never created
func (m *BackupManager) mergeSettings(fields json.RawMessage) error {
	var settings models.AppSettings
	if err := json.Unmarshal(fields, &settings); err != nil {
		return err
	}
	return m.settingsRepo.Update(&settings)
}
