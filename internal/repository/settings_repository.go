package repository

import (
	"database/sql"

	"media-journal/internal/models"
)

// SettingsRepository handles the singleton AppSettings row
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(sqliteDB *SQLiteDB) *SettingsRepository {
	return &SettingsRepository{db: sqliteDB.db}
}

const settingsColumns = `id, rating_mode, theme_mode, username, show_nav, enable_discover`

// Get returns the settings row, creating the default one when none exists
func (r *SettingsRepository) Get() (*models.AppSettings, error) {
	s := &models.AppSettings{}
	err := r.db.QueryRow(`SELECT ` + settingsColumns + ` FROM app_settings ORDER BY id LIMIT 1`).Scan(
		&s.ID, &s.RatingMode, &s.ThemeMode, &s.Username, &s.ShowNav, &s.EnableDiscover,
	)
	if err == sql.ErrNoRows {
		s = models.DefaultSettings()
		if err := r.insert(s); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Update overwrites the fields of the existing row in place. When no row
// exists yet the incoming settings are inserted instead, so a second row is
// never created.
func (r *SettingsRepository) Update(s *models.AppSettings) error {
	current, err := r.Get()
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`
		UPDATE app_settings
		SET rating_mode = ?, theme_mode = ?, username = ?, show_nav = ?, enable_discover = ?
		WHERE id = ?
	`, s.RatingMode, s.ThemeMode, s.Username, s.ShowNav, s.EnableDiscover, current.ID)
	if err != nil {
		return err
	}
	s.ID = current.ID
	return nil
}

func (r *SettingsRepository) insert(s *models.AppSettings) error {
	result, err := r.db.Exec(`
		INSERT INTO app_settings (rating_mode, theme_mode, username, show_nav, enable_discover)
		VALUES (?, ?, ?, ?, ?)
	`, s.RatingMode, s.ThemeMode, s.Username, s.ShowNav, s.EnableDiscover)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}
