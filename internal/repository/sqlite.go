package repository

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDB wraps the database connection
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB creates a new SQLite database connection with connection pool settings
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// SQLite benefits from limited connections due to write locking
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// InitSchema creates the database tables and runs migrations
func (s *SQLiteDB) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS media_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		media_kind TEXT NOT NULL,
		provider TEXT NOT NULL,
		provider_id TEXT NOT NULL,
		status TEXT DEFAULT 'planned',
		progress_main INTEGER DEFAULT 0,
		progress_secondary INTEGER,
		total_main INTEGER,
		total_secondary INTEGER,
		personal_rating INTEGER,
		favorite BOOLEAN DEFAULT FALSE,
		favorite_order INTEGER,
		cover_url TEXT DEFAULT '',
		banner_url TEXT DEFAULT '',
		notes TEXT DEFAULT '',
		notification_pending BOOLEAN DEFAULT FALSE,
		added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_checked_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		seasons_json TEXT DEFAULT '[]',
		episodes_json TEXT DEFAULT '[]',
		related_titles_json TEXT DEFAULT '[]',
		cast_json TEXT DEFAULT '[]',
		screenshots_json TEXT DEFAULT '[]',
		media_links_json TEXT DEFAULT '[]',
		UNIQUE(provider, provider_id, media_kind)
	);

	CREATE TABLE IF NOT EXISTS favorite_persons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		image_url TEXT DEFAULT '',
		kind TEXT NOT NULL,
		display_order INTEGER DEFAULT 0,
		provider_person_id TEXT DEFAULT '',
		biography TEXT DEFAULT '',
		birth_date TEXT DEFAULT '',
		filmography_json TEXT DEFAULT '[]',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(name, kind)
	);

	CREATE TABLE IF NOT EXISTS app_settings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		rating_mode TEXT DEFAULT 'faces',
		theme_mode TEXT DEFAULT 'dark',
		username TEXT DEFAULT '',
		show_nav BOOLEAN DEFAULT TRUE,
		enable_discover BOOLEAN DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS provider_credentials (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider TEXT UNIQUE NOT NULL,
		key_1 TEXT NOT NULL,
		key_2 TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_items_kind ON media_items(media_kind);
	CREATE INDEX IF NOT EXISTS idx_items_provider_kind ON media_items(provider, media_kind);
	CREATE INDEX IF NOT EXISTS idx_items_last_checked ON media_items(last_checked_at);
	CREATE INDEX IF NOT EXISTS idx_items_notification ON media_items(notification_pending);
	CREATE INDEX IF NOT EXISTS idx_persons_order ON favorite_persons(display_order);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	return s.runMigrations()
}

// runMigrations executes pending database migrations
func (s *SQLiteDB) runMigrations() error {
	// Check if favorite_order column exists (added after initial release)
	var probe sql.NullInt64
	err := s.db.QueryRow("SELECT favorite_order FROM media_items LIMIT 1").Scan(&probe)
	if err != nil && err != sql.ErrNoRows {
		if _, err := s.db.Exec(`ALTER TABLE media_items ADD COLUMN favorite_order INTEGER`); err != nil {
			return err
		}
	}

	// Extended person fields (biography/birth_date/filmography) arrived later
	var bio sql.NullString
	err = s.db.QueryRow("SELECT biography FROM favorite_persons LIMIT 1").Scan(&bio)
	if err != nil && err != sql.ErrNoRows {
		migrations := []string{
			`ALTER TABLE favorite_persons ADD COLUMN biography TEXT DEFAULT ''`,
			`ALTER TABLE favorite_persons ADD COLUMN birth_date TEXT DEFAULT ''`,
			`ALTER TABLE favorite_persons ADD COLUMN filmography_json TEXT DEFAULT '[]'`,
		}
		for _, m := range migrations {
			if _, err := s.db.Exec(m); err != nil {
				return err
			}
		}
	}

	return nil
}
