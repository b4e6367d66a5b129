package repository

import (
	"database/sql"

	"media-journal/internal/models"
)

// CredentialRepository handles ProviderCredential database operations
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new CredentialRepository
func NewCredentialRepository(sqliteDB *SQLiteDB) *CredentialRepository {
	return &CredentialRepository{db: sqliteDB.db}
}

// Get retrieves the credential row for a provider name
func (r *CredentialRepository) Get(provider string) (*models.ProviderCredential, error) {
	c := &models.ProviderCredential{}
	err := r.db.QueryRow(`
		SELECT id, provider, key_1, key_2 FROM provider_credentials WHERE provider = ?
	`, provider).Scan(&c.ID, &c.Provider, &c.Key1, &c.Key2)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetAll retrieves all credential rows ordered by provider name
func (r *CredentialRepository) GetAll() ([]models.ProviderCredential, error) {
	rows, err := r.db.Query(`SELECT id, provider, key_1, key_2 FROM provider_credentials ORDER BY provider`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []models.ProviderCredential
	for rows.Next() {
		var c models.ProviderCredential
		if err := rows.Scan(&c.ID, &c.Provider, &c.Key1, &c.Key2); err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

// Upsert inserts or overwrites the credential keyed by provider name
func (r *CredentialRepository) Upsert(c *models.ProviderCredential) error {
	_, err := r.db.Exec(`
		INSERT INTO provider_credentials (provider, key_1, key_2)
		VALUES (?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			key_1 = excluded.key_1,
			key_2 = excluded.key_2
	`, c.Provider, c.Key1, c.Key2)
	return err
}

// Delete removes the credential row for a provider name
func (r *CredentialRepository) Delete(provider string) error {
	_, err := r.db.Exec(`DELETE FROM provider_credentials WHERE provider = ?`, provider)
	return err
}
