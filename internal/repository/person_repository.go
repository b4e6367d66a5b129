package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"media-journal/internal/models"
	"media-journal/internal/timeutil"
)

type personDBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// PersonRepository handles FavoritePerson database operations
type PersonRepository struct {
	db   personDBTX
	base *sql.DB
}

// NewPersonRepository creates a new PersonRepository
func NewPersonRepository(sqliteDB *SQLiteDB) *PersonRepository {
	return &PersonRepository{db: sqliteDB.db, base: sqliteDB.db}
}

func (r *PersonRepository) BeginTx() (*sql.Tx, error) {
	if r.base == nil {
		return nil, errors.New("person repository: transactions not supported on tx-scoped repo")
	}
	return r.base.Begin()
}

func (r *PersonRepository) WithTx(tx *sql.Tx) *PersonRepository {
	return &PersonRepository{db: tx}
}

const personColumns = `id, name, image_url, kind, display_order, provider_person_id,
	biography, birth_date, filmography_json, created_at`

// Create inserts a new FavoritePerson
func (r *PersonRepository) Create(p *models.FavoritePerson) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = timeutil.Now()
	}
	filmography, err := marshalList(p.Filmography)
	if err != nil {
		return err
	}
	result, err := r.db.Exec(`
		INSERT INTO favorite_persons (name, image_url, kind, display_order, provider_person_id,
			biography, birth_date, filmography_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Name, p.ImageURL, p.Kind, p.DisplayOrder, p.ProviderPersonID,
		p.Biography, p.BirthDate, filmography, p.CreatedAt)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

// GetByNameKind retrieves a person by the (name, kind) toggle key
func (r *PersonRepository) GetByNameKind(name string, kind models.PersonKind) (*models.FavoritePerson, error) {
	row := r.db.QueryRow(`
		SELECT `+personColumns+` FROM favorite_persons WHERE name = ? AND kind = ?
	`, name, kind)
	return scanPerson(row)
}

// GetByID retrieves a person by ID
func (r *PersonRepository) GetByID(id int64) (*models.FavoritePerson, error) {
	row := r.db.QueryRow(`SELECT `+personColumns+` FROM favorite_persons WHERE id = ?`, id)
	return scanPerson(row)
}

// GetAll retrieves all favorite persons ordered by display position
func (r *PersonRepository) GetAll() ([]models.FavoritePerson, error) {
	rows, err := r.db.Query(`SELECT ` + personColumns + ` FROM favorite_persons ORDER BY display_order`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var persons []models.FavoritePerson
	for rows.Next() {
		p, err := scanPersonFields(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, *p)
	}
	return persons, rows.Err()
}

// Update overwrites all fields of an existing person in place
func (r *PersonRepository) Update(p *models.FavoritePerson) error {
	filmography, err := marshalList(p.Filmography)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`
		UPDATE favorite_persons
		SET name = ?, image_url = ?, kind = ?, display_order = ?, provider_person_id = ?,
			biography = ?, birth_date = ?, filmography_json = ?
		WHERE id = ?
	`, p.Name, p.ImageURL, p.Kind, p.DisplayOrder, p.ProviderPersonID,
		p.Biography, p.BirthDate, filmography, p.ID)
	return err
}

// MaxDisplayOrder returns the highest display_order, 0 when empty
func (r *PersonRepository) MaxDisplayOrder() (int, error) {
	var max sql.NullInt64
	err := r.db.QueryRow(`SELECT MAX(display_order) FROM favorite_persons`).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64), nil
}

// DeleteAndResequence removes a person and closes the gap in display_order.
// Both steps run in one transaction.
func (r *PersonRepository) DeleteAndResequence(id int64) error {
	tx, err := r.BeginTx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var removedOrder int
	err = tx.QueryRow(`SELECT display_order FROM favorite_persons WHERE id = ?`, id).Scan(&removedOrder)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM favorite_persons WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete person: %w", err)
	}
	if _, err := tx.Exec(`
		UPDATE favorite_persons SET display_order = display_order - 1 WHERE display_order > ?
	`, removedOrder); err != nil {
		return fmt.Errorf("failed to resequence persons: %w", err)
	}

	return tx.Commit()
}

// Reorder assigns display_order 1..n following the given id order,
// wrapped in a transaction so either all positions update or none do.
func (r *PersonRepository) Reorder(ids []int64) error {
	tx, err := r.BeginTx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for position, id := range ids {
		if _, err := tx.Exec(`UPDATE favorite_persons SET display_order = ? WHERE id = ?`, position+1, id); err != nil {
			return fmt.Errorf("failed to set display order: %w", err)
		}
	}

	return tx.Commit()
}

func scanPersonFields(s rowScanner) (*models.FavoritePerson, error) {
	p := &models.FavoritePerson{}
	var filmography string
	err := s.Scan(
		&p.ID, &p.Name, &p.ImageURL, &p.Kind, &p.DisplayOrder, &p.ProviderPersonID,
		&p.Biography, &p.BirthDate, &filmography, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if filmography != "" {
		if err := json.Unmarshal([]byte(filmography), &p.Filmography); err != nil {
			return nil, fmt.Errorf("failed to decode filmography: %w", err)
		}
	}
	return p, nil
}

func scanPerson(row *sql.Row) (*models.FavoritePerson, error) {
	p, err := scanPersonFields(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
