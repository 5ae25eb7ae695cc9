package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"plant-keeper/internal/auth"

	"github.com/google/uuid"
)

// Plant is a user-owned catalog record. The ID is assigned by the store on
// creation and is deliberately not part of the JSON payload; it lives in the
// row key and List copies it back onto the record.
type Plant struct {
	ID          string `json:"-"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
}

// Repository is a database-backed, per-user plant store. All operations are
// scoped to the current user: two identities never see each other's plants.
type Repository struct {
	db       *sql.DB
	identity auth.Identity
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB, identity auth.Identity) *Repository {
	return &Repository{
		db:       d,
		identity: identity,
	}
}

// Create inserts a new plant for the current user.
func (r *Repository) Create(ctx context.Context, plant Plant) error {
	uid, ok := r.identity.CurrentUserID(ctx)
	if !ok {
		return auth.ErrUnauthenticated
	}

	data, err := json.Marshal(plant)
	if err != nil {
		return fmt.Errorf("failed to marshal plant: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO plants (id, user_id, data, created_at) VALUES (?, ?, ?, ?)",
		uuid.NewString(), uid, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create plant: %w", err)
	}
	return nil
}

// List returns the current user's plants with their store-assigned ids. With
// no signed-in user it returns an empty list rather than failing; reads
// degrade gracefully where mutations do not.
func (r *Repository) List(ctx context.Context) ([]Plant, error) {
	uid, ok := r.identity.CurrentUserID(ctx)
	if !ok {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, data FROM plants WHERE user_id = ? ORDER BY created_at", uid)
	if err != nil {
		return nil, fmt.Errorf("failed to list plants: %w", err)
	}
	defer rows.Close()

	var plants []Plant
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan plant row: %w", err)
		}

		var plant Plant
		if err := json.Unmarshal([]byte(data), &plant); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plant %s: %w", id, err)
		}
		plant.ID = id
		plants = append(plants, plant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plants: %w", err)
	}
	return plants, nil
}

// Delete removes the plant with the given id from the current user's
// collection. Deleting an id that does not exist is not distinguished from a
// real delete; that is inherited from the store.
func (r *Repository) Delete(ctx context.Context, id string) error {
	uid, ok := r.identity.CurrentUserID(ctx)
	if !ok {
		return auth.ErrUnauthenticated
	}

	_, err := r.db.ExecContext(ctx,
		"DELETE FROM plants WHERE user_id = ? AND id = ?", uid, id)
	if err != nil {
		return fmt.Errorf("failed to delete plant: %w", err)
	}
	return nil
}
