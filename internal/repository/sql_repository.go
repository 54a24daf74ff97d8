package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	models "github.com/fathima-sithara/image-service/internal/media"
)

// SQLAssetRepo stores asset records in the images table.
type SQLAssetRepo struct {
	db *sql.DB
}

func NewSQLAssetRepo(db *sql.DB) *SQLAssetRepo {
	return &SQLAssetRepo{db: db}
}

const insertAssetQuery = `INSERT INTO images (id, owner_kind, owner_id) VALUES (?, ?, ?)`

func (r *SQLAssetRepo) Insert(ctx context.Context, a *models.Asset) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: asset id cannot be empty", models.ErrValidation)
	}
	if _, err := r.db.ExecContext(ctx, insertAssetQuery, a.ID, string(a.OwnerKind), a.OwnerID); err != nil {
		return fmt.Errorf("failed to insert image record: %w", err)
	}
	return nil
}

const getAssetQuery = `SELECT id, owner_kind, owner_id FROM images WHERE id = ?`

func (r *SQLAssetRepo) GetByID(ctx context.Context, id string) (*models.Asset, error) {
	var a models.Asset
	var kind string
	err := r.db.QueryRowContext(ctx, getAssetQuery, id).Scan(&a.ID, &kind, &a.OwnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrAssetNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	a.OwnerKind = models.OwnerKind(kind)
	return &a, nil
}

const deleteAssetQuery = `DELETE FROM images WHERE id = ?`

// Delete removes the record; a missing record is not an error.
func (r *SQLAssetRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, deleteAssetQuery, id); err != nil {
		return fmt.Errorf("failed to delete image record: %w", err)
	}
	return nil
}

const listByOwnerQuery = `
	SELECT id, owner_kind, owner_id
	FROM images
	WHERE owner_kind = ? AND owner_id = ?
	ORDER BY id
`

// ListByOwner returns the owner's assets oldest first (ids sort by time).
func (r *SQLAssetRepo) ListByOwner(ctx context.Context, owner models.Owner) ([]*models.Asset, error) {
	rows, err := r.db.QueryContext(ctx, listByOwnerQuery, string(owner.Kind), owner.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	out := []*models.Asset{}
	for rows.Next() {
		var a models.Asset
		var kind string
		if err := rows.Scan(&a.ID, &kind, &a.OwnerID); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		a.OwnerKind = models.OwnerKind(kind)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// SQLOwnerLookup checks owners in the tables of the surrounding system.
type SQLOwnerLookup struct {
	db     *sql.DB
	tables map[models.OwnerKind]string
}

// NewSQLOwnerLookup queries "properties" and "accounts" unless tables
// overrides them.
func NewSQLOwnerLookup(db *sql.DB, tables map[models.OwnerKind]string) *SQLOwnerLookup {
	t := map[models.OwnerKind]string{
		models.OwnerProperty: "properties",
		models.OwnerAccount:  "accounts",
	}
	for k, v := range tables {
		if v != "" {
			t[k] = v
		}
	}
	return &SQLOwnerLookup{db: db, tables: t}
}

func (l *SQLOwnerLookup) Exists(ctx context.Context, owner models.Owner) (bool, error) {
	table, ok := l.tables[owner.Kind]
	if !ok {
		return false, fmt.Errorf("%w: %q", models.ErrInvalidOwnerKind, owner.Kind)
	}
	// table names come from configuration, never from the request
	q := fmt.Sprintf(`SELECT 1 FROM %q WHERE id = ? LIMIT 1`, table)
	var one int
	err := l.db.QueryRowContext(ctx, q, owner.ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up owner %s: %w", owner, err)
	}
	return true, nil
}
