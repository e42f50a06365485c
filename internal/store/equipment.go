package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/matijat/bolnica/internal/model"
)

// CreateEquipment creates a new equipment catalog entry.
func CreateEquipment(ctx context.Context, db *sql.DB, name, description string, totalQuantity int) (*model.Equipment, error) {
	if totalQuantity < 0 {
		return nil, fmt.Errorf("total quantity must not be negative")
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO equipment (name, description, total_quantity) VALUES (?, ?, ?)`,
		name, description, totalQuantity,
	)
	if err != nil {
		return nil, fmt.Errorf("creating equipment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting equipment id: %w", err)
	}

	return GetEquipment(ctx, db, id)
}

// GetEquipment returns an equipment entry by ID.
func GetEquipment(ctx context.Context, db *sql.DB, id int64) (*model.Equipment, error) {
	eq := &model.Equipment{}
	var description, photoMime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, name, description, total_quantity, photo_mime, created_at, updated_at, deleted_at
		 FROM equipment WHERE id = ?`, id,
	).Scan(&eq.ID, &eq.Name, &description, &eq.TotalQuantity, &photoMime, &eq.CreatedAt, &eq.UpdatedAt, &eq.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting equipment: %w", err)
	}
	eq.Description = description.String
	eq.PhotoMime = photoMime.String
	return eq, nil
}

// ListEquipment returns all non-deleted equipment entries.
func ListEquipment(ctx context.Context, db *sql.DB) ([]model.Equipment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, description, total_quantity, photo_mime, created_at, updated_at, deleted_at
		 FROM equipment WHERE deleted_at IS NULL ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing equipment: %w", err)
	}
	defer rows.Close()

	var catalog []model.Equipment
	for rows.Next() {
		var eq model.Equipment
		var description, photoMime sql.NullString
		if err := rows.Scan(&eq.ID, &eq.Name, &description, &eq.TotalQuantity, &photoMime, &eq.CreatedAt, &eq.UpdatedAt, &eq.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning equipment: %w", err)
		}
		eq.Description = description.String
		eq.PhotoMime = photoMime.String
		catalog = append(catalog, eq)
	}
	return catalog, rows.Err()
}

// UpdateEquipment updates an equipment entry's metadata and total quantity.
// Lowering total_quantity below the currently reserved sum is allowed; the
// ledger clamps the derived remaining count at zero.
func UpdateEquipment(ctx context.Context, db *sql.DB, id int64, name, description string, totalQuantity int) error {
	if totalQuantity < 0 {
		return fmt.Errorf("total quantity must not be negative")
	}

	_, err := db.ExecContext(ctx,
		`UPDATE equipment SET name = ?, description = ?, total_quantity = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		name, description, totalQuantity, id,
	)
	if err != nil {
		return fmt.Errorf("updating equipment: %w", err)
	}
	return nil
}

// DeleteEquipment soft-deletes an equipment entry. Fails if any pending or
// approved loan still holds units of it.
func DeleteEquipment(ctx context.Context, db *sql.DB, id int64) error {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loan_items li
		 JOIN loans l ON l.id = li.loan_id
		 WHERE li.equipment_id = ? AND l.status IN (?, ?)`,
		id, model.LoanPending, model.LoanApproved,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking equipment loans: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("cannot delete equipment: held by %d active loans", count)
	}

	_, err = db.ExecContext(ctx,
		`UPDATE equipment SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting equipment: %w", err)
	}
	return nil
}

// SetEquipmentPhoto stores an equipment entry's photo.
func SetEquipmentPhoto(ctx context.Context, db *sql.DB, id int64, photo []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE equipment SET photo = ?, photo_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		photo, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting equipment photo: %w", err)
	}
	return nil
}

// GetEquipmentPhoto returns an equipment entry's photo data and MIME type.
func GetEquipmentPhoto(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var photo []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT photo, photo_mime FROM equipment WHERE id = ?`, id,
	).Scan(&photo, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting equipment photo: %w", err)
	}
	return photo, mime.String, nil
}
