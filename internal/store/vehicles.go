package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/matijat/bolnica/internal/model"
)

// CreateVehicle creates a new vehicle.
func CreateVehicle(ctx context.Context, db *sql.DB, name, licensePlate string, mileage int64) (*model.Vehicle, error) {
	if mileage < 0 {
		return nil, fmt.Errorf("mileage must not be negative")
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO vehicles (name, license_plate, mileage) VALUES (?, ?, ?)`,
		name, licensePlate, mileage,
	)
	if err != nil {
		return nil, fmt.Errorf("creating vehicle: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting vehicle id: %w", err)
	}

	return GetVehicle(ctx, db, id)
}

// GetVehicle returns a vehicle by ID.
func GetVehicle(ctx context.Context, db *sql.DB, id int64) (*model.Vehicle, error) {
	v := &model.Vehicle{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name, license_plate, mileage, created_at, updated_at, deleted_at
		 FROM vehicles WHERE id = ?`, id,
	).Scan(&v.ID, &v.Name, &v.LicensePlate, &v.Mileage, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting vehicle: %w", err)
	}
	return v, nil
}

// ListVehicles returns all non-deleted vehicles.
func ListVehicles(ctx context.Context, db *sql.DB) ([]model.Vehicle, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, license_plate, mileage, created_at, updated_at, deleted_at
		 FROM vehicles WHERE deleted_at IS NULL ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []model.Vehicle
	for rows.Next() {
		var v model.Vehicle
		if err := rows.Scan(&v.ID, &v.Name, &v.LicensePlate, &v.Mileage, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// UpdateVehicle updates a vehicle's name and license plate.
// Mileage is deliberately not updatable here; it only moves through the
// booking return workflow.
func UpdateVehicle(ctx context.Context, db *sql.DB, id int64, name, licensePlate string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE vehicles SET name = ?, license_plate = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		name, licensePlate, id,
	)
	if err != nil {
		return fmt.Errorf("updating vehicle: %w", err)
	}
	return nil
}

// DeleteVehicle soft-deletes a vehicle. Fails if the vehicle still has
// pending or approved bookings.
func DeleteVehicle(ctx context.Context, db *sql.DB, id int64) error {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE vehicle_id = ? AND status IN (?, ?)`,
		id, model.BookingPending, model.BookingApproved,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking vehicle bookings: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("cannot delete vehicle: %d active bookings", count)
	}

	_, err = db.ExecContext(ctx,
		`UPDATE vehicles SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting vehicle: %w", err)
	}
	return nil
}
