package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matijat/bolnica/internal/model"
	"github.com/matijat/bolnica/internal/schedule"
)

// ErrInvalidTransition is returned when a status change is not allowed by the
// entity's status machine.
var ErrInvalidTransition = errors.New("invalid status transition")

// ConflictError reports that a proposed booking overlaps an existing one.
// The axis tells the caller which message to show: the vehicle is taken, or
// the requester is already booked elsewhere.
type ConflictError struct {
	Axis    string
	Booking model.Booking
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("booking conflict on %s axis with booking %s", e.Axis, e.Booking.UID)
}

const bookingColumns = `b.id, b.uid, b.vehicle_id, b.requester_id, b.start_time, b.end_time,
       b.purpose, b.status, b.end_mileage, b.created_at, b.updated_at,
       v.name AS vehicle_name, u.username AS requester_name`

const bookingJoins = ` FROM bookings b
       JOIN vehicles v ON v.id = b.vehicle_id
       JOIN users u ON u.id = b.requester_id`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	b := &model.Booking{}
	var purpose sql.NullString
	err := row.Scan(&b.ID, &b.UID, &b.VehicleID, &b.RequesterID, &b.StartTime, &b.EndTime,
		&purpose, &b.Status, &b.EndMileage, &b.CreatedAt, &b.UpdatedAt,
		&b.VehicleName, &b.RequesterName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.Purpose = purpose.String
	return b, nil
}

// CreateBooking creates a booking after re-running the availability check
// inside the write transaction. The client performs the same check
// optimistically against possibly stale data; this is the authoritative one.
func CreateBooking(ctx context.Context, db *sql.DB, vehicleID, requesterID int64, start, end time.Time, purpose string) (*model.Booking, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("end time must be after start time")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vehicles WHERE id = ? AND deleted_at IS NULL`, vehicleID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking vehicle: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("vehicle not found")
	}

	candidate := schedule.Candidate{
		VehicleID:   vehicleID,
		RequesterID: requesterID,
		StartTime:   start,
		EndTime:     end,
	}
	if err := checkBookingConflict(ctx, tx, candidate); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (uid, vehicle_id, requester_id, start_time, end_time, purpose)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), vehicleID, requesterID, start, end, purpose,
	)
	if err != nil {
		return nil, fmt.Errorf("creating booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing booking: %w", err)
	}

	id, _ := result.LastInsertId()
	return GetBooking(ctx, db, id)
}

// UpdateBooking rewrites a booking's times and purpose. Only pending or
// edit-requested bookings can be edited; a successful edit puts the booking
// back to pending for re-approval. The availability check excludes the
// booking itself so an unchanged interval can be re-saved.
func UpdateBooking(ctx context.Context, db *sql.DB, id int64, start, end time.Time, purpose string) (*model.Booking, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("end time must be after start time")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var vehicleID, requesterID int64
	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT vehicle_id, requester_id, status FROM bookings WHERE id = ?`, id,
	).Scan(&vehicleID, &requesterID, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting booking: %w", err)
	}

	if status != model.BookingPending && status != model.BookingEditRequested {
		return nil, fmt.Errorf("only pending or edit-requested bookings can be edited")
	}

	candidate := schedule.Candidate{
		VehicleID:        vehicleID,
		RequesterID:      requesterID,
		StartTime:        start,
		EndTime:          end,
		ExcludeBookingID: id,
	}
	if err := checkBookingConflict(ctx, tx, candidate); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE bookings SET start_time = ?, end_time = ?, purpose = ?, status = ?,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		start, end, purpose, model.BookingPending, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing booking update: %w", err)
	}

	return GetBooking(ctx, db, id)
}

// checkBookingConflict loads the bookings that could collide with the
// candidate and runs the availability checker over them.
func checkBookingConflict(ctx context.Context, tx *sql.Tx, candidate schedule.Candidate) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+bookingColumns+bookingJoins+`
		 WHERE b.status != ? AND (b.vehicle_id = ? OR b.requester_id = ?)`,
		model.BookingCancelled, candidate.VehicleID, candidate.RequesterID,
	)
	if err != nil {
		return fmt.Errorf("loading bookings for conflict check: %w", err)
	}
	defer rows.Close()

	existing, err := collectBookings(rows)
	if err != nil {
		return err
	}

	if conflict := schedule.HasConflict(candidate, existing); conflict != nil {
		return &ConflictError{Axis: conflict.Axis, Booking: conflict.Booking}
	}
	return nil
}

// GetBooking returns a booking by ID.
func GetBooking(ctx context.Context, db *sql.DB, id int64) (*model.Booking, error) {
	b, err := scanBooking(db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+bookingJoins+` WHERE b.id = ?`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("getting booking: %w", err)
	}
	return b, nil
}

// ListBookings returns bookings, optionally filtered by vehicle, requester,
// or status. Zero/empty filters are ignored.
func ListBookings(ctx context.Context, db *sql.DB, vehicleID, requesterID int64, status string) ([]model.Booking, error) {
	query := `SELECT ` + bookingColumns + bookingJoins + ` WHERE 1=1`
	var args []any

	if vehicleID > 0 {
		query += ` AND b.vehicle_id = ?`
		args = append(args, vehicleID)
	}
	if requesterID > 0 {
		query += ` AND b.requester_id = ?`
		args = append(args, requesterID)
	}
	if status != "" {
		query += ` AND b.status = ?`
		args = append(args, status)
	}

	query += ` ORDER BY b.start_time DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

func collectBookings(rows *sql.Rows) ([]model.Booking, error) {
	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// TransitionBooking moves a booking to a new status, enforcing the status
// machine. Used for approve, cancel, request-edit, and complete; returns use
// ReturnBooking, which also records mileage.
func TransitionBooking(ctx context.Context, db *sql.DB, id int64, to string) (*model.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var from string
	err = tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = ?`, id).Scan(&from)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting booking status: %w", err)
	}

	if !model.CanTransitionBooking(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		to, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating booking status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing status change: %w", err)
	}

	return GetBooking(ctx, db, id)
}

// ReturnBooking marks an approved booking as returned, records the end
// mileage on the booking, and bumps the vehicle's mileage. This is the only
// path that mutates vehicle mileage.
func ReturnBooking(ctx context.Context, db *sql.DB, id, mileage int64) (*model.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var vehicleID int64
	var from string
	err = tx.QueryRowContext(ctx,
		`SELECT vehicle_id, status FROM bookings WHERE id = ?`, id,
	).Scan(&vehicleID, &from)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting booking: %w", err)
	}

	if !model.CanTransitionBooking(from, model.BookingReturned) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, model.BookingReturned)
	}

	var current int64
	err = tx.QueryRowContext(ctx,
		`SELECT mileage FROM vehicles WHERE id = ?`, vehicleID,
	).Scan(&current)
	if err != nil {
		return nil, fmt.Errorf("getting vehicle mileage: %w", err)
	}
	if mileage < current {
		return nil, fmt.Errorf("mileage cannot decrease: vehicle is at %d", current)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, end_mileage = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		model.BookingReturned, mileage, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating booking: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE vehicles SET mileage = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		mileage, vehicleID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating vehicle mileage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing return: %w", err)
	}

	return GetBooking(ctx, db, id)
}
