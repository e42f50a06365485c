package store

import (
	"context"
	"testing"
	"time"

	"github.com/matijat/bolnica/internal/db"
	"github.com/matijat/bolnica/internal/model"
)

func TestCreateAndGetVehicle(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	vehicle := newTestVehicle(t, database, "Ambulance 3", "LJ 12-ABC")
	if vehicle.Name != "Ambulance 3" {
		t.Errorf("expected name 'Ambulance 3', got %q", vehicle.Name)
	}
	if vehicle.Mileage != 1000 {
		t.Errorf("expected mileage 1000, got %d", vehicle.Mileage)
	}

	got, err := GetVehicle(ctx, database, vehicle.ID)
	if err != nil {
		t.Fatalf("GetVehicle: %v", err)
	}
	if got == nil || got.LicensePlate != "LJ 12-ABC" {
		t.Errorf("expected to fetch created vehicle, got %+v", got)
	}
}

func TestCreateVehicleNegativeMileage(t *testing.T) {
	database := db.NewTestDB(t)

	if _, err := CreateVehicle(context.Background(), database, "Van", "LJ 99-ZZZ", -5); err == nil {
		t.Error("expected error for negative mileage")
	}
}

func TestUpdateVehicleDoesNotTouchMileage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	vehicle := newTestVehicle(t, database, "Van 1", "LJ 11-AAA")
	if err := UpdateVehicle(ctx, database, vehicle.ID, "Van 1 (renamed)", "LJ 11-BBB"); err != nil {
		t.Fatalf("UpdateVehicle: %v", err)
	}

	got, _ := GetVehicle(ctx, database, vehicle.ID)
	if got.Name != "Van 1 (renamed)" || got.LicensePlate != "LJ 11-BBB" {
		t.Errorf("expected updated name and plate, got %+v", got)
	}
	if got.Mileage != 1000 {
		t.Errorf("mileage should be untouched, got %d", got.Mileage)
	}
}

func TestDeleteVehicleBlockedByActiveBooking(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	vehicle := newTestVehicle(t, database, "Van 1", "LJ 11-AAA")
	user := newTestUser(t, database, "mira", model.RoleUser)

	start := time.Now().Add(24 * time.Hour)
	booking, err := CreateBooking(ctx, database, vehicle.ID, user.ID, start, start.Add(2*time.Hour), "transfer")
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	if err := DeleteVehicle(ctx, database, vehicle.ID); err == nil {
		t.Error("expected delete to fail with a pending booking")
	}

	// Cancelling the booking unblocks the delete.
	if _, err := TransitionBooking(ctx, database, booking.ID, model.BookingCancelled); err != nil {
		t.Fatalf("TransitionBooking: %v", err)
	}
	if err := DeleteVehicle(ctx, database, vehicle.ID); err != nil {
		t.Errorf("expected delete to succeed after cancellation: %v", err)
	}

	vehicles, _ := ListVehicles(ctx, database)
	if len(vehicles) != 0 {
		t.Errorf("expected 0 vehicles after soft delete, got %d", len(vehicles))
	}
}
