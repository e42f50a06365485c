package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/matijat/bolnica/internal/model"
)

func newTestUser(t *testing.T, database *sql.DB, username, role string) *model.User {
	t.Helper()
	user, err := CreateUser(context.Background(), database, username, "not-a-real-hash", role)
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return user
}

func newTestVehicle(t *testing.T, database *sql.DB, name, plate string) *model.Vehicle {
	t.Helper()
	vehicle, err := CreateVehicle(context.Background(), database, name, plate, 1000)
	if err != nil {
		t.Fatalf("CreateVehicle(%s): %v", name, err)
	}
	return vehicle
}

func newTestEquipment(t *testing.T, database *sql.DB, name string, total int) *model.Equipment {
	t.Helper()
	eq, err := CreateEquipment(context.Background(), database, name, "", total)
	if err != nil {
		t.Fatalf("CreateEquipment(%s): %v", name, err)
	}
	return eq
}
