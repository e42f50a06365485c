package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/matijat/bolnica/internal/model"
)

func TestWriteBookings(t *testing.T) {
	mileage := int64(12500)
	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	bookings := []model.Booking{
		{
			UID:           "b-1",
			VehicleName:   "Ambulance 3",
			RequesterName: "mira",
			StartTime:     start,
			EndTime:       start.Add(4 * time.Hour),
			Purpose:       "patient transfer",
			Status:        model.BookingCompleted,
			EndMileage:    &mileage,
			CreatedAt:     start.Add(-24 * time.Hour),
		},
		{
			UID:           "b-2",
			VehicleName:   "Van 1",
			RequesterName: "tomaz",
			StartTime:     start,
			EndTime:       start.Add(time.Hour),
			Status:        model.BookingPending,
			CreatedAt:     start,
		},
	}

	var buf bytes.Buffer
	if err := WriteBookings(&buf, bookings); err != nil {
		t.Fatalf("WriteBookings: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if records[1][0] != "b-1" || records[1][7] != "12500" {
		t.Errorf("unexpected first row: %v", records[1])
	}
	if records[2][7] != "" {
		t.Errorf("pending booking should have empty end_mileage, got %q", records[2][7])
	}
}

func TestWriteLoansOneRowPerItem(t *testing.T) {
	created := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	loans := []model.Loan{
		{
			UID:           "l-1",
			RequesterName: "mira",
			Purpose:       "ward 4 setup",
			Status:        model.LoanApproved,
			CreatedAt:     created,
			Items: []model.LoanItem{
				{EquipmentID: 1, Quantity: 2, EquipmentName: "Infusion pump"},
				{EquipmentID: 2, Quantity: 1, EquipmentName: "Wheelchair"},
			},
		},
		{
			UID:           "l-2",
			RequesterName: "tomaz",
			Status:        model.LoanCancelled,
			CreatedAt:     created,
		},
	}

	var buf bytes.Buffer
	if err := WriteLoans(&buf, loans); err != nil {
		t.Fatalf("WriteLoans: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(records))
	}
	if records[1][2] != "Infusion pump" || records[1][3] != "2" {
		t.Errorf("unexpected first item row: %v", records[1])
	}
	if records[2][0] != "l-1" {
		t.Errorf("second item should belong to the same loan, got %v", records[2])
	}
	if records[3][0] != "l-2" || records[3][3] != "0" {
		t.Errorf("empty loan should still produce a row: %v", records[3])
	}
}

func TestWriteLoansEscapesCommas(t *testing.T) {
	loans := []model.Loan{
		{
			UID:           "l-3",
			RequesterName: "mira",
			Purpose:       "ER, triage, overflow",
			Status:        model.LoanPending,
			Items:         []model.LoanItem{{EquipmentID: 1, Quantity: 1, EquipmentName: "Monitor"}},
		},
	}

	var buf bytes.Buffer
	if err := WriteLoans(&buf, loans); err != nil {
		t.Fatalf("WriteLoans: %v", err)
	}
	if !strings.Contains(buf.String(), `"ER, triage, overflow"`) {
		t.Errorf("purpose with commas should be quoted, got:\n%s", buf.String())
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if records[1][4] != "ER, triage, overflow" {
		t.Errorf("round-tripped purpose mismatch: %q", records[1][4])
	}
}
