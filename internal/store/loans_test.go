package store

import (
	"context"
	"errors"
	"testing"

	"github.com/matijat/bolnica/internal/db"
	"github.com/matijat/bolnica/internal/model"
)

func TestCreateLoan(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	pump := newTestEquipment(t, database, "Infusion pump", 10)
	chair := newTestEquipment(t, database, "Wheelchair", 4)
	mira := newTestUser(t, database, "mira", model.RoleUser)

	loan, err := CreateLoan(ctx, database, mira.ID, "ward 4 setup", []model.LoanItem{
		{EquipmentID: pump.ID, Quantity: 2},
		{EquipmentID: chair.ID, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	if loan.Status != model.LoanPending {
		t.Errorf("expected status 'pending', got %q", loan.Status)
	}
	if loan.UID == "" {
		t.Error("expected non-empty loan uid")
	}
	if len(loan.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(loan.Items))
	}
	if loan.Items[0].EquipmentName == "" {
		t.Error("expected joined equipment names")
	}
}

func TestCreateLoanEmptyRejected(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mira := newTestUser(t, database, "mira", model.RoleUser)
	_, err := CreateLoan(ctx, database, mira.ID, "", nil)
	var quota *QuotaError
	if !errors.As(err, &quota) {
		t.Fatalf("expected QuotaError, got %v", err)
	}
}

func TestCreateLoanOverQuota(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	pump := newTestEquipment(t, database, "Infusion pump", 5)
	mira := newTestUser(t, database, "mira", model.RoleUser)
	tomaz := newTestUser(t, database, "tomaz", model.RoleUser)

	if _, err := CreateLoan(ctx, database, mira.ID, "", []model.LoanItem{{EquipmentID: pump.ID, Quantity: 3}}); err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	// Only 2 remain.
	_, err := CreateLoan(ctx, database, tomaz.ID, "", []model.LoanItem{{EquipmentID: pump.ID, Quantity: 3}})
	var quota *QuotaError
	if !errors.As(err, &quota) {
		t.Fatalf("expected QuotaError, got %v", err)
	}
	if len(quota.Violations) != 1 || quota.Violations[0].EquipmentID != pump.ID {
		t.Errorf("expected one violation for the pump, got %+v", quota.Violations)
	}
}

func TestCreateLoanDuplicateRowsSummed(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	pump := newTestEquipment(t, database, "Infusion pump", 5)
	mira := newTestUser(t, database, "mira", model.RoleUser)
	tomaz := newTestUser(t, database, "tomaz", model.RoleUser)

	// Two rows of 3 for the same equipment is a request for 6 of 5.
	_, err := CreateLoan(ctx, database, mira.ID, "", []model.LoanItem{
		{EquipmentID: pump.ID, Quantity: 3},
		{EquipmentID: pump.ID, Quantity: 3},
	})
	var quota *QuotaError
	if !errors.As(err, &quota) {
		t.Fatalf("expected QuotaError for duplicate rows summing over quota, got %v", err)
	}
	if len(quota.Violations) != 1 || quota.Violations[0].Quantity != 6 {
		t.Errorf("expected one violation carrying the summed quantity 6, got %+v", quota.Violations)
	}

	// Within quota, the duplicate rows are folded into a single item.
	loan, err := CreateLoan(ctx, database, tomaz.ID, "", []model.LoanItem{
		{EquipmentID: pump.ID, Quantity: 2},
		{EquipmentID: pump.ID, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	if len(loan.Items) != 1 || loan.Items[0].Quantity != 4 {
		t.Errorf("expected a single merged item with quantity 4, got %+v", loan.Items)
	}
}

func TestCancelledLoanReleasesStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	pump := newTestEquipment(t, database, "Infusion pump", 5)
	mira := newTestUser(t, database, "mira", model.RoleUser)
	tomaz := newTestUser(t, database, "tomaz", model.RoleUser)

	loan, _ := CreateLoan(ctx, database, mira.ID, "", []model.LoanItem{{EquipmentID: pump.ID, Quantity: 4}})
	if _, err := TransitionLoan(ctx, database, loan.ID, model.LoanCancelled); err != nil {
		t.Fatalf("TransitionLoan: %v", err)
	}

	if _, err := CreateLoan(ctx, database, tomaz.ID, "", []model.LoanItem{{EquipmentID: pump.ID, Quantity: 4}}); err != nil {
		t.Errorf("cancelled loan should release its units: %v", err)
	}
}

func TestApprovedLoanStillReservesStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	pump := newTestEquipment(t, database, "Infusion pump", 5)
	mira := newTestUser(t, database, "mira", model.RoleUser)
	tomaz := newTestUser(t, database, "tomaz", model.RoleUser)

	loan, _ := CreateLoan(ctx, database, mira.ID, "", []model.LoanItem{{EquipmentID: pump.ID, Quantity: 4}})
	if _, err := TransitionLoan(ctx, database, loan.ID, model.LoanApproved); err != nil {
		t.Fatalf("TransitionLoan: %v", err)
	}

	_, err := CreateLoan(ctx, database, tomaz.ID, "", []model.LoanItem{{EquipmentID: pump.ID, Quantity: 4}})
	var quota *QuotaError
	if !errors.As(err, &quota) {
		t.Fatalf("approved loan should still reserve stock, got %v", err)
	}
}

func TestUpdateLoanItemsIncludesOwnHolding(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	pump := newTestEquipment(t, database, "Infusion pump", 5)
	mira := newTestUser(t, database, "mira", model.RoleUser)

	loan, _ := CreateLoan(ctx, database, mira.ID, "", []model.LoanItem{{EquipmentID: pump.ID, Quantity: 5}})

	// Re-saving the full holding must pass even though nothing is free.
	updated, err := UpdateLoanItems(ctx, database, loan.ID, "restock", []model.LoanItem{{EquipmentID: pump.ID, Quantity: 5}})
	if err != nil {
		t.Fatalf("UpdateLoanItems: %v", err)
	}
	if updated.Purpose != "restock" {
		t.Errorf("expected updated purpose, got %q", updated.Purpose)
	}
	if len(updated.Items) != 1 || updated.Items[0].Quantity != 5 {
		t.Errorf("expected item quantity 5, got %+v", updated.Items)
	}
}

func TestUpdateLoanItemsOnlyPending(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	pump := newTestEquipment(t, database, "Infusion pump", 5)
	mira := newTestUser(t, database, "mira", model.RoleUser)

	loan, _ := CreateLoan(ctx, database, mira.ID, "", []model.LoanItem{{EquipmentID: pump.ID, Quantity: 1}})
	TransitionLoan(ctx, database, loan.ID, model.LoanApproved)

	if _, err := UpdateLoanItems(ctx, database, loan.ID, "", []model.LoanItem{{EquipmentID: pump.ID, Quantity: 2}}); err == nil {
		t.Error("expected error editing an approved loan")
	}
}

func TestLoanLifecycle(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	pump := newTestEquipment(t, database, "Infusion pump", 5)
	mira := newTestUser(t, database, "mira", model.RoleUser)

	loan, _ := CreateLoan(ctx, database, mira.ID, "", []model.LoanItem{{EquipmentID: pump.ID, Quantity: 1}})

	for _, status := range []string{model.LoanApproved, model.LoanReturned, model.LoanVerified} {
		updated, err := TransitionLoan(ctx, database, loan.ID, status)
		if err != nil {
			t.Fatalf("TransitionLoan to %s: %v", status, err)
		}
		if updated.Status != status {
			t.Errorf("expected status %q, got %q", status, updated.Status)
		}
	}

	// Verified is terminal.
	_, err := TransitionLoan(ctx, database, loan.ID, model.LoanApproved)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestListLoansFilters(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	pump := newTestEquipment(t, database, "Infusion pump", 10)
	mira := newTestUser(t, database, "mira", model.RoleUser)
	tomaz := newTestUser(t, database, "tomaz", model.RoleUser)

	CreateLoan(ctx, database, mira.ID, "", []model.LoanItem{{EquipmentID: pump.ID, Quantity: 1}})
	loan2, _ := CreateLoan(ctx, database, tomaz.ID, "", []model.LoanItem{{EquipmentID: pump.ID, Quantity: 2}})
	TransitionLoan(ctx, database, loan2.ID, model.LoanApproved)

	all, err := ListLoans(ctx, database, 0, "")
	if err != nil {
		t.Fatalf("ListLoans: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 loans, got %d", len(all))
	}

	byRequester, _ := ListLoans(ctx, database, mira.ID, "")
	if len(byRequester) != 1 || byRequester[0].RequesterID != mira.ID {
		t.Errorf("expected 1 loan for mira, got %d", len(byRequester))
	}

	approved, _ := ListLoans(ctx, database, 0, model.LoanApproved)
	if len(approved) != 1 || approved[0].ID != loan2.ID {
		t.Errorf("expected 1 approved loan, got %d", len(approved))
	}
}
