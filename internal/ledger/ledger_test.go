package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matijat/bolnica/internal/model"
)

func equipment(id int64, total int) model.Equipment {
	return model.Equipment{ID: id, Name: "Item", TotalQuantity: total}
}

func loan(id int64, status string, items ...model.LoanItem) model.Loan {
	return model.Loan{ID: id, Status: status, Items: items}
}

func TestComputeRemaining(t *testing.T) {
	catalog := []model.Equipment{equipment(1, 10), equipment(2, 4)}
	loans := []model.Loan{
		loan(1, model.LoanPending, model.LoanItem{EquipmentID: 1, Quantity: 3}),
		loan(2, model.LoanApproved,
			model.LoanItem{EquipmentID: 1, Quantity: 2},
			model.LoanItem{EquipmentID: 2, Quantity: 4}),
		// Released lifecycles do not count against the pool.
		loan(3, model.LoanReturned, model.LoanItem{EquipmentID: 1, Quantity: 5}),
		loan(4, model.LoanCancelled, model.LoanItem{EquipmentID: 2, Quantity: 1}),
		loan(5, model.LoanVerified, model.LoanItem{EquipmentID: 2, Quantity: 2}),
	}

	avail := ComputeRemaining(catalog, loans)

	assert.Equal(t, Availability{Total: 10, Reserved: 5, Remaining: 5}, avail[1])
	assert.Equal(t, Availability{Total: 4, Reserved: 4, Remaining: 0}, avail[2])
}

func TestComputeRemaining_NeverNegative(t *testing.T) {
	// An admin lowered total_quantity to 5 after 7 units were reserved.
	catalog := []model.Equipment{equipment(1, 5)}
	loans := []model.Loan{
		loan(1, model.LoanApproved, model.LoanItem{EquipmentID: 1, Quantity: 7}),
	}

	avail := ComputeRemaining(catalog, loans)

	assert.Equal(t, 7, avail[1].Reserved)
	assert.Equal(t, 0, avail[1].Remaining, "remaining must be clamped at zero")
}

func TestComputeRemaining_IgnoresUnknownEquipment(t *testing.T) {
	catalog := []model.Equipment{equipment(1, 3)}
	loans := []model.Loan{
		loan(1, model.LoanPending, model.LoanItem{EquipmentID: 99, Quantity: 2}),
	}

	avail := ComputeRemaining(catalog, loans)

	require.Len(t, avail, 1)
	assert.Equal(t, 3, avail[1].Remaining)
}

func TestComputeRemaining_StatusTransitionReleasesStock(t *testing.T) {
	catalog := []model.Equipment{equipment(1, 10)}
	held := loan(1, model.LoanApproved, model.LoanItem{EquipmentID: 1, Quantity: 4})

	before := ComputeRemaining(catalog, []model.Loan{held})
	require.Equal(t, 6, before[1].Remaining)

	held.Status = model.LoanReturned
	after := ComputeRemaining(catalog, []model.Loan{held})

	assert.Equal(t, 10, after[1].Remaining, "returning the loan must release its full quantity")
}

func TestEditableQuota_IncludesOwnHolding(t *testing.T) {
	// Item 1 has total 10, with 8 reserved across all records; the record being
	// edited holds 3 of those, so the editor may assign up to (10-8)+3 = 5.
	catalog := []model.Equipment{equipment(1, 10)}
	loans := []model.Loan{
		loan(1, model.LoanPending, model.LoanItem{EquipmentID: 1, Quantity: 3}),
		loan(2, model.LoanApproved, model.LoanItem{EquipmentID: 1, Quantity: 5}),
	}

	assert.Equal(t, 5, EditableQuota(1, catalog, loans, 1))
	// Editing the other record: (10-8)+5 = 7.
	assert.Equal(t, 7, EditableQuota(1, catalog, loans, 2))
	// Editing an unrelated record adds nothing back.
	assert.Equal(t, 2, EditableQuota(1, catalog, loans, 99))
}

func TestEditableQuota_ReleasedLoanAddsNothing(t *testing.T) {
	catalog := []model.Equipment{equipment(1, 10)}
	loans := []model.Loan{
		loan(1, model.LoanReturned, model.LoanItem{EquipmentID: 1, Quantity: 3}),
	}

	// The returned loan's units are already back in the pool.
	assert.Equal(t, 10, EditableQuota(1, catalog, loans, 1))
}

func TestValidateSubmission(t *testing.T) {
	quota := map[int64]int{1: 5, 2: 0}

	tests := []struct {
		name       string
		items      []model.LoanItem
		violations int
	}{
		{"valid single item", []model.LoanItem{{EquipmentID: 1, Quantity: 5}}, 0},
		{"empty submission", nil, 1},
		{"zero quantity", []model.LoanItem{{EquipmentID: 1, Quantity: 0}}, 1},
		{"negative quantity", []model.LoanItem{{EquipmentID: 1, Quantity: -2}}, 1},
		{"over quota", []model.LoanItem{{EquipmentID: 1, Quantity: 6}}, 1},
		{"exhausted item", []model.LoanItem{{EquipmentID: 2, Quantity: 1}}, 1},
		{"unknown item", []model.LoanItem{{EquipmentID: 9, Quantity: 1}}, 1},
		{"every offending row reported", []model.LoanItem{
			{EquipmentID: 1, Quantity: 0},
			{EquipmentID: 1, Quantity: 6},
			{EquipmentID: 2, Quantity: 1},
		}, 3},
		{"duplicate rows summed over quota", []model.LoanItem{
			{EquipmentID: 1, Quantity: 3},
			{EquipmentID: 1, Quantity: 3},
		}, 1},
		{"duplicate rows summed within quota", []model.LoanItem{
			{EquipmentID: 1, Quantity: 2},
			{EquipmentID: 1, Quantity: 2},
		}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := ValidateSubmission(tt.items, quota)
			assert.Len(t, violations, tt.violations)
		})
	}
}

func TestValidateSubmission_DuplicateRowsAggregate(t *testing.T) {
	// Splitting one request across two rows must not slip past the quota:
	// 3 + 3 of the same equipment is a request for 6 against a quota of 5.
	violations := ValidateSubmission(
		[]model.LoanItem{
			{EquipmentID: 1, Quantity: 3},
			{EquipmentID: 1, Quantity: 3},
		},
		map[int64]int{1: 5},
	)

	require.Len(t, violations, 1)
	assert.Equal(t, int64(1), violations[0].EquipmentID)
	assert.Equal(t, 6, violations[0].Quantity, "violation must carry the summed quantity")
	assert.Contains(t, violations[0].Reason, "exceeds available 5")
}

func TestValidateSubmission_ViolationDetails(t *testing.T) {
	violations := ValidateSubmission(
		[]model.LoanItem{{EquipmentID: 1, Quantity: 7}},
		map[int64]int{1: 5},
	)

	require.Len(t, violations, 1)
	assert.Equal(t, int64(1), violations[0].EquipmentID)
	assert.Equal(t, 7, violations[0].Quantity)
	assert.Contains(t, violations[0].Reason, "exceeds")
}
