// Package ledger implements the equipment reservation ledger: deriving how
// many units of each catalog item are free to reserve, and validating loan
// submissions against those quotas.
//
// All functions are pure computations over catalog and loan data already
// loaded into memory; they never return errors, only structured results.
package ledger

import (
	"fmt"

	"github.com/matijat/bolnica/internal/model"
)

// Availability is the derived stock position of one equipment item.
type Availability struct {
	Total     int `json:"total"`
	Reserved  int `json:"reserved"`
	Remaining int `json:"remaining"`
}

// ComputeRemaining returns the availability of every catalog item, keyed by
// equipment ID. Reserved sums quantities across all loans that currently hold
// stock (pending or approved). Remaining is clamped at zero: an administrator
// lowering total_quantity below the reserved sum leaves the ledger transiently
// oversubscribed, and a negative remaining count must never surface.
func ComputeRemaining(catalog []model.Equipment, loans []model.Loan) map[int64]Availability {
	result := make(map[int64]Availability, len(catalog))
	for _, eq := range catalog {
		result[eq.ID] = Availability{Total: eq.TotalQuantity, Remaining: eq.TotalQuantity}
	}

	for _, loan := range loans {
		if !model.LoanReservesStock(loan.Status) {
			continue
		}
		for _, item := range loan.Items {
			avail, ok := result[item.EquipmentID]
			if !ok {
				// Loan references an item no longer in the catalog.
				continue
			}
			avail.Reserved += item.Quantity
			avail.Remaining = avail.Total - avail.Reserved
			if avail.Remaining < 0 {
				avail.Remaining = 0
			}
			result[item.EquipmentID] = avail
		}
	}

	return result
}

// EditableQuota returns the maximum quantity of one equipment item assignable
// while editing an existing loan. The quantity the edited loan already holds
// is added back to the remaining count; otherwise a requester could never
// re-save their own unchanged quantity, since it is already counted as
// reserved against itself.
func EditableQuota(equipmentID int64, catalog []model.Equipment, loans []model.Loan, editedLoanID int64) int {
	remaining := ComputeRemaining(catalog, loans)[equipmentID].Remaining

	for _, loan := range loans {
		if loan.ID != editedLoanID || !model.LoanReservesStock(loan.Status) {
			continue
		}
		for _, item := range loan.Items {
			if item.EquipmentID == equipmentID {
				remaining += item.Quantity
			}
		}
	}

	return remaining
}

// Violation describes one rejected row of a loan submission.
// EquipmentID is zero for submission-level violations.
type Violation struct {
	EquipmentID int64  `json:"equipment_id,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
	Reason      string `json:"reason"`
}

// ValidateSubmission checks proposed loan items against per-item quotas and
// returns every violation found, so the caller can highlight all offending
// rows at once. Rows naming the same equipment are summed before the quota
// comparison: two rows of 3 are one request for 6. An empty result means the
// submission is acceptable.
func ValidateSubmission(items []model.LoanItem, quota map[int64]int) []Violation {
	if len(items) == 0 {
		return []Violation{{Reason: "select at least one item"}}
	}

	totals := make(map[int64]int)
	for _, item := range items {
		if item.Quantity > 0 {
			totals[item.EquipmentID] += item.Quantity
		}
	}

	var violations []Violation
	reported := make(map[int64]bool)
	for _, item := range items {
		if item.Quantity <= 0 {
			violations = append(violations, Violation{
				EquipmentID: item.EquipmentID,
				Quantity:    item.Quantity,
				Reason:      "quantity must be positive",
			})
			continue
		}

		max, ok := quota[item.EquipmentID]
		if !ok {
			violations = append(violations, Violation{
				EquipmentID: item.EquipmentID,
				Quantity:    item.Quantity,
				Reason:      "unknown equipment item",
			})
			continue
		}

		// One violation per over-quota equipment, carrying the summed
		// quantity, at the first row that names it.
		if total := totals[item.EquipmentID]; total > max && !reported[item.EquipmentID] {
			reported[item.EquipmentID] = true
			violations = append(violations, Violation{
				EquipmentID: item.EquipmentID,
				Quantity:    total,
				Reason:      fmt.Sprintf("quantity %d exceeds available %d", total, max),
			})
		}
	}

	return violations
}
