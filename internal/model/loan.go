package model

import "time"

// Loan represents a request to withdraw equipment items, tracked through an
// approval/return lifecycle. Items are fixed at create/edit time.
type Loan struct {
	ID          int64      `json:"id"`
	UID         string     `json:"uid"`
	RequesterID int64      `json:"requester_id"`
	Purpose     string     `json:"purpose,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Items       []LoanItem `json:"items"`

	// Joined field (not always populated).
	RequesterName string `json:"requester_name,omitempty"`
}

// LoanItem is a single (equipment, quantity) line of a loan.
type LoanItem struct {
	EquipmentID int64 `json:"equipment_id"`
	Quantity    int   `json:"quantity"`

	// Joined field (not always populated).
	EquipmentName string `json:"equipment_name,omitempty"`
}

// Loan statuses.
const (
	LoanPending   = "pending"
	LoanApproved  = "approved"
	LoanCancelled = "cancelled"
	LoanReturned  = "returned"
	LoanVerified  = "verified"
)

// loanTransitions lists the allowed status transitions.
// Cancelled and verified are terminal.
var loanTransitions = map[string][]string{
	LoanPending:   {LoanApproved, LoanCancelled},
	LoanApproved:  {LoanReturned},
	LoanReturned:  {LoanVerified},
	LoanCancelled: {},
	LoanVerified:  {},
}

// CanTransitionLoan reports whether from -> to is an allowed loan status
// transition.
func CanTransitionLoan(from, to string) bool {
	for _, s := range loanTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// LoanReservesStock reports whether a loan in the given status holds its
// quantities against the equipment catalog. Returned and verified loans have
// implicitly released their units back to the pool.
func LoanReservesStock(status string) bool {
	return status == LoanPending || status == LoanApproved
}
