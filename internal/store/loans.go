package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/matijat/bolnica/internal/ledger"
	"github.com/matijat/bolnica/internal/model"
)

// querier is the subset of *sql.DB and *sql.Tx the loan queries need.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// QuotaError reports that a loan submission exceeds the available stock.
// Violations carries one entry per offending row so the caller can highlight
// all of them at once.
type QuotaError struct {
	Violations []ledger.Violation
}

func (e *QuotaError) Error() string {
	reasons := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		reasons[i] = v.Reason
	}
	return "loan submission rejected: " + strings.Join(reasons, "; ")
}

// CreateLoan creates a loan with its items after re-running the quota check
// inside the write transaction. The client performs the same check
// optimistically against possibly stale data; this is the authoritative one.
func CreateLoan(ctx context.Context, db *sql.DB, requesterID int64, purpose string, items []model.LoanItem) (*model.Loan, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	quota, err := activeQuota(ctx, tx, 0)
	if err != nil {
		return nil, err
	}
	if violations := ledger.ValidateSubmission(items, quota); len(violations) > 0 {
		return nil, &QuotaError{Violations: violations}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO loans (uid, requester_id, purpose) VALUES (?, ?, ?)`,
		uuid.New().String(), requesterID, purpose,
	)
	if err != nil {
		return nil, fmt.Errorf("creating loan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting loan id: %w", err)
	}

	if err := insertLoanItems(ctx, tx, id, items); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing loan: %w", err)
	}

	return GetLoan(ctx, db, id)
}

// UpdateLoanItems replaces a pending loan's items and purpose. The quota for
// each item adds back the quantity this loan already holds, so an unchanged
// submission always passes.
func UpdateLoanItems(ctx context.Context, db *sql.DB, id int64, purpose string, items []model.LoanItem) (*model.Loan, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM loans WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting loan status: %w", err)
	}
	if status != model.LoanPending {
		return nil, fmt.Errorf("only pending loans can be edited")
	}

	quota, err := activeQuota(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if violations := ledger.ValidateSubmission(items, quota); len(violations) > 0 {
		return nil, &QuotaError{Violations: violations}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM loan_items WHERE loan_id = ?`, id); err != nil {
		return nil, fmt.Errorf("clearing loan items: %w", err)
	}
	if err := insertLoanItems(ctx, tx, id, items); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE loans SET purpose = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		purpose, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating loan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing loan update: %w", err)
	}

	return GetLoan(ctx, db, id)
}

// insertLoanItems writes the loan's rows. Rows naming the same equipment are
// folded into one, matching how the ledger sums them; (loan, equipment) is the
// table's primary key.
func insertLoanItems(ctx context.Context, tx *sql.Tx, loanID int64, items []model.LoanItem) error {
	merged := make(map[int64]int, len(items))
	var order []int64
	for _, item := range items {
		if _, seen := merged[item.EquipmentID]; !seen {
			order = append(order, item.EquipmentID)
		}
		merged[item.EquipmentID] += item.Quantity
	}

	for _, equipmentID := range order {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO loan_items (loan_id, equipment_id, quantity) VALUES (?, ?, ?)`,
			loanID, equipmentID, merged[equipmentID],
		)
		if err != nil {
			return fmt.Errorf("inserting loan item: %w", err)
		}
	}
	return nil
}

// activeQuota computes the per-equipment assignable quantity. With a non-zero
// editedLoanID the quota includes what that loan already holds.
func activeQuota(ctx context.Context, q querier, editedLoanID int64) (map[int64]int, error) {
	catalog, err := catalogForLedger(ctx, q)
	if err != nil {
		return nil, err
	}
	loans, err := reservingLoans(ctx, q)
	if err != nil {
		return nil, err
	}

	quota := make(map[int64]int, len(catalog))
	if editedLoanID == 0 {
		for id, avail := range ledger.ComputeRemaining(catalog, loans) {
			quota[id] = avail.Remaining
		}
	} else {
		for _, eq := range catalog {
			quota[eq.ID] = ledger.EditableQuota(eq.ID, catalog, loans, editedLoanID)
		}
	}
	return quota, nil
}

// catalogForLedger loads the fields of the equipment catalog the ledger reads.
func catalogForLedger(ctx context.Context, q querier) ([]model.Equipment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, total_quantity FROM equipment WHERE deleted_at IS NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	defer rows.Close()

	var catalog []model.Equipment
	for rows.Next() {
		var eq model.Equipment
		if err := rows.Scan(&eq.ID, &eq.TotalQuantity); err != nil {
			return nil, fmt.Errorf("scanning catalog entry: %w", err)
		}
		catalog = append(catalog, eq)
	}
	return catalog, rows.Err()
}

// reservingLoans loads all loans currently holding stock, with their items.
func reservingLoans(ctx context.Context, q querier) ([]model.Loan, error) {
	return queryLoans(ctx, q, ` WHERE l.status IN (?, ?)`, model.LoanPending, model.LoanApproved)
}

// ListReservingLoans returns all pending and approved loans with their items.
// The API layer feeds these to the ledger for availability and quota queries.
func ListReservingLoans(ctx context.Context, db *sql.DB) ([]model.Loan, error) {
	return reservingLoans(ctx, db)
}

// GetLoan returns a loan with its items by ID.
func GetLoan(ctx context.Context, db *sql.DB, id int64) (*model.Loan, error) {
	loans, err := queryLoans(ctx, db, ` WHERE l.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, nil
	}
	return &loans[0], nil
}

// ListLoans returns loans with their items, optionally filtered by requester
// or status. Zero/empty filters are ignored.
func ListLoans(ctx context.Context, db *sql.DB, requesterID int64, status string) ([]model.Loan, error) {
	where := ` WHERE 1=1`
	var args []any

	if requesterID > 0 {
		where += ` AND l.requester_id = ?`
		args = append(args, requesterID)
	}
	if status != "" {
		where += ` AND l.status = ?`
		args = append(args, status)
	}

	return queryLoans(ctx, db, where, args...)
}

// queryLoans loads loans matching the WHERE clause, then attaches their items
// with a second query over the same clause.
func queryLoans(ctx context.Context, q querier, where string, args ...any) ([]model.Loan, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT l.id, l.uid, l.requester_id, l.purpose, l.status, l.created_at, l.updated_at,
		        u.username AS requester_name
		 FROM loans l
		 JOIN users u ON u.id = l.requester_id`+where+`
		 ORDER BY l.created_at DESC, l.id DESC`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing loans: %w", err)
	}
	defer rows.Close()

	var loans []model.Loan
	index := make(map[int64]int)
	for rows.Next() {
		var l model.Loan
		var purpose sql.NullString
		if err := rows.Scan(&l.ID, &l.UID, &l.RequesterID, &purpose, &l.Status, &l.CreatedAt, &l.UpdatedAt, &l.RequesterName); err != nil {
			return nil, fmt.Errorf("scanning loan: %w", err)
		}
		l.Purpose = purpose.String
		l.Items = []model.LoanItem{}
		index[l.ID] = len(loans)
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, nil
	}

	itemRows, err := q.QueryContext(ctx,
		`SELECT li.loan_id, li.equipment_id, li.quantity, e.name AS equipment_name
		 FROM loan_items li
		 JOIN equipment e ON e.id = li.equipment_id
		 JOIN loans l ON l.id = li.loan_id
		 JOIN users u ON u.id = l.requester_id`+where+`
		 ORDER BY e.name`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing loan items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var loanID int64
		var item model.LoanItem
		if err := itemRows.Scan(&loanID, &item.EquipmentID, &item.Quantity, &item.EquipmentName); err != nil {
			return nil, fmt.Errorf("scanning loan item: %w", err)
		}
		if i, ok := index[loanID]; ok {
			loans[i].Items = append(loans[i].Items, item)
		}
	}
	return loans, itemRows.Err()
}

// TransitionLoan moves a loan to a new status, enforcing the status machine.
// Quantities are reserved only while the loan is pending or approved, so
// moving past those statuses implicitly releases the units back to the pool.
func TransitionLoan(ctx context.Context, db *sql.DB, id int64, to string) (*model.Loan, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var from string
	err = tx.QueryRowContext(ctx, `SELECT status FROM loans WHERE id = ?`, id).Scan(&from)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting loan status: %w", err)
	}

	if !model.CanTransitionLoan(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE loans SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		to, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating loan status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing status change: %w", err)
	}

	return GetLoan(ctx, db, id)
}
