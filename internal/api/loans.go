package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/matijat/bolnica/internal/model"
	"github.com/matijat/bolnica/internal/store"
)

// LoansHandler handles equipment loan endpoints.
type LoansHandler struct {
	DB *sql.DB
}

type loanRequest struct {
	Purpose string           `json:"purpose"`
	Items   []model.LoanItem `json:"items"`
}

// writeLoanError maps store errors to status codes. Quota violations carry
// the per-item detail so the client can flag every offending row at once.
func writeLoanError(w http.ResponseWriter, err error) {
	var quota *store.QuotaError
	if errors.As(err, &quota) {
		jsonResponse(w, http.StatusBadRequest, map[string]any{
			"error":      "loan exceeds available stock",
			"violations": quota.Violations,
		})
		return
	}
	if errors.Is(err, store.ErrInvalidTransition) {
		jsonError(w, http.StatusConflict, err.Error())
		return
	}
	jsonError(w, http.StatusBadRequest, err.Error())
}

// List handles GET /api/loans. Regular users only see their own loans;
// approvers and admins see everything, with optional requester_id and status
// filters.
func (h *LoansHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var requesterID int64
	if raw := r.URL.Query().Get("requester_id"); raw != "" {
		requesterID, _ = strconv.ParseInt(raw, 10, 64)
	}
	status := r.URL.Query().Get("status")

	if !model.RoleAtLeast(claims.Role, model.RoleApprover) {
		requesterID = claims.UserID
	}

	loans, err := store.ListLoans(r.Context(), h.DB, requesterID, status)
	if err != nil {
		slog.Error("failed to list loans", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list loans")
		return
	}
	if loans == nil {
		loans = []model.Loan{}
	}
	jsonResponse(w, http.StatusOK, loans)
}

// Create handles POST /api/loans.
func (h *LoansHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	loan, err := store.CreateLoan(r.Context(), h.DB, claims.UserID, req.Purpose, req.Items)
	if err != nil {
		writeLoanError(w, err)
		return
	}

	slog.Info("loan created", "user", claims.Username, "loan", loan.UID, "items", len(loan.Items))
	jsonResponse(w, http.StatusCreated, loan)
}

// Get handles GET /api/loans/{id}. Regular users can only fetch their own.
func (h *LoansHandler) Get(w http.ResponseWriter, r *http.Request) {
	loan, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, loan)
}

// Update handles PUT /api/loans/{id}. Only the requester can edit, and only
// while the loan is pending.
func (h *LoansHandler) Update(w http.ResponseWriter, r *http.Request) {
	loan, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	if loan.RequesterID != claims.UserID {
		jsonError(w, http.StatusForbidden, "only the requester can edit a loan")
		return
	}

	var req loanRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := store.UpdateLoanItems(r.Context(), h.DB, loan.ID, req.Purpose, req.Items)
	if err != nil {
		writeLoanError(w, err)
		return
	}

	slog.Info("loan updated", "user", claims.Username, "loan", updated.UID)
	jsonResponse(w, http.StatusOK, updated)
}

// Approve handles POST /api/loans/{id}/approve (approver).
func (h *LoansHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.LoanApproved)
}

// Cancel handles POST /api/loans/{id}/cancel. The requester can cancel their
// own pending loan; approvers can cancel any pending loan. Cancelling
// releases the reserved units back to the pool.
func (h *LoansHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	loan, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	updated, err := store.TransitionLoan(r.Context(), h.DB, loan.ID, model.LoanCancelled)
	if err != nil {
		writeLoanError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("loan cancelled", "user", claims.Username, "loan", updated.UID)
	jsonResponse(w, http.StatusOK, updated)
}

// Return handles POST /api/loans/{id}/return. The requester reports the
// equipment as handed back; the stock stays reserved until an approver
// verifies it.
func (h *LoansHandler) Return(w http.ResponseWriter, r *http.Request) {
	loan, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	updated, err := store.TransitionLoan(r.Context(), h.DB, loan.ID, model.LoanReturned)
	if err != nil {
		writeLoanError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("loan returned", "user", claims.Username, "loan", updated.UID)
	jsonResponse(w, http.StatusOK, updated)
}

// Verify handles POST /api/loans/{id}/verify (approver). Confirms the
// returned equipment is accounted for and closes the loan.
func (h *LoansHandler) Verify(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.LoanVerified)
}

// transition applies an approver-driven status change.
func (h *LoansHandler) transition(w http.ResponseWriter, r *http.Request, to string) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	loan, err := store.TransitionLoan(r.Context(), h.DB, id, to)
	if err != nil {
		writeLoanError(w, err)
		return
	}
	if loan == nil {
		jsonError(w, http.StatusNotFound, "loan not found")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("loan status changed", "user", claims.Username, "loan", loan.UID, "status", to)
	jsonResponse(w, http.StatusOK, loan)
}

// loadOwned fetches the loan from the path and enforces that regular users
// only touch their own loans. Writes the error response on failure.
func (h *LoansHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*model.Loan, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return nil, false
	}

	loan, err := store.GetLoan(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get loan", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get loan")
		return nil, false
	}
	if loan == nil {
		jsonError(w, http.StatusNotFound, "loan not found")
		return nil, false
	}

	claims := GetClaims(r.Context())
	if loan.RequesterID != claims.UserID && !model.RoleAtLeast(claims.Role, model.RoleApprover) {
		jsonError(w, http.StatusForbidden, "insufficient permissions")
		return nil, false
	}
	return loan, true
}
