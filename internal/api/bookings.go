package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/matijat/bolnica/internal/model"
	"github.com/matijat/bolnica/internal/schedule"
	"github.com/matijat/bolnica/internal/store"
)

// BookingsHandler handles vehicle booking endpoints.
type BookingsHandler struct {
	DB *sql.DB
}

type bookingRequest struct {
	VehicleID int64     `json:"vehicle_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Purpose   string    `json:"purpose"`
}

type conflictResponse struct {
	Error    string             `json:"error"`
	Conflict *schedule.Conflict `json:"conflict"`
}

type returnRequest struct {
	Mileage int64 `json:"mileage"`
}

// writeBookingError maps store errors to status codes: overlaps are 409 with
// the conflicting booking attached, status machine violations are 409, and the
// rest of the validation failures are 400.
func writeBookingError(w http.ResponseWriter, err error) {
	var conflict *store.ConflictError
	if errors.As(err, &conflict) {
		jsonResponse(w, http.StatusConflict, conflictResponse{
			Error: "booking conflicts with an existing booking",
			Conflict: &schedule.Conflict{
				Axis:    conflict.Axis,
				Booking: conflict.Booking,
			},
		})
		return
	}
	if errors.Is(err, store.ErrInvalidTransition) {
		jsonError(w, http.StatusConflict, err.Error())
		return
	}
	jsonError(w, http.StatusBadRequest, err.Error())
}

// List handles GET /api/bookings. Regular users only see their own bookings;
// approvers and admins see everything, with optional vehicle_id, requester_id,
// and status filters.
func (h *BookingsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var vehicleID, requesterID int64
	if raw := r.URL.Query().Get("vehicle_id"); raw != "" {
		vehicleID, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw := r.URL.Query().Get("requester_id"); raw != "" {
		requesterID, _ = strconv.ParseInt(raw, 10, 64)
	}
	status := r.URL.Query().Get("status")

	if !model.RoleAtLeast(claims.Role, model.RoleApprover) {
		requesterID = claims.UserID
	}

	bookings, err := store.ListBookings(r.Context(), h.DB, vehicleID, requesterID, status)
	if err != nil {
		slog.Error("failed to list bookings", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	jsonResponse(w, http.StatusOK, bookings)
}

// Create handles POST /api/bookings.
func (h *BookingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.VehicleID <= 0 || req.StartTime.IsZero() || req.EndTime.IsZero() {
		jsonError(w, http.StatusBadRequest, "vehicle_id, start_time, and end_time required")
		return
	}

	claims := GetClaims(r.Context())
	booking, err := store.CreateBooking(r.Context(), h.DB, req.VehicleID, claims.UserID, req.StartTime, req.EndTime, req.Purpose)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	slog.Info("booking created", "user", claims.Username, "booking", booking.UID, "vehicle_id", booking.VehicleID)
	jsonResponse(w, http.StatusCreated, booking)
}

// Check handles POST /api/bookings/check. It runs the availability check
// without writing anything, so clients can flag conflicts while the form is
// still open. The response is advisory; creates and edits re-check.
func (h *BookingsHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req struct {
		bookingRequest
		ExcludeBookingID int64 `json:"exclude_booking_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.VehicleID <= 0 || req.StartTime.IsZero() || req.EndTime.IsZero() {
		jsonError(w, http.StatusBadRequest, "vehicle_id, start_time, and end_time required")
		return
	}
	if !req.EndTime.After(req.StartTime) {
		jsonError(w, http.StatusBadRequest, "end time must be after start time")
		return
	}

	claims := GetClaims(r.Context())
	bookings, err := store.ListBookings(r.Context(), h.DB, 0, 0, "")
	if err != nil {
		slog.Error("failed to list bookings", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to check availability")
		return
	}

	conflict := schedule.HasConflict(schedule.Candidate{
		VehicleID:        req.VehicleID,
		RequesterID:      claims.UserID,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		ExcludeBookingID: req.ExcludeBookingID,
	}, bookings)

	jsonResponse(w, http.StatusOK, map[string]any{
		"available": conflict == nil,
		"conflict":  conflict,
	})
}

// Get handles GET /api/bookings/{id}. Regular users can only fetch their own.
func (h *BookingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, booking)
}

// Update handles PUT /api/bookings/{id}. Only the requester can edit, and only
// while the booking is pending or edit-requested; the edit resets it to
// pending for re-approval.
func (h *BookingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	if booking.RequesterID != claims.UserID {
		jsonError(w, http.StatusForbidden, "only the requester can edit a booking")
		return
	}

	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		jsonError(w, http.StatusBadRequest, "start_time and end_time required")
		return
	}

	updated, err := store.UpdateBooking(r.Context(), h.DB, booking.ID, req.StartTime, req.EndTime, req.Purpose)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	slog.Info("booking updated", "user", claims.Username, "booking", updated.UID)
	jsonResponse(w, http.StatusOK, updated)
}

// Approve handles POST /api/bookings/{id}/approve (approver).
func (h *BookingsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.BookingApproved)
}

// Cancel handles POST /api/bookings/{id}/cancel. The requester can cancel
// their own booking; approvers can cancel any.
func (h *BookingsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	updated, err := store.TransitionBooking(r.Context(), h.DB, booking.ID, model.BookingCancelled)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("booking cancelled", "user", claims.Username, "booking", updated.UID)
	jsonResponse(w, http.StatusOK, updated)
}

// RequestEdit handles POST /api/bookings/{id}/request-edit (approver). The
// approver sends a pending booking back to the requester for changes.
func (h *BookingsHandler) RequestEdit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.BookingEditRequested)
}

// Return handles POST /api/bookings/{id}/return. The requester hands the
// vehicle back with its odometer reading.
func (h *BookingsHandler) Return(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var req returnRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := store.ReturnBooking(r.Context(), h.DB, booking.ID, req.Mileage)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	if updated == nil {
		jsonError(w, http.StatusNotFound, "booking not found")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("booking returned", "user", claims.Username, "booking", updated.UID, "mileage", req.Mileage)
	jsonResponse(w, http.StatusOK, updated)
}

// Complete handles POST /api/bookings/{id}/complete (approver). Marks a
// returned booking as verified and closed.
func (h *BookingsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.BookingCompleted)
}

// transition applies an approver-driven status change.
func (h *BookingsHandler) transition(w http.ResponseWriter, r *http.Request, to string) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	booking, err := store.TransitionBooking(r.Context(), h.DB, id, to)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	if booking == nil {
		jsonError(w, http.StatusNotFound, "booking not found")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("booking status changed", "user", claims.Username, "booking", booking.UID, "status", to)
	jsonResponse(w, http.StatusOK, booking)
}

// loadOwned fetches the booking from the path and enforces that regular users
// only touch their own bookings. Writes the error response on failure.
func (h *BookingsHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*model.Booking, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid booking id")
		return nil, false
	}

	booking, err := store.GetBooking(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get booking", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get booking")
		return nil, false
	}
	if booking == nil {
		jsonError(w, http.StatusNotFound, "booking not found")
		return nil, false
	}

	claims := GetClaims(r.Context())
	if booking.RequesterID != claims.UserID && !model.RoleAtLeast(claims.Role, model.RoleApprover) {
		jsonError(w, http.StatusForbidden, "insufficient permissions")
		return nil, false
	}
	return booking, true
}
