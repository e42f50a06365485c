package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/matijat/bolnica/internal/export"
	"github.com/matijat/bolnica/internal/store"
)

// ExportHandler handles CSV export endpoints (approver).
type ExportHandler struct {
	DB *sql.DB
}

// Bookings handles GET /api/export/bookings.csv with optional vehicle_id,
// requester_id, and status filters.
func (h *ExportHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	vehicleID := queryInt64(r, "vehicle_id")
	requesterID := queryInt64(r, "requester_id")
	status := r.URL.Query().Get("status")

	bookings, err := store.ListBookings(r.Context(), h.DB, vehicleID, requesterID, status)
	if err != nil {
		slog.Error("failed to list bookings for export", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to export bookings")
		return
	}

	writeCSVHeaders(w, "bookings")
	if err := export.WriteBookings(w, bookings); err != nil {
		slog.Error("failed to write bookings export", "error", err)
	}
}

// Loans handles GET /api/export/loans.csv with optional requester_id and
// status filters.
func (h *ExportHandler) Loans(w http.ResponseWriter, r *http.Request) {
	requesterID := queryInt64(r, "requester_id")
	status := r.URL.Query().Get("status")

	loans, err := store.ListLoans(r.Context(), h.DB, requesterID, status)
	if err != nil {
		slog.Error("failed to list loans for export", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to export loans")
		return
	}

	writeCSVHeaders(w, "loans")
	if err := export.WriteLoans(w, loans); err != nil {
		slog.Error("failed to write loans export", "error", err)
	}
}

func writeCSVHeaders(w http.ResponseWriter, name string) {
	filename := name + "-" + time.Now().Format("2006-01-02") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
}
