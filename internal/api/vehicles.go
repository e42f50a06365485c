package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/matijat/bolnica/internal/model"
	"github.com/matijat/bolnica/internal/schedule"
	"github.com/matijat/bolnica/internal/store"
)

// VehiclesHandler handles vehicle fleet endpoints.
type VehiclesHandler struct {
	DB *sql.DB
}

type vehicleRequest struct {
	Name         string `json:"name"`
	LicensePlate string `json:"license_plate"`
	Mileage      int64  `json:"mileage"`
}

// List handles GET /api/vehicles.
func (h *VehiclesHandler) List(w http.ResponseWriter, r *http.Request) {
	vehicles, err := store.ListVehicles(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list vehicles", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list vehicles")
		return
	}
	if vehicles == nil {
		vehicles = []model.Vehicle{}
	}
	jsonResponse(w, http.StatusOK, vehicles)
}

// Create handles POST /api/vehicles.
func (h *VehiclesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.LicensePlate == "" {
		jsonError(w, http.StatusBadRequest, "name and license plate required")
		return
	}

	vehicle, err := store.CreateVehicle(r.Context(), h.DB, req.Name, req.LicensePlate, req.Mileage)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("vehicle created", "user", claims.Username, "vehicle", vehicle.Name, "plate", vehicle.LicensePlate)
	jsonResponse(w, http.StatusCreated, vehicle)
}

// Get handles GET /api/vehicles/{id}.
func (h *VehiclesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid vehicle id")
		return
	}

	vehicle, err := store.GetVehicle(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get vehicle", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get vehicle")
		return
	}
	if vehicle == nil {
		jsonError(w, http.StatusNotFound, "vehicle not found")
		return
	}

	jsonResponse(w, http.StatusOK, vehicle)
}

// Update handles PUT /api/vehicles/{id}.
func (h *VehiclesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid vehicle id")
		return
	}

	var req vehicleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.LicensePlate == "" {
		jsonError(w, http.StatusBadRequest, "name and license plate required")
		return
	}

	if err := store.UpdateVehicle(r.Context(), h.DB, id, req.Name, req.LicensePlate); err != nil {
		slog.Error("failed to update vehicle", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update vehicle")
		return
	}

	vehicle, _ := store.GetVehicle(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, vehicle)
}

// Delete handles DELETE /api/vehicles/{id}.
func (h *VehiclesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid vehicle id")
		return
	}

	if err := store.DeleteVehicle(r.Context(), h.DB, id); err != nil {
		jsonError(w, http.StatusConflict, err.Error())
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("vehicle deleted", "user", claims.Username, "vehicle_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "vehicle deleted"})
}

type busyResponse struct {
	Busy    bool           `json:"busy"`
	Booking *model.Booking `json:"booking,omitempty"`
}

// Busy handles GET /api/vehicles/{id}/busy?at=<RFC 3339>. It reports whether
// the vehicle has an active booking covering the instant; `at` defaults to now.
func (h *VehiclesHandler) Busy(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid vehicle id")
		return
	}

	at := time.Now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		at, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid 'at' timestamp, expected RFC 3339")
			return
		}
	}

	vehicle, err := store.GetVehicle(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get vehicle", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get vehicle")
		return
	}
	if vehicle == nil {
		jsonError(w, http.StatusNotFound, "vehicle not found")
		return
	}

	bookings, err := store.ListBookings(r.Context(), h.DB, id, 0, "")
	if err != nil {
		slog.Error("failed to list bookings", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to check vehicle schedule")
		return
	}

	resp := busyResponse{Busy: schedule.WithinBusyWindow(at, id, bookings)}
	if resp.Busy {
		for i := range bookings {
			b := bookings[i]
			if b.VehicleID != id || b.Status == model.BookingCancelled {
				continue
			}
			if !at.Before(b.StartTime) && !at.After(b.EndTime) {
				resp.Booking = &b
				break
			}
		}
	}
	jsonResponse(w, http.StatusOK, resp)
}
