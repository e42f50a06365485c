package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/matijat/bolnica/internal/ledger"
	"github.com/matijat/bolnica/internal/photo"
	"github.com/matijat/bolnica/internal/store"
)

// EquipmentHandler handles equipment catalog endpoints.
type EquipmentHandler struct {
	DB *sql.DB
}

type equipmentRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	TotalQuantity int    `json:"total_quantity"`
}

// equipmentWithAvailability decorates a catalog entry with the derived counts.
type equipmentWithAvailability struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	TotalQuantity int    `json:"total_quantity"`
	Reserved      int    `json:"reserved"`
	Remaining     int    `json:"remaining"`
	HasPhoto      bool   `json:"has_photo"`
}

// List handles GET /api/equipment.
func (h *EquipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	catalog, err := store.ListEquipment(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list equipment", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list equipment")
		return
	}

	loans, err := store.ListReservingLoans(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list loans", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to compute availability")
		return
	}

	availability := ledger.ComputeRemaining(catalog, loans)
	out := make([]equipmentWithAvailability, 0, len(catalog))
	for _, eq := range catalog {
		avail := availability[eq.ID]
		out = append(out, equipmentWithAvailability{
			ID:            eq.ID,
			Name:          eq.Name,
			Description:   eq.Description,
			TotalQuantity: eq.TotalQuantity,
			Reserved:      avail.Reserved,
			Remaining:     avail.Remaining,
			HasPhoto:      eq.PhotoMime != "",
		})
	}
	jsonResponse(w, http.StatusOK, out)
}

// Availability handles GET /api/equipment/availability. It returns the
// per-item availability map the booking forms poll while open.
func (h *EquipmentHandler) Availability(w http.ResponseWriter, r *http.Request) {
	catalog, err := store.ListEquipment(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list equipment", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list equipment")
		return
	}

	loans, err := store.ListReservingLoans(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list loans", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to compute availability")
		return
	}

	jsonResponse(w, http.StatusOK, ledger.ComputeRemaining(catalog, loans))
}

// Create handles POST /api/equipment.
func (h *EquipmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req equipmentRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	eq, err := store.CreateEquipment(r.Context(), h.DB, req.Name, req.Description, req.TotalQuantity)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("equipment created", "user", claims.Username, "equipment", eq.Name, "quantity", eq.TotalQuantity)
	jsonResponse(w, http.StatusCreated, eq)
}

// Get handles GET /api/equipment/{id}.
func (h *EquipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid equipment id")
		return
	}

	eq, err := store.GetEquipment(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get equipment", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get equipment")
		return
	}
	if eq == nil {
		jsonError(w, http.StatusNotFound, "equipment not found")
		return
	}

	jsonResponse(w, http.StatusOK, eq)
}

// Update handles PUT /api/equipment/{id}.
func (h *EquipmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid equipment id")
		return
	}

	var req equipmentRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	if err := store.UpdateEquipment(r.Context(), h.DB, id, req.Name, req.Description, req.TotalQuantity); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	eq, _ := store.GetEquipment(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, eq)
}

// Delete handles DELETE /api/equipment/{id}.
func (h *EquipmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid equipment id")
		return
	}

	if err := store.DeleteEquipment(r.Context(), h.DB, id); err != nil {
		jsonError(w, http.StatusConflict, err.Error())
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("equipment deleted", "user", claims.Username, "equipment_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "equipment deleted"})
}

// Quota handles GET /api/equipment/{id}/quota?loan_id=. It returns how many
// units the caller may put on a loan form: the free remainder, plus whatever
// the edited loan already holds when loan_id is given.
func (h *EquipmentHandler) Quota(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid equipment id")
		return
	}

	var loanID int64
	if raw := r.URL.Query().Get("loan_id"); raw != "" {
		loanID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid loan_id")
			return
		}
	}

	eq, err := store.GetEquipment(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get equipment", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get equipment")
		return
	}
	if eq == nil || eq.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "equipment not found")
		return
	}

	catalog, err := store.ListEquipment(r.Context(), h.DB)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list equipment")
		return
	}
	loans, err := store.ListReservingLoans(r.Context(), h.DB)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to compute quota")
		return
	}

	quota := ledger.EditableQuota(id, catalog, loans, loanID)
	jsonResponse(w, http.StatusOK, map[string]any{"equipment_id": id, "quota": quota})
}

// UploadPhoto handles PUT /api/equipment/{id}/photo. The upload is normalized
// before storage, so stored photos are always bounded JPEGs.
func (h *EquipmentHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid equipment id")
		return
	}

	eq, err := store.GetEquipment(r.Context(), h.DB, id)
	if err != nil || eq == nil || eq.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "equipment not found")
		return
	}

	result, err := photo.Normalize(http.MaxBytesReader(w, r.Body, photo.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetEquipmentPhoto(r.Context(), h.DB, id, result.Data, result.MIME); err != nil {
		slog.Error("failed to store photo", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to store photo")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("equipment photo updated", "user", claims.Username, "equipment_id", id, "bytes", len(result.Data))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "photo updated"})
}

// GetPhoto handles GET /api/equipment/{id}/photo.
func (h *EquipmentHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid equipment id")
		return
	}

	data, mime, err := store.GetEquipmentPhoto(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get photo", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get photo")
		return
	}
	if len(data) == 0 {
		jsonError(w, http.StatusNotFound, "no photo")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
