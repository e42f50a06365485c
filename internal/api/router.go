package api

import (
	"database/sql"
	"net/http"

	"github.com/matijat/bolnica/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	vehiclesHandler := &VehiclesHandler{DB: db}
	bookingsHandler := &BookingsHandler{DB: db}
	equipmentHandler := &EquipmentHandler{DB: db}
	loansHandler := &LoansHandler{DB: db}
	exportHandler := &ExportHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireApprover := RequireRole(model.RoleApprover)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Vehicles: read (all roles), write (admin).
	mux.Handle("GET /api/vehicles", authMW(http.HandlerFunc(vehiclesHandler.List)))
	mux.Handle("POST /api/vehicles", authMW(requireAdmin(http.HandlerFunc(vehiclesHandler.Create))))
	mux.Handle("GET /api/vehicles/{id}", authMW(http.HandlerFunc(vehiclesHandler.Get)))
	mux.Handle("PUT /api/vehicles/{id}", authMW(requireAdmin(http.HandlerFunc(vehiclesHandler.Update))))
	mux.Handle("DELETE /api/vehicles/{id}", authMW(requireAdmin(http.HandlerFunc(vehiclesHandler.Delete))))
	mux.Handle("GET /api/vehicles/{id}/busy", authMW(http.HandlerFunc(vehiclesHandler.Busy)))

	// Bookings: users manage their own, approvers drive the workflow.
	mux.Handle("GET /api/bookings", authMW(http.HandlerFunc(bookingsHandler.List)))
	mux.Handle("POST /api/bookings", authMW(http.HandlerFunc(bookingsHandler.Create)))
	mux.Handle("POST /api/bookings/check", authMW(http.HandlerFunc(bookingsHandler.Check)))
	mux.Handle("GET /api/bookings/{id}", authMW(http.HandlerFunc(bookingsHandler.Get)))
	mux.Handle("PUT /api/bookings/{id}", authMW(http.HandlerFunc(bookingsHandler.Update)))
	mux.Handle("POST /api/bookings/{id}/approve", authMW(requireApprover(http.HandlerFunc(bookingsHandler.Approve))))
	mux.Handle("POST /api/bookings/{id}/cancel", authMW(http.HandlerFunc(bookingsHandler.Cancel)))
	mux.Handle("POST /api/bookings/{id}/request-edit", authMW(requireApprover(http.HandlerFunc(bookingsHandler.RequestEdit))))
	mux.Handle("POST /api/bookings/{id}/return", authMW(http.HandlerFunc(bookingsHandler.Return)))
	mux.Handle("POST /api/bookings/{id}/complete", authMW(requireApprover(http.HandlerFunc(bookingsHandler.Complete))))

	// Equipment: read (all roles), write (admin).
	mux.Handle("GET /api/equipment", authMW(http.HandlerFunc(equipmentHandler.List)))
	mux.Handle("GET /api/equipment/availability", authMW(http.HandlerFunc(equipmentHandler.Availability)))
	mux.Handle("POST /api/equipment", authMW(requireAdmin(http.HandlerFunc(equipmentHandler.Create))))
	mux.Handle("GET /api/equipment/{id}", authMW(http.HandlerFunc(equipmentHandler.Get)))
	mux.Handle("PUT /api/equipment/{id}", authMW(requireAdmin(http.HandlerFunc(equipmentHandler.Update))))
	mux.Handle("DELETE /api/equipment/{id}", authMW(requireAdmin(http.HandlerFunc(equipmentHandler.Delete))))
	mux.Handle("GET /api/equipment/{id}/quota", authMW(http.HandlerFunc(equipmentHandler.Quota)))
	mux.Handle("PUT /api/equipment/{id}/photo", authMW(requireAdmin(http.HandlerFunc(equipmentHandler.UploadPhoto))))
	mux.Handle("GET /api/equipment/{id}/photo", authMW(http.HandlerFunc(equipmentHandler.GetPhoto)))

	// Loans: users manage their own, approvers drive the workflow.
	mux.Handle("GET /api/loans", authMW(http.HandlerFunc(loansHandler.List)))
	mux.Handle("POST /api/loans", authMW(http.HandlerFunc(loansHandler.Create)))
	mux.Handle("GET /api/loans/{id}", authMW(http.HandlerFunc(loansHandler.Get)))
	mux.Handle("PUT /api/loans/{id}", authMW(http.HandlerFunc(loansHandler.Update)))
	mux.Handle("POST /api/loans/{id}/approve", authMW(requireApprover(http.HandlerFunc(loansHandler.Approve))))
	mux.Handle("POST /api/loans/{id}/cancel", authMW(http.HandlerFunc(loansHandler.Cancel)))
	mux.Handle("POST /api/loans/{id}/return", authMW(http.HandlerFunc(loansHandler.Return)))
	mux.Handle("POST /api/loans/{id}/verify", authMW(requireApprover(http.HandlerFunc(loansHandler.Verify))))

	// Exports (approver).
	mux.Handle("GET /api/export/bookings.csv", authMW(requireApprover(http.HandlerFunc(exportHandler.Bookings))))
	mux.Handle("GET /api/export/loans.csv", authMW(requireApprover(http.HandlerFunc(exportHandler.Loans))))

	return mux
}
