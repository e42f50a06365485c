package model

import "time"

// Vehicle represents a pool vehicle available for booking.
// Mileage is only mutated through the booking return workflow.
type Vehicle struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	LicensePlate string     `json:"license_plate"`
	Mileage      int64      `json:"mileage"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}
