package model

import "time"

// Booking represents a reservation of a vehicle for a requester over a
// half-open time interval [StartTime, EndTime).
type Booking struct {
	ID          int64     `json:"id"`
	UID         string    `json:"uid"`
	VehicleID   int64     `json:"vehicle_id"`
	RequesterID int64     `json:"requester_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Purpose     string    `json:"purpose,omitempty"`
	Status      string    `json:"status"`
	EndMileage  *int64    `json:"end_mileage,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	VehicleName   string `json:"vehicle_name,omitempty"`
	RequesterName string `json:"requester_name,omitempty"`
}

// Booking statuses. One canonical spelling per status; nothing else is
// accepted at the API boundary or stored.
const (
	BookingPending       = "pending"
	BookingApproved      = "approved"
	BookingCancelled     = "cancelled"
	BookingEditRequested = "edit_requested"
	BookingReturned      = "returned"
	BookingCompleted     = "completed"
)

// bookingTransitions lists the allowed status transitions.
// Cancelled and completed are terminal.
var bookingTransitions = map[string][]string{
	BookingPending:       {BookingApproved, BookingCancelled, BookingEditRequested},
	BookingEditRequested: {BookingPending, BookingCancelled},
	BookingApproved:      {BookingReturned, BookingCancelled},
	BookingReturned:      {BookingCompleted},
	BookingCancelled:     {},
	BookingCompleted:     {},
}

// CanTransitionBooking reports whether from -> to is an allowed booking
// status transition.
func CanTransitionBooking(from, to string) bool {
	for _, s := range bookingTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidBookingStatus reports whether status is a known booking status.
func ValidBookingStatus(status string) bool {
	_, ok := bookingTransitions[status]
	return ok
}
