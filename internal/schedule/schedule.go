// Package schedule implements the vehicle booking availability checker.
//
// All functions are pure predicates over bookings already loaded into memory.
// They never return errors: an invalid time range (end before or at start) is
// rejected by callers before the checker runs.
package schedule

import (
	"time"

	"github.com/matijat/bolnica/internal/model"
)

// Conflict axes. The axis distinguishes the user-facing message: the vehicle
// is already booked vs the requester already has a booking in this period.
const (
	AxisVehicle   = "vehicle"
	AxisRequester = "requester"
)

// Candidate is a proposed booking to check against existing ones.
// ExcludeBookingID is set when checking an edit to an existing booking so the
// booking does not conflict with itself; zero means no exclusion.
type Candidate struct {
	VehicleID        int64
	RequesterID      int64
	StartTime        time.Time
	EndTime          time.Time
	ExcludeBookingID int64
}

// Conflict describes a detected scheduling conflict.
type Conflict struct {
	Axis    string        `json:"axis"`
	Booking model.Booking `json:"booking"`
}

// HasConflict checks the candidate against existing bookings and returns the
// first conflict found, or nil if the slot is free.
//
// Only non-cancelled bookings participate. Two independent axes are tested:
// same vehicle (any requester) and same requester (any vehicle). The vehicle
// axis is scanned across all bookings before the requester axis, so a
// double-booked vehicle is always the reported reason. Intervals are
// half-open, so a booking ending exactly when another starts is allowed.
func HasConflict(c Candidate, existing []model.Booking) *Conflict {
	for _, b := range existing {
		if b.VehicleID == c.VehicleID && collides(c, b) {
			return &Conflict{Axis: AxisVehicle, Booking: b}
		}
	}
	for _, b := range existing {
		if b.RequesterID == c.RequesterID && collides(c, b) {
			return &Conflict{Axis: AxisRequester, Booking: b}
		}
	}
	return nil
}

// collides reports whether the existing booking counts against the candidate:
// not cancelled, not the booking being edited, and overlapping in time.
func collides(c Candidate, b model.Booking) bool {
	if b.Status == model.BookingCancelled {
		return false
	}
	if c.ExcludeBookingID != 0 && b.ID == c.ExcludeBookingID {
		return false
	}
	return overlaps(c.StartTime, c.EndTime, b.StartTime, b.EndTime)
}

// WithinBusyWindow reports whether the instant falls inside any non-cancelled
// booking of the given vehicle. Containment is inclusive on both ends,
// deliberately unlike the half-open range overlap above: this answers "is this
// moment already inside a busy window", not "do two ranges overlap".
func WithinBusyWindow(instant time.Time, vehicleID int64, existing []model.Booking) bool {
	for _, b := range existing {
		if b.VehicleID != vehicleID || b.Status == model.BookingCancelled {
			continue
		}
		if !instant.Before(b.StartTime) && !instant.After(b.EndTime) {
			return true
		}
	}
	return false
}

// overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// intersect.
func overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && e1.After(s2)
}
