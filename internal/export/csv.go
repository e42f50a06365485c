// Package export renders booking and loan histories as CSV for offline
// record-keeping and audits.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/matijat/bolnica/internal/model"
)

var bookingHeader = []string{
	"uid", "vehicle", "requester", "start_time", "end_time",
	"purpose", "status", "end_mileage", "created_at",
}

var loanHeader = []string{
	"uid", "requester", "equipment", "quantity", "purpose", "status", "created_at",
}

// WriteBookings writes bookings as CSV, one row per booking.
func WriteBookings(w io.Writer, bookings []model.Booking) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(bookingHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, b := range bookings {
		endMileage := ""
		if b.EndMileage != nil {
			endMileage = strconv.FormatInt(*b.EndMileage, 10)
		}
		row := []string{
			b.UID,
			b.VehicleName,
			b.RequesterName,
			b.StartTime.Format(time.RFC3339),
			b.EndTime.Format(time.RFC3339),
			b.Purpose,
			b.Status,
			endMileage,
			b.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing booking %s: %w", b.UID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteLoans writes loans as CSV, one row per loan item. A loan with no items
// still gets a single row so it shows up in the audit trail.
func WriteLoans(w io.Writer, loans []model.Loan) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(loanHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, l := range loans {
		created := l.CreatedAt.Format(time.RFC3339)
		if len(l.Items) == 0 {
			row := []string{l.UID, l.RequesterName, "", "0", l.Purpose, l.Status, created}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("writing loan %s: %w", l.UID, err)
			}
			continue
		}
		for _, item := range l.Items {
			row := []string{
				l.UID,
				l.RequesterName,
				item.EquipmentName,
				strconv.Itoa(item.Quantity),
				l.Purpose,
				l.Status,
				created,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("writing loan %s: %w", l.UID, err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
