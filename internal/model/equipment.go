package model

import "time"

// Equipment represents a catalog entry for loanable medical equipment.
// TotalQuantity is the physical count owned; the reservation ledger derives
// the remaining free quantity from it.
type Equipment struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	TotalQuantity int        `json:"total_quantity"`
	PhotoMime     string     `json:"photo_mime,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}
