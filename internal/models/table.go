package models

import "time"

// Table is a physical dining table. CurrentOrderID is a non-owning back-reference
// maintained by the order engine; it carries no foreign key constraint.
type Table struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	TableNumber    int         `gorm:"not null;uniqueIndex" json:"table_number"`
	Capacity       int         `gorm:"not null" json:"capacity"`
	QRCodePath     string      `gorm:"size:255" json:"qr_code_path"`
	IsOccupied     bool        `gorm:"not null" json:"is_occupied"`
	CurrentOrderID *uint       `gorm:"index" json:"current_order_id"`
	Status         TableStatus `gorm:"size:20;not null" json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
