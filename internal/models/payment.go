package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Payment struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	OrderID       uint            `gorm:"index;not null" json:"order_id"`
	Order         *Order          `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Amount        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Method        string          `gorm:"column:payment_method;size:50;not null" json:"payment_method"`
	TransactionID *string         `gorm:"size:100" json:"transaction_id"`
	PaymentTime   time.Time       `gorm:"not null;index" json:"payment_time"`
	Status        PaymentStatus   `gorm:"size:20;not null" json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
