package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultCustomerName = "Guest"

type Order struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	TableID       uint            `gorm:"index;not null" json:"table_id"`
	Table         *Table          `gorm:"constraint:OnDelete:RESTRICT" json:"table,omitempty"`
	CustomerName  string          `gorm:"size:100;not null" json:"customer_name"`
	OrderTime     time.Time       `gorm:"not null;index" json:"order_time"`
	Status        OrderStatus     `gorm:"size:20;not null;index" json:"status"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	BillRequested bool            `gorm:"not null" json:"bill_requested"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// OrderItem is one line of an order. ItemPrice is the menu price captured when the
// line was created or its menu item was changed.
type OrderItem struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	OrderID    uint            `gorm:"index;not null" json:"order_id"`
	MenuItemID uint            `gorm:"column:menu_id;index;not null" json:"menu_id"`
	MenuItem   *MenuItem       `gorm:"foreignKey:MenuItemID;constraint:OnDelete:RESTRICT" json:"menu_item,omitempty"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	ItemPrice  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"item_price"`
	Notes      string          `gorm:"type:text" json:"notes"`
	ItemStatus ItemStatus      `gorm:"size:20;not null" json:"item_status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// LineTotal is quantity × captured price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.ItemPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func SumLineTotals(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}
