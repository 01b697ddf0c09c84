package models

import "github.com/shopspring/decimal"

func init() {
	// Money is rendered as a JSON number, e.g. 240.5 instead of "240.5".
	decimal.MarshalJSONWithoutQuotes = true
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPreparing,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, v := range orderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Active orders still hold their table.
func (s OrderStatus) Active() bool {
	return s == OrderStatusPending || s == OrderStatusPreparing
}

func OrderStatuses() []OrderStatus {
	return append([]OrderStatus(nil), orderStatuses...)
}

type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusPreparing ItemStatus = "preparing"
	ItemStatusReady     ItemStatus = "ready"
	ItemStatusServed    ItemStatus = "served"
	ItemStatusCancelled ItemStatus = "cancelled"
)

var itemStatuses = []ItemStatus{
	ItemStatusPending,
	ItemStatusPreparing,
	ItemStatusReady,
	ItemStatusServed,
	ItemStatusCancelled,
}

func (s ItemStatus) Valid() bool {
	for _, v := range itemStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func ItemStatuses() []ItemStatus {
	return append([]ItemStatus(nil), itemStatuses...)
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusPending || s == PaymentStatusCompleted
}

type TableStatus string

const (
	TableStatusAvailable TableStatus = "available"
	TableStatusOccupied  TableStatus = "occupied"
	TableStatusCleaning  TableStatus = "cleaning"
	TableStatusReserved  TableStatus = "reserved"
)

func (s TableStatus) Valid() bool {
	switch s {
	case TableStatusAvailable, TableStatusOccupied, TableStatusCleaning, TableStatusReserved:
		return true
	}
	return false
}
