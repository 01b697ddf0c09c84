package order

import (
	"time"

	"foodorder-backend/internal/apperr"
	"foodorder-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type OrderItemResponse struct {
	ID              uint              `json:"id"`
	OrderID         uint              `json:"order_id"`
	MenuItemID      uint              `json:"menu_id"`
	MenuName        string            `json:"menu_name"`
	MenuDescription string            `json:"menu_description"`
	Quantity        int               `json:"quantity"`
	ItemPrice       decimal.Decimal   `json:"item_price"`
	LineTotal       decimal.Decimal   `json:"line_total"`
	Notes           string            `json:"notes"`
	ItemStatus      models.ItemStatus `json:"item_status"`
}

type OrderResponse struct {
	ID             uint                `json:"id"`
	TableID        uint                `json:"table_id"`
	TableNumber    int                 `json:"table_number,omitempty"`
	TableCapacity  int                 `json:"table_capacity,omitempty"`
	CustomerName   string              `json:"customer_name"`
	OrderTime      time.Time           `json:"order_time"`
	Status         models.OrderStatus  `json:"status"`
	TotalAmount    decimal.Decimal     `json:"total_amount"`
	BillRequested  bool                `json:"bill_requested"`
	Notes          string              `json:"notes"`
	Items          []OrderItemResponse `json:"items,omitempty"`
	AllItemsServed *bool               `json:"all_items_served,omitempty"`
	PaidAmount     *decimal.Decimal    `json:"paid_amount,omitempty"`
}

type CreateOrderResponse struct {
	OrderID     uint               `json:"order_id"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	OrderTime   time.Time          `json:"order_time"`
	Status      models.OrderStatus `json:"status"`
}

type StatusRequest struct {
	Status models.OrderStatus `json:"status"`
}

type BillRequest struct {
	BillRequested *bool `json:"bill_requested"`
}

func toItemResponse(it models.OrderItem) OrderItemResponse {
	res := OrderItemResponse{
		ID:         it.ID,
		OrderID:    it.OrderID,
		MenuItemID: it.MenuItemID,
		Quantity:   it.Quantity,
		ItemPrice:  it.ItemPrice,
		LineTotal:  it.LineTotal(),
		Notes:      it.Notes,
		ItemStatus: it.ItemStatus,
	}
	if it.MenuItem != nil {
		res.MenuName = it.MenuItem.Name
		res.MenuDescription = it.MenuItem.Description
	}
	return res
}

func toResponse(o models.Order) OrderResponse {
	res := OrderResponse{
		ID:            o.ID,
		TableID:       o.TableID,
		CustomerName:  o.CustomerName,
		OrderTime:     o.OrderTime,
		Status:        o.Status,
		TotalAmount:   o.TotalAmount,
		BillRequested: o.BillRequested,
		Notes:         o.Notes,
	}
	if o.Table != nil {
		res.TableNumber = o.Table.TableNumber
		res.TableCapacity = o.Table.Capacity
	}
	if len(o.Items) > 0 {
		res.Items = make([]OrderItemResponse, 0, len(o.Items))
		for _, it := range o.Items {
			res.Items = append(res.Items, toItemResponse(it))
		}
	}
	return res
}

// allServed is true when every non-cancelled item has been served.
func allServed(items []models.OrderItem) bool {
	served := false
	for _, it := range items {
		switch it.ItemStatus {
		case models.ItemStatusCancelled:
		case models.ItemStatusServed:
			served = true
		default:
			return false
		}
	}
	return served
}

func orderID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid order id")
	}
	return uint(id), nil
}

// GET /api/orders?status=pending&table_id=3
func ListOrdersHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := ListFilter{Status: models.OrderStatus(c.Query("status"))}
		if v := c.QueryInt("table_id", 0); v > 0 {
			f.TableID = uint(v)
		}

		orders, err := svc.List(c.UserContext(), f)
		if err != nil {
			return err
		}

		res := make([]OrderResponse, 0, len(orders))
		for _, o := range orders {
			res = append(res, toResponse(o))
		}
		return c.JSON(res)
	}
}

// GET /api/orders/:id
func GetOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := orderID(c)
		if err != nil {
			return err
		}

		o, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		paid, err := svc.PaidAmount(c.UserContext(), id)
		if err != nil {
			return err
		}

		res := toResponse(*o)
		served := allServed(o.Items)
		res.AllItemsServed = &served
		res.PaidAmount = &paid
		return c.JSON(res)
	}
}

// POST /api/orders
func CreateOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateInput
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}

		o, err := svc.Create(c.UserContext(), body)
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(CreateOrderResponse{
			OrderID:     o.ID,
			TotalAmount: o.TotalAmount,
			OrderTime:   o.OrderTime,
			Status:      o.Status,
		})
	}
}

// PUT /api/orders/:id
func UpdateOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := orderID(c)
		if err != nil {
			return err
		}

		var body Patch
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}

		o, err := svc.Update(c.UserContext(), id, body)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(*o))
	}
}

// PUT /api/orders/:id/status
func UpdateOrderStatusHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := orderID(c)
		if err != nil {
			return err
		}

		var body StatusRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}

		o, err := svc.SetStatus(c.UserContext(), id, body.Status)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"id": o.ID, "status": o.Status})
	}
}

// PUT /api/orders/:id/bill_request
func BillRequestHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := orderID(c)
		if err != nil {
			return err
		}

		var body BillRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("bill_requested must be a boolean")
		}
		if body.BillRequested == nil {
			return apperr.Validation("bill_requested is required")
		}

		o, err := svc.SetBillRequested(c.UserContext(), id, *body.BillRequested)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"id": o.ID, "bill_requested": o.BillRequested})
	}
}

// DELETE /api/orders/:id
func DeleteOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := orderID(c)
		if err != nil {
			return err
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
