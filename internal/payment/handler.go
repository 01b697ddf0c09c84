package payment

import (
	"foodorder-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

func paymentID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid payment id")
	}
	return uint(id), nil
}

// GET /api/payments?order_id=3
func ListPaymentsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var oid uint
		if v := c.QueryInt("order_id", 0); v > 0 {
			oid = uint(v)
		}
		payments, err := svc.List(c.UserContext(), oid)
		if err != nil {
			return err
		}
		return c.JSON(payments)
	}
}

// GET /api/payments/:id
func GetPaymentHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paymentID(c)
		if err != nil {
			return err
		}
		p, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(p)
	}
}

// POST /api/payments
func RecordPaymentHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RecordInput
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}

		p, err := svc.Record(c.UserContext(), body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"payment_id":   p.ID,
			"order_id":     p.OrderID,
			"amount":       p.Amount,
			"status":       p.Status,
			"payment_time": p.PaymentTime,
		})
	}
}

// PUT /api/payments/:id
func UpdatePaymentHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paymentID(c)
		if err != nil {
			return err
		}

		var body Patch
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}

		p, err := svc.Update(c.UserContext(), id, body)
		if err != nil {
			return err
		}
		return c.JSON(p)
	}
}

// DELETE /api/payments/:id
func DeletePaymentHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paymentID(c)
		if err != nil {
			return err
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
