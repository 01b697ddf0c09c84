package order

import (
	"foodorder-backend/internal/apperr"
	"foodorder-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type ItemStatusRequest struct {
	Status models.ItemStatus `json:"item_status"`
}

func itemID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid order item id")
	}
	return uint(id), nil
}

// GET /api/order_items?order_id=3&item_status=ready
func ListItemsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var oid uint
		if v := c.QueryInt("order_id", 0); v > 0 {
			oid = uint(v)
		}

		items, err := svc.ListItems(c.UserContext(), oid, models.ItemStatus(c.Query("item_status")))
		if err != nil {
			return err
		}

		res := make([]OrderItemResponse, 0, len(items))
		for _, it := range items {
			res = append(res, toItemResponse(it))
		}
		return c.JSON(res)
	}
}

// GET /api/order_items/:id
func GetItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := itemID(c)
		if err != nil {
			return err
		}
		it, err := svc.GetItem(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(toItemResponse(*it))
	}
}

// POST /api/order_items
func AddItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body AddItemInput
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}

		it, err := svc.AddItem(c.UserContext(), body)
		if err != nil {
			return err
		}
		it, err = svc.GetItem(c.UserContext(), it.ID)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toItemResponse(*it))
	}
}

// PUT /api/order_items/:id
func UpdateItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := itemID(c)
		if err != nil {
			return err
		}

		var body ItemPatch
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}

		it, err := svc.UpdateItem(c.UserContext(), id, body)
		if err != nil {
			return err
		}
		return c.JSON(toItemResponse(*it))
	}
}

// PUT /api/order_items/:id/status
func UpdateItemStatusHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := itemID(c)
		if err != nil {
			return err
		}

		var body ItemStatusRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}
		if body.Status == "" {
			return apperr.Validation("item_status is required")
		}

		it, err := svc.SetItemStatus(c.UserContext(), id, body.Status)
		if err != nil {
			return err
		}
		return c.JSON(toItemResponse(*it))
	}
}

// DELETE /api/order_items/:id
func DeleteItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := itemID(c)
		if err != nil {
			return err
		}
		if err := svc.DeleteItem(c.UserContext(), id); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
