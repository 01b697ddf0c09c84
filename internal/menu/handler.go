package menu

import (
	"fmt"
	"strings"

	"foodorder-backend/internal/apperr"
	"foodorder-backend/internal/audit"
	"foodorder-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MenuItemResponse struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	Category    string          `json:"category"`
	IsAvailable bool            `json:"is_available"`
}

type CreateMenuItemRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	ImageURL    string           `json:"image_url"`
	Category    string           `json:"category"`
	IsAvailable *bool            `json:"is_available"`
}

type UpdateMenuItemRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	ImageURL    *string          `json:"image_url"`
	Category    *string          `json:"category"`
	IsAvailable *bool            `json:"is_available"`
}

func toResponse(m models.MenuItem) MenuItemResponse {
	return MenuItemResponse{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Price:       m.Price,
		ImageURL:    m.ImageURL,
		Category:    m.Category,
		IsAvailable: m.IsAvailable,
	}
}

func notFound(id int) *apperr.Error {
	return apperr.NotFound("menu item %d not found", id)
}

func normalizeCategory(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.DefaultMenuCategory
	}
	return s
}

// GET /api/menus?category=drinks&available=true
func ListMenuItemsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := db.WithContext(c.UserContext()).Model(&models.MenuItem{})
		if category := c.Query("category"); category != "" {
			dbq = dbq.Where("category = ?", category)
		}
		switch c.Query("available") {
		case "true":
			dbq = dbq.Where("is_available = ?", true)
		case "false":
			dbq = dbq.Where("is_available = ?", false)
		}

		var items []models.MenuItem
		if err := dbq.Order("category ASC, name ASC").Find(&items).Error; err != nil {
			return apperr.FromStore(err, nil)
		}

		res := make([]MenuItemResponse, 0, len(items))
		for _, m := range items {
			res = append(res, toResponse(m))
		}
		return c.JSON(res)
	}
}

// GET /api/menus/:id
func GetMenuItemHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperr.Validation("invalid menu item id")
		}

		var m models.MenuItem
		if err := db.WithContext(c.UserContext()).First(&m, id).Error; err != nil {
			return apperr.FromStore(err, notFound(id))
		}
		return c.JSON(toResponse(m))
	}
}

// POST /api/menus
func CreateMenuItemHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateMenuItemRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" || body.Price == nil {
			return apperr.Validation("name and price are required")
		}
		if body.Price.IsNegative() {
			return apperr.Validation("price must not be negative")
		}

		m := models.MenuItem{
			Name:        body.Name,
			Description: strings.TrimSpace(body.Description),
			Price:       body.Price.Round(2),
			ImageURL:    strings.TrimSpace(body.ImageURL),
			Category:    normalizeCategory(body.Category),
			IsAvailable: true,
		}
		if body.IsAvailable != nil {
			m.IsAvailable = *body.IsAvailable
		}

		err := db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&m).Error; err != nil {
				return apperr.FromStore(err, nil)
			}
			return audit.Record(tx, audit.Entry{
				EntityType:  "menu_item",
				EntityID:    m.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("menu item %q created at %s", m.Name, m.Price.StringFixed(2)),
				After:       m,
			})
		})
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(toResponse(m))
	}
}

// PUT /api/menus/:id
// Price changes never touch existing order items; they keep their captured price.
func UpdateMenuItemHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperr.Validation("invalid menu item id")
		}

		var body UpdateMenuItemRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}

		var m models.MenuItem
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&m, id).Error; err != nil {
				return apperr.FromStore(err, notFound(id))
			}
			before := m

			if body.Name != nil {
				name := strings.TrimSpace(*body.Name)
				if name == "" {
					return apperr.Validation("name must not be empty")
				}
				m.Name = name
			}
			if body.Description != nil {
				m.Description = strings.TrimSpace(*body.Description)
			}
			if body.Price != nil {
				if body.Price.IsNegative() {
					return apperr.Validation("price must not be negative")
				}
				m.Price = body.Price.Round(2)
			}
			if body.ImageURL != nil {
				m.ImageURL = strings.TrimSpace(*body.ImageURL)
			}
			if body.Category != nil {
				m.Category = normalizeCategory(*body.Category)
			}
			if body.IsAvailable != nil {
				m.IsAvailable = *body.IsAvailable
			}

			if err := tx.Model(&m).Updates(map[string]any{
				"name":         m.Name,
				"description":  m.Description,
				"price":        m.Price,
				"image_url":    m.ImageURL,
				"category":     m.Category,
				"is_available": m.IsAvailable,
			}).Error; err != nil {
				return apperr.FromStore(err, nil)
			}
			return audit.Record(tx, audit.Entry{
				EntityType:  "menu_item",
				EntityID:    m.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("menu item %q updated", m.Name),
				Before:      before,
				After:       m,
			})
		})
		if err != nil {
			return err
		}

		return c.JSON(toResponse(m))
	}
}

// DELETE /api/menus/:id
func DeleteMenuItemHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperr.Validation("invalid menu item id")
		}

		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			var m models.MenuItem
			if err := tx.First(&m, id).Error; err != nil {
				return apperr.FromStore(err, notFound(id))
			}
			var refs int64
			if err := tx.Model(&models.OrderItem{}).Where("menu_id = ?", m.ID).Count(&refs).Error; err != nil {
				return apperr.FromStore(err, nil)
			}
			if refs > 0 {
				return apperr.Conflict("cannot delete, still referenced")
			}
			if err := tx.Delete(&m).Error; err != nil {
				return apperr.FromStore(err, nil)
			}
			return audit.Record(tx, audit.Entry{
				EntityType:  "menu_item",
				EntityID:    m.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("menu item %q deleted", m.Name),
				Before:      m,
			})
		})
		if err != nil {
			return err
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
