package table

import (
	"fmt"
	"strings"

	"foodorder-backend/internal/apperr"
	"foodorder-backend/internal/audit"
	"foodorder-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type TableResponse struct {
	ID             uint               `json:"id"`
	TableNumber    int                `json:"table_number"`
	Capacity       int                `json:"capacity"`
	QRCodePath     string             `json:"qr_code_path"`
	IsOccupied     bool               `json:"is_occupied"`
	CurrentOrderID *uint              `json:"current_order_id"`
	Status         models.TableStatus `json:"status"`
	CreatedAt      string             `json:"created_at"`
}

type CreateTableRequest struct {
	TableNumber *int   `json:"table_number"`
	Capacity    *int   `json:"capacity"`
	QRCodePath  string `json:"qr_code_path"`
}

type UpdateTableRequest struct {
	TableNumber *int    `json:"table_number"`
	Capacity    *int    `json:"capacity"`
	QRCodePath  *string `json:"qr_code_path"`
}

type UpdateStatusRequest struct {
	Status models.TableStatus `json:"status"`
}

func toResponse(t models.Table) TableResponse {
	return TableResponse{
		ID:             t.ID,
		TableNumber:    t.TableNumber,
		Capacity:       t.Capacity,
		QRCodePath:     t.QRCodePath,
		IsOccupied:     t.IsOccupied,
		CurrentOrderID: t.CurrentOrderID,
		Status:         t.Status,
		CreatedAt:      t.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func notFound(id int) *apperr.Error {
	return apperr.NotFound("table %d not found", id)
}

// numberTaken reports whether another table already uses number.
func numberTaken(tx *gorm.DB, number int, exceptID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.Table{}).Where("table_number = ? AND id <> ?", number, exceptID).Count(&count).Error
	return count > 0, err
}

// GET /api/tables?occupied=true
func ListTablesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := db.WithContext(c.UserContext()).Model(&models.Table{})
		switch c.Query("occupied") {
		case "true":
			dbq = dbq.Where("is_occupied = ?", true)
		case "false":
			dbq = dbq.Where("is_occupied = ?", false)
		}

		var tables []models.Table
		if err := dbq.Order("table_number ASC").Find(&tables).Error; err != nil {
			return apperr.FromStore(err, nil)
		}

		res := make([]TableResponse, 0, len(tables))
		for _, t := range tables {
			res = append(res, toResponse(t))
		}
		return c.JSON(res)
	}
}

// GET /api/tables/:id
func GetTableHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperr.Validation("invalid table id")
		}

		var t models.Table
		if err := db.WithContext(c.UserContext()).First(&t, id).Error; err != nil {
			return apperr.FromStore(err, notFound(id))
		}
		return c.JSON(toResponse(t))
	}
}

// POST /api/tables
func CreateTableHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateTableRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}
		if body.TableNumber == nil || body.Capacity == nil {
			return apperr.Validation("table_number and capacity are required")
		}
		if *body.TableNumber <= 0 || *body.Capacity <= 0 {
			return apperr.Validation("table_number and capacity must be positive")
		}

		t := models.Table{
			TableNumber: *body.TableNumber,
			Capacity:    *body.Capacity,
			QRCodePath:  strings.TrimSpace(body.QRCodePath),
			Status:      models.TableStatusAvailable,
		}

		err := db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			taken, err := numberTaken(tx, t.TableNumber, 0)
			if err != nil {
				return apperr.FromStore(err, nil)
			}
			if taken {
				return apperr.Conflict("table number %d already exists", t.TableNumber)
			}
			if err := tx.Create(&t).Error; err != nil {
				return apperr.FromStore(err, nil)
			}
			return audit.Record(tx, audit.Entry{
				EntityType:  "table",
				EntityID:    t.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("table %d created", t.TableNumber),
				After:       t,
			})
		})
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(toResponse(t))
	}
}

// PUT /api/tables/:id
func UpdateTableHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperr.Validation("invalid table id")
		}

		var body UpdateTableRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}

		var t models.Table
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&t, id).Error; err != nil {
				return apperr.FromStore(err, notFound(id))
			}
			before := t

			if body.TableNumber != nil {
				if *body.TableNumber <= 0 {
					return apperr.Validation("table_number must be positive")
				}
				taken, err := numberTaken(tx, *body.TableNumber, t.ID)
				if err != nil {
					return apperr.FromStore(err, nil)
				}
				if taken {
					return apperr.Conflict("table number %d already exists", *body.TableNumber)
				}
				t.TableNumber = *body.TableNumber
			}
			if body.Capacity != nil {
				if *body.Capacity <= 0 {
					return apperr.Validation("capacity must be positive")
				}
				t.Capacity = *body.Capacity
			}
			if body.QRCodePath != nil {
				t.QRCodePath = strings.TrimSpace(*body.QRCodePath)
			}

			if err := tx.Model(&t).Updates(map[string]any{
				"table_number": t.TableNumber,
				"capacity":     t.Capacity,
				"qr_code_path": t.QRCodePath,
			}).Error; err != nil {
				return apperr.FromStore(err, nil)
			}
			return audit.Record(tx, audit.Entry{
				EntityType:  "table",
				EntityID:    t.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("table %d updated", t.TableNumber),
				Before:      before,
				After:       t,
			})
		})
		if err != nil {
			return err
		}

		return c.JSON(toResponse(t))
	}
}

// PUT /api/tables/:id/status
// Occupancy belongs to orders; staff may only set housekeeping labels here.
func UpdateTableStatusHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperr.Validation("invalid table id")
		}

		var body UpdateStatusRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}
		if body.Status == "" {
			return apperr.Validation("status is required")
		}
		if !body.Status.Valid() {
			return apperr.Validation("invalid status, allowed: available, cleaning, reserved")
		}
		if body.Status == models.TableStatusOccupied {
			return apperr.Validation("occupied is set by placing an order")
		}

		var t models.Table
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&t, id).Error; err != nil {
				return apperr.FromStore(err, notFound(id))
			}
			if t.IsOccupied {
				return apperr.Conflict("table %d has an active order", t.TableNumber)
			}
			before := t.Status
			t.Status = body.Status
			if err := tx.Model(&t).Update("status", t.Status).Error; err != nil {
				return apperr.FromStore(err, nil)
			}
			return audit.Record(tx, audit.Entry{
				EntityType:  "table",
				EntityID:    t.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("table %d status %s -> %s", t.TableNumber, before, t.Status),
				Before:      fiber.Map{"status": before},
				After:       fiber.Map{"status": t.Status},
			})
		})
		if err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{"table_id": t.ID, "status": t.Status}).Info("table status updated")
		return c.JSON(toResponse(t))
	}
}

// DELETE /api/tables/:id
func DeleteTableHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperr.Validation("invalid table id")
		}

		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			var t models.Table
			if err := tx.First(&t, id).Error; err != nil {
				return apperr.FromStore(err, notFound(id))
			}
			var refs int64
			if err := tx.Model(&models.Order{}).Where("table_id = ?", t.ID).Count(&refs).Error; err != nil {
				return apperr.FromStore(err, nil)
			}
			if refs > 0 {
				return apperr.Conflict("cannot delete, still referenced")
			}
			if err := tx.Delete(&t).Error; err != nil {
				return apperr.FromStore(err, nil)
			}
			return audit.Record(tx, audit.Entry{
				EntityType:  "table",
				EntityID:    t.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("table %d deleted", t.TableNumber),
				Before:      t,
			})
		})
		if err != nil {
			return err
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
