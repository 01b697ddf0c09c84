// Package server assembles the Fiber application and its routes.
package server

import (
	"errors"
	"strings"

	"foodorder-backend/internal/apperr"
	"foodorder-backend/internal/audit"
	"foodorder-backend/internal/auth"
	"foodorder-backend/internal/config"
	"foodorder-backend/internal/logging"
	"foodorder-backend/internal/menu"
	"foodorder-backend/internal/models"
	"foodorder-backend/internal/order"
	"foodorder-backend/internal/payment"
	"foodorder-backend/internal/report"
	"foodorder-backend/internal/table"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrorHandler writes every error as {"error": message} with the status its kind maps to.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := err.Error()

	var fe *fiber.Error
	var ae *apperr.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		msg = fe.Message
	case errors.As(err, &ae):
		code = ae.StatusCode()
		msg = ae.Error()
	}

	if code >= fiber.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"request_id": c.Locals(logging.CtxRequestIDKey),
			"path":       c.Path(),
		}).WithError(err).Error("unexpected error")
	}

	return c.Status(code).JSON(fiber.Map{"error": msg})
}

// New builds the application. db is shared by every handler and service.
func New(cfg *config.Config, db *gorm.DB) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler,
		BodyLimit:    10 * 1024 * 1024,
	})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}

	app.Use(logging.RequestLogger())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(corsOrigins, ","),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + logging.HeaderRequestID,
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		ExposeHeaders: logging.HeaderRequestID,
	}))

	app.Static(menu.ImageRoute, cfg.MenuImagePath)
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	orders := order.NewService(db)
	payments := payment.NewService(db)

	api := app.Group("/api")

	// Public
	api.Post("/auth/register-owner", auth.RegisterOwnerHandler(db))
	api.Post("/auth/login", auth.LoginHandler(cfg, db))
	api.Get("/menus", menu.ListMenuItemsHandler(db))
	api.Get("/menus/:id", menu.GetMenuItemHandler(db))

	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	owner := auth.RequireRole(models.RoleOwner)
	staff := auth.RequireRole(models.RoleOwner, models.RoleWaiter)
	anyRole := auth.RequireRole(models.RoleOwner, models.RoleWaiter, models.RoleChef)

	protected.Get("/auth/me", auth.MeHandler(db))
	protected.Get("/users", owner, auth.ListStaffHandler(db))
	protected.Post("/users", owner, auth.CreateStaffHandler(db))

	// Menu
	protected.Post("/menus", owner, menu.CreateMenuItemHandler(db))
	protected.Post("/menus/import", owner, menu.ImportMenuHandler(db))
	protected.Post("/menus/:id/image", owner, menu.UploadImageHandler(db, cfg.MenuImagePath))
	protected.Put("/menus/:id", owner, menu.UpdateMenuItemHandler(db))
	protected.Delete("/menus/:id", owner, menu.DeleteMenuItemHandler(db))

	// Tables
	protected.Get("/tables", anyRole, table.ListTablesHandler(db))
	protected.Get("/tables/:id", anyRole, table.GetTableHandler(db))
	protected.Post("/tables", owner, table.CreateTableHandler(db))
	protected.Put("/tables/:id/status", staff, table.UpdateTableStatusHandler(db))
	protected.Put("/tables/:id", owner, table.UpdateTableHandler(db))
	protected.Delete("/tables/:id", owner, table.DeleteTableHandler(db))

	// Orders
	protected.Get("/orders", anyRole, order.ListOrdersHandler(orders))
	protected.Get("/orders/:id", anyRole, order.GetOrderHandler(orders))
	protected.Post("/orders", staff, order.CreateOrderHandler(orders))
	protected.Put("/orders/:id/status", anyRole, order.UpdateOrderStatusHandler(orders))
	protected.Put("/orders/:id/bill_request", staff, order.BillRequestHandler(orders))
	protected.Put("/orders/:id", staff, order.UpdateOrderHandler(orders))
	protected.Delete("/orders/:id", owner, order.DeleteOrderHandler(orders))

	// Order items
	protected.Get("/order_items", anyRole, order.ListItemsHandler(orders))
	protected.Get("/order_items/:id", anyRole, order.GetItemHandler(orders))
	protected.Post("/order_items", staff, order.AddItemHandler(orders))
	protected.Put("/order_items/:id/status", anyRole, order.UpdateItemStatusHandler(orders))
	protected.Put("/order_items/:id", staff, order.UpdateItemHandler(orders))
	protected.Delete("/order_items/:id", staff, order.DeleteItemHandler(orders))

	// Payments
	protected.Get("/payments", staff, payment.ListPaymentsHandler(payments))
	protected.Get("/payments/:id", staff, payment.GetPaymentHandler(payments))
	protected.Post("/payments", staff, payment.RecordPaymentHandler(payments))
	protected.Put("/payments/:id", staff, payment.UpdatePaymentHandler(payments))
	protected.Delete("/payments/:id", staff, payment.DeletePaymentHandler(payments))

	// Owner reporting
	protected.Get("/audit-logs", owner, audit.ListLogsHandler(db))
	protected.Get("/reports/sales", owner, report.SalesHandler(db))

	return app
}
