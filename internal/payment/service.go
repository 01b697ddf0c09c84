// Package payment records payments against orders. A completed payment settles its
// order: the order is completed and its table released in the same transaction.
package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"foodorder-backend/internal/apperr"
	"foodorder-backend/internal/audit"
	"foodorder-backend/internal/database"
	"foodorder-backend/internal/models"
	"foodorder-backend/internal/order"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const instrumentationName = "foodorder-backend/internal/payment"

type RecordInput struct {
	OrderID       uint                 `json:"order_id"`
	Amount        decimal.Decimal      `json:"amount"`
	Method        string               `json:"payment_method"`
	TransactionID *string              `json:"transaction_id"`
	Status        models.PaymentStatus `json:"status"`
}

type Patch struct {
	Amount        *decimal.Decimal      `json:"amount"`
	Method        *string               `json:"payment_method"`
	TransactionID *string               `json:"transaction_id"`
	Status        *models.PaymentStatus `json:"status"`
}

type Service struct {
	db       *gorm.DB
	tracer   trace.Tracer
	recorded metric.Int64Counter
}

func NewService(db *gorm.DB) *Service {
	meter := otel.Meter(instrumentationName)
	recorded, err := meter.Int64Counter("payments.recorded", metric.WithDescription("Payments recorded"))
	if err != nil {
		logrus.WithError(err).Warn("payments.recorded counter unavailable")
	}
	return &Service{
		db:       db,
		tracer:   otel.Tracer(instrumentationName),
		recorded: recorded,
	}
}

// Record inserts a payment for a locked order. A completed payment settles the order.
func (s *Service) Record(ctx context.Context, in RecordInput) (*models.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "payment.record")
	defer span.End()

	if in.OrderID == 0 {
		return nil, apperr.Validation("order_id is required")
	}
	amount := in.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive")
	}
	method := strings.TrimSpace(in.Method)
	if method == "" {
		return nil, apperr.Validation("payment_method is required")
	}
	status := in.Status
	if status == "" {
		status = models.PaymentStatusCompleted
	}
	if !status.Valid() {
		return nil, invalidStatus(status)
	}

	p := models.Payment{
		OrderID:       in.OrderID,
		Amount:        amount,
		Method:        method,
		TransactionID: trimmed(in.TransactionID),
		Status:        status,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := lockOrder(tx, in.OrderID)
		if err != nil {
			return err
		}

		p.PaymentTime = time.Now().UTC()
		if err := tx.Create(&p).Error; err != nil {
			return apperr.FromStore(err, nil)
		}

		if p.Status == models.PaymentStatusCompleted {
			if err := order.Settle(tx, o); err != nil {
				return err
			}
		}

		return audit.Record(tx, audit.Entry{
			EntityType:  "payment",
			EntityID:    p.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("payment %s via %s for order %d (%s)", p.Amount.StringFixed(2), p.Method, o.ID, p.Status),
			After:       p,
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.recorded != nil {
		s.recorded.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(p.Status))))
	}
	logrus.WithFields(logrus.Fields{
		"payment_id": p.ID,
		"order_id":   p.OrderID,
		"amount":     p.Amount.StringFixed(2),
		"status":     p.Status,
	}).Info("payment recorded")

	return &p, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, apperr.FromStore(err, apperr.NotFound("payment %d not found", id))
	}
	return &p, nil
}

func (s *Service) List(ctx context.Context, orderID uint) ([]models.Payment, error) {
	dbq := s.db.WithContext(ctx)
	if orderID > 0 {
		dbq = dbq.Where("order_id = ?", orderID)
	}

	var payments []models.Payment
	if err := dbq.Order("payment_time DESC, id DESC").Find(&payments).Error; err != nil {
		return nil, apperr.FromStore(err, nil)
	}
	return payments, nil
}

// Update merges p into payment id. Only a move from a non-completed status to completed
// settles the order; moving off completed leaves the order and table as they are.
func (s *Service) Update(ctx context.Context, id uint, patch Patch) (*models.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "payment.update")
	defer span.End()

	var amount decimal.Decimal
	if patch.Amount != nil {
		amount = patch.Amount.Round(2)
		if !amount.IsPositive() {
			return nil, apperr.Validation("amount must be positive")
		}
	}
	if patch.Method != nil && strings.TrimSpace(*patch.Method) == "" {
		return nil, apperr.Validation("payment_method must not be empty")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, invalidStatus(*patch.Status)
	}

	var p models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			o   *models.Order
			err error
		)
		if p, o, err = lockPayment(tx, id); err != nil {
			return err
		}
		before := p

		fields := map[string]any{}
		if patch.Amount != nil {
			p.Amount = amount
			fields["amount"] = p.Amount
		}
		if patch.Method != nil {
			p.Method = strings.TrimSpace(*patch.Method)
			fields["payment_method"] = p.Method
		}
		if patch.TransactionID != nil {
			p.TransactionID = trimmed(patch.TransactionID)
			fields["transaction_id"] = p.TransactionID
		}
		if patch.Status != nil {
			p.Status = *patch.Status
			fields["status"] = p.Status
		}
		if len(fields) == 0 {
			return nil
		}

		if err := tx.Model(&p).Updates(fields).Error; err != nil {
			return apperr.FromStore(err, nil)
		}

		if before.Status != models.PaymentStatusCompleted && p.Status == models.PaymentStatusCompleted {
			if err := order.Settle(tx, o); err != nil {
				return err
			}
		}

		return audit.Record(tx, audit.Entry{
			EntityType:  "payment",
			EntityID:    p.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("payment updated, %s %s", p.Amount.StringFixed(2), p.Status),
			Before:      before,
			After:       p,
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &p, nil
}

// Delete removes the payment row only. Any settlement it caused stays in place.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, _, err := lockPayment(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(&p).Error; err != nil {
			return apperr.FromStore(err, nil)
		}
		return audit.Record(tx, audit.Entry{
			EntityType:  "payment",
			EntityID:    p.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("payment %s for order %d deleted", p.Amount.StringFixed(2), p.OrderID),
			Before:      p,
		})
	})
}

// lockPayment locks the owning order before the payment row, matching the order-first
// lock order used by item writes and settlement.
func lockPayment(tx *gorm.DB, id uint) (models.Payment, *models.Order, error) {
	var p models.Payment
	if err := tx.Select("id", "order_id").First(&p, id).Error; err != nil {
		return p, nil, apperr.FromStore(err, apperr.NotFound("payment %d not found", id))
	}
	o, err := order.Lock(tx, p.OrderID)
	if err != nil {
		return p, nil, asPaymentNotFound(err, id)
	}

	p = models.Payment{}
	if err := database.LockForUpdate(tx).First(&p, id).Error; err != nil {
		return p, nil, apperr.FromStore(err, apperr.NotFound("payment %d not found", id))
	}
	return p, o, nil
}

func asPaymentNotFound(err error, id uint) error {
	if apperr.IsKind(err, apperr.KindNotFound) {
		return apperr.NotFound("payment %d not found", id)
	}
	return err
}

// lockOrder reports a missing order as a bad reference rather than a 404.
func lockOrder(tx *gorm.DB, id uint) (*models.Order, error) {
	o, err := order.Lock(tx, id)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return nil, apperr.Dependency("order %d does not exist", id)
	}
	return o, err
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func invalidStatus(s models.PaymentStatus) *apperr.Error {
	return apperr.Validation("invalid payment status %q, allowed: pending, completed", s)
}
