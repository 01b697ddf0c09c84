// Package report exports sales data as Excel workbooks.
package report

import (
	"context"
	"fmt"
	"time"

	"foodorder-backend/internal/apperr"
	"foodorder-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	ordersSheet   = "Orders"
	paymentsSheet = "Payments"
	dateLayout    = "2006-01-02"
	timeLayout    = "2006-01-02 15:04"
)

type Summary struct {
	Orders     int
	GrossTotal decimal.Decimal // cancelled orders excluded
	PaidTotal  decimal.Decimal // completed payments only
}

// Range is the half-open interval [From, To).
type Range struct {
	From time.Time
	To   time.Time
}

// ParseRange reads from/to as calendar days; to is inclusive. Both default to today.
func ParseRange(from, to string, now time.Time) (Range, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	r := Range{From: today, To: today}

	var err error
	if from != "" {
		if r.From, err = time.Parse(dateLayout, from); err != nil {
			return Range{}, apperr.Validation("from must be YYYY-MM-DD")
		}
	}
	if to != "" {
		if r.To, err = time.Parse(dateLayout, to); err != nil {
			return Range{}, apperr.Validation("to must be YYYY-MM-DD")
		}
	}
	if r.To.Before(r.From) {
		return Range{}, apperr.Validation("to must not be before from")
	}
	r.To = r.To.AddDate(0, 0, 1)
	return r, nil
}

// BuildSales writes the orders and payments in r into a new workbook.
func BuildSales(ctx context.Context, db *gorm.DB, r Range) (*excelize.File, Summary, error) {
	var orders []models.Order
	err := db.WithContext(ctx).Preload("Table").
		Where("order_time >= ? AND order_time < ?", r.From, r.To).
		Order("order_time ASC, id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, Summary{}, apperr.FromStore(err, nil)
	}

	var payments []models.Payment
	err = db.WithContext(ctx).
		Where("payment_time >= ? AND payment_time < ?", r.From, r.To).
		Order("payment_time ASC, id ASC").
		Find(&payments).Error
	if err != nil {
		return nil, Summary{}, apperr.FromStore(err, nil)
	}

	sum := Summary{Orders: len(orders), GrossTotal: decimal.Zero, PaidTotal: decimal.Zero}

	// cells carry float64 for spreadsheet arithmetic; Summary keeps the exact decimals
	rows := [][]any{{"Order ID", "Time", "Table", "Customer", "Status", "Total"}}
	for _, o := range orders {
		tableNumber := 0
		if o.Table != nil {
			tableNumber = o.Table.TableNumber
		}
		total, _ := o.TotalAmount.Float64()
		rows = append(rows, []any{o.ID, o.OrderTime.Format(timeLayout), tableNumber, o.CustomerName, string(o.Status), total})
		if o.Status != models.OrderStatusCancelled {
			sum.GrossTotal = sum.GrossTotal.Add(o.TotalAmount)
		}
	}

	payRows := [][]any{{"Payment ID", "Order ID", "Time", "Method", "Status", "Amount"}}
	for _, p := range payments {
		amount, _ := p.Amount.Float64()
		payRows = append(payRows, []any{p.ID, p.OrderID, p.PaymentTime.Format(timeLayout), p.Method, string(p.Status), amount})
		if p.Status == models.PaymentStatusCompleted {
			sum.PaidTotal = sum.PaidTotal.Add(p.Amount)
		}
	}

	gross, _ := sum.GrossTotal.Float64()
	paid, _ := sum.PaidTotal.Float64()
	rows = append(rows, nil, []any{"Orders", sum.Orders, "Gross", gross, "Paid", paid})

	f, err := workbook(sheet{ordersSheet, rows}, sheet{paymentsSheet, payRows})
	if err != nil {
		return nil, Summary{}, apperr.Unexpected(err, "could not build workbook")
	}
	return f, sum, nil
}

type sheet struct {
	name string
	rows [][]any
}

// workbook creates a file holding sheets in order. The file is closed on any error.
func workbook(sheets ...sheet) (_ *excelize.File, err error) {
	f := excelize.NewFile()
	defer func() {
		if err != nil {
			_ = f.Close()
		}
	}()

	for i, s := range sheets {
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), s.name)
		} else {
			_, err = f.NewSheet(s.name)
		}
		if err != nil {
			return nil, fmt.Errorf("create sheet %q: %w", s.name, err)
		}
		if err = writeRows(f, s.name, s.rows); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if row == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// GET /api/reports/sales?from=2025-01-01&to=2025-01-31
func SalesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := ParseRange(c.Query("from"), c.Query("to"), time.Now().UTC())
		if err != nil {
			return err
		}

		f, sum, err := BuildSales(c.UserContext(), db, r)
		if err != nil {
			return err
		}
		defer f.Close()

		buf, err := f.WriteToBuffer()
		if err != nil {
			return apperr.Unexpected(err, "could not render workbook")
		}

		logrus.WithFields(logrus.Fields{
			"from":   r.From.Format(dateLayout),
			"orders": sum.Orders,
			"gross":  sum.GrossTotal.StringFixed(2),
			"paid":   sum.PaidTotal.StringFixed(2),
		}).Info("sales report exported")

		name := fmt.Sprintf("sales_%s_%s.xlsx", r.From.Format(dateLayout), r.To.AddDate(0, 0, -1).Format(dateLayout))
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
		return c.Send(buf.Bytes())
	}
}
