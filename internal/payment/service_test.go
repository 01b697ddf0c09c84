package payment

import (
	"context"
	"testing"

	"foodorder-backend/internal/apperr"
	"foodorder-backend/internal/database/dbtest"
	"foodorder-backend/internal/models"
	"foodorder-backend/internal/order"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	orders *order.Service
	svc    *Service
	table  models.Table
	order  *models.Order // 240.00, pending, holds table
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)

	tbl := models.Table{TableNumber: 5, Capacity: 4, Status: models.TableStatusAvailable}
	require.NoError(t, db.Create(&tbl).Error)
	kebab := models.MenuItem{Name: "Adana kebab", Price: decimal.RequireFromString("120.00"), Category: "grill", IsAvailable: true}
	require.NoError(t, db.Create(&kebab).Error)

	orders := order.NewService(db)
	o, err := orders.Create(context.Background(), order.CreateInput{
		TableID: tbl.ID,
		Items:   []order.ItemInput{{MenuItemID: kebab.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	return &fixture{db: db, orders: orders, svc: NewService(db), table: tbl, order: o}
}

func (f *fixture) state(t *testing.T) (models.Order, models.Table) {
	t.Helper()
	var o models.Order
	require.NoError(t, f.db.First(&o, f.order.ID).Error)
	var tbl models.Table
	require.NoError(t, f.db.First(&tbl, f.table.ID).Error)
	return o, tbl
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRecordCompletedSettlesOrder(t *testing.T) {
	f := newFixture(t)
	ref := " TX-881 "

	p, err := f.svc.Record(context.Background(), RecordInput{OrderID: f.order.ID, Amount: amount("240"), Method: "card", TransactionID: &ref})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusCompleted, p.Status)
	assert.False(t, p.PaymentTime.IsZero())
	require.NotNil(t, p.TransactionID)
	assert.Equal(t, "TX-881", *p.TransactionID)

	o, tbl := f.state(t)
	assert.Equal(t, models.OrderStatusCompleted, o.Status)
	assert.False(t, tbl.IsOccupied)
	assert.Nil(t, tbl.CurrentOrderID)
	assert.Equal(t, models.TableStatusAvailable, tbl.Status)
}

func TestRecordPendingLeavesOrderOpen(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Record(context.Background(), RecordInput{OrderID: f.order.ID, Amount: amount("100"), Method: "cash", Status: models.PaymentStatusPending})
	require.NoError(t, err)

	o, tbl := f.state(t)
	assert.Equal(t, models.OrderStatusPending, o.Status)
	assert.True(t, tbl.IsOccupied)
}

func TestRecordValidation(t *testing.T) {
	f := newFixture(t)

	cases := map[string]struct {
		in   RecordInput
		kind apperr.Kind
	}{
		"missing order":  {RecordInput{OrderID: 999, Amount: amount("10"), Method: "cash"}, apperr.KindDependency},
		"no order id":    {RecordInput{Amount: amount("10"), Method: "cash"}, apperr.KindValidation},
		"zero amount":    {RecordInput{OrderID: f.order.ID, Method: "cash"}, apperr.KindValidation},
		"negative":       {RecordInput{OrderID: f.order.ID, Amount: amount("-5"), Method: "cash"}, apperr.KindValidation},
		"rounds to zero": {RecordInput{OrderID: f.order.ID, Amount: amount("0.004"), Method: "cash"}, apperr.KindValidation},
		"no method":      {RecordInput{OrderID: f.order.ID, Amount: amount("10"), Method: "  "}, apperr.KindValidation},
		"unknown status": {RecordInput{OrderID: f.order.ID, Amount: amount("10"), Method: "cash", Status: "refunded"}, apperr.KindValidation},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Record(context.Background(), tc.in)
			assert.True(t, apperr.IsKind(err, tc.kind), "%v", err)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Payment{}).Count(&count).Error)
	assert.Zero(t, count)
	o, tbl := f.state(t)
	assert.Equal(t, models.OrderStatusPending, o.Status)
	assert.True(t, tbl.IsOccupied)
}

func TestUpdateToCompletedSettles(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Record(context.Background(), RecordInput{OrderID: f.order.ID, Amount: amount("240"), Method: "cash", Status: models.PaymentStatusPending})
	require.NoError(t, err)

	completed := models.PaymentStatusCompleted
	updated, err := f.svc.Update(context.Background(), p.ID, Patch{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, "cash", updated.Method)
	assert.True(t, amount("240").Equal(updated.Amount))

	o, tbl := f.state(t)
	assert.Equal(t, models.OrderStatusCompleted, o.Status)
	assert.False(t, tbl.IsOccupied)
}

func TestUpdateAlreadyCompletedDoesNotRefire(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Record(context.Background(), RecordInput{OrderID: f.order.ID, Amount: amount("240"), Method: "cash"})
	require.NoError(t, err)

	// the order is reopened by hand; editing the completed payment must not close it again
	_, err = f.orders.SetStatus(context.Background(), f.order.ID, models.OrderStatusPreparing)
	require.NoError(t, err)

	method := "card"
	completed := models.PaymentStatusCompleted
	_, err = f.svc.Update(context.Background(), p.ID, Patch{Method: &method, Status: &completed})
	require.NoError(t, err)

	o, _ := f.state(t)
	assert.Equal(t, models.OrderStatusPreparing, o.Status)
}

func TestReversalKeepsSettlement(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Record(context.Background(), RecordInput{OrderID: f.order.ID, Amount: amount("240"), Method: "cash"})
	require.NoError(t, err)

	pending := models.PaymentStatusPending
	_, err = f.svc.Update(context.Background(), p.ID, Patch{Status: &pending})
	require.NoError(t, err)

	o, tbl := f.state(t)
	assert.Equal(t, models.OrderStatusCompleted, o.Status)
	assert.False(t, tbl.IsOccupied)

	require.NoError(t, f.svc.Delete(context.Background(), p.ID))
	o, tbl = f.state(t)
	assert.Equal(t, models.OrderStatusCompleted, o.Status)
	assert.False(t, tbl.IsOccupied)

	_, err = f.svc.Get(context.Background(), p.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestUpdateValidationAndMissing(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Record(context.Background(), RecordInput{OrderID: f.order.ID, Amount: amount("20"), Method: "cash", Status: models.PaymentStatusPending})
	require.NoError(t, err)

	zero := decimal.Zero
	_, err = f.svc.Update(context.Background(), p.ID, Patch{Amount: &zero})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	dust := amount("0.004")
	_, err = f.svc.Update(context.Background(), p.ID, Patch{Amount: &dust})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	stored, err := f.svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, amount("20").Equal(stored.Amount))

	bad := models.PaymentStatus("void")
	_, err = f.svc.Update(context.Background(), p.ID, Patch{Status: &bad})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = f.svc.Update(context.Background(), 404, Patch{Amount: &zero})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	more := amount("35.5")
	_, err = f.svc.Update(context.Background(), 404, Patch{Amount: &more})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	assert.True(t, apperr.IsKind(f.svc.Delete(context.Background(), 404), apperr.KindNotFound))
}

func TestListFiltersByOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Record(context.Background(), RecordInput{OrderID: f.order.ID, Amount: amount("100"), Method: "cash", Status: models.PaymentStatusPending})
	require.NoError(t, err)
	_, err = f.svc.Record(context.Background(), RecordInput{OrderID: f.order.ID, Amount: amount("140"), Method: "card"})
	require.NoError(t, err)

	list, err := f.svc.List(context.Background(), f.order.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.svc.List(context.Background(), f.order.ID+1)
	require.NoError(t, err)
	assert.Empty(t, list)

	paid, err := f.orders.PaidAmount(context.Background(), f.order.ID)
	require.NoError(t, err)
	assert.True(t, amount("140").Equal(paid))
}
