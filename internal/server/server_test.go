package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"foodorder-backend/internal/config"
	"foodorder-backend/internal/database/dbtest"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type client struct {
	t     *testing.T
	app   *fiber.App
	token string
}

func newClient(t *testing.T) *client {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:     "0123456789abcdef0123456789abcdef",
		TokenTTL:      time.Hour,
		CORSOrigins:   "http://localhost:5173",
		MenuImagePath: t.TempDir(),
		LogLevel:      "info",
		LogFormat:     "json",
	}
	return &client{t: t, app: New(cfg, dbtest.New(t))}
}

// do sends body as JSON and decodes the JSON response into a map, or a slice for lists.
func (c *client) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	status, raw := c.raw(method, path, body)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(c.t, json.Unmarshal(raw, &out))
	}
	return status, out
}

func (c *client) raw(method, path string, body any) (int, []byte) {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, raw
}

func (c *client) loginOwner() {
	c.t.Helper()
	status, _ := c.do("POST", "/api/auth/register-owner", map[string]any{"username": "Owner", "name": "Hatice", "password": "s3cret-pass"})
	require.Equal(c.t, fiber.StatusCreated, status)

	status, body := c.do("POST", "/api/auth/login", map[string]any{"username": "owner", "password": "s3cret-pass"})
	require.Equal(c.t, fiber.StatusOK, status)
	c.token = body["token"].(string)
}

func id(body map[string]any, key string) string {
	return fmt.Sprintf("%d", int(body[key].(float64)))
}

func TestHealth(t *testing.T) {
	c := newClient(t)
	status, body := c.do("GET", "/health", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestOrderToPaymentScenario(t *testing.T) {
	c := newClient(t)
	c.loginOwner()

	status, menuX := c.do("POST", "/api/menus", map[string]any{"name": "Iskender", "price": 120.00, "category": "grill"})
	require.Equal(t, fiber.StatusCreated, status)
	status, menuY := c.do("POST", "/api/menus", map[string]any{"name": "Kunefe", "price": "50.00"})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "general", menuY["category"])

	status, tbl := c.do("POST", "/api/tables", map[string]any{"table_number": 5, "capacity": 4})
	require.Equal(t, fiber.StatusCreated, status)
	tableID := id(tbl, "id")

	status, created := c.do("POST", "/api/orders", map[string]any{
		"table_id":     tbl["id"],
		"total_amount": 1, // ignored
		"items":        []map[string]any{{"menu_id": menuX["id"], "quantity": 2}},
	})
	require.Equal(t, fiber.StatusCreated, status)
	assert.EqualValues(t, 240, created["total_amount"])
	assert.Equal(t, "pending", created["status"])
	assert.NotEmpty(t, created["order_time"])
	orderID := id(created, "order_id")

	status, tbl = c.do("GET", "/api/tables/"+tableID, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, tbl["is_occupied"])
	assert.EqualValues(t, created["order_id"], tbl["current_order_id"])

	status, _ = c.do("POST", "/api/order_items", map[string]any{"order_id": created["order_id"], "menu_id": menuY["id"], "quantity": 1})
	require.Equal(t, fiber.StatusCreated, status)

	status, o := c.do("GET", "/api/orders/"+orderID, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 290, o["total_amount"])
	assert.Len(t, o["items"], 2)
	assert.Equal(t, false, o["all_items_served"])
	assert.EqualValues(t, 0, o["paid_amount"])

	status, paid := c.do("POST", "/api/payments", map[string]any{"order_id": created["order_id"], "amount": 290.00, "payment_method": "cash"})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "completed", paid["status"])

	status, o = c.do("GET", "/api/orders/"+orderID, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "completed", o["status"])
	assert.EqualValues(t, 290, o["paid_amount"])

	status, tbl = c.do("GET", "/api/tables/"+tableID, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, tbl["is_occupied"])
	assert.Nil(t, tbl["current_order_id"])

	status, _ = c.do("PUT", "/api/orders/"+orderID+"/status", map[string]any{"status": "delivered"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, raw := c.raw("GET", "/api/reports/sales", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.NotEmpty(t, raw)
}

func TestErrorStatuses(t *testing.T) {
	c := newClient(t)

	status, body := c.do("GET", "/api/tables", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.NotEmpty(t, body["error"])

	c.loginOwner()

	status, _ = c.do("POST", "/api/auth/register-owner", map[string]any{"username": "second", "name": "X", "password": "pw"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = c.do("POST", "/api/tables", map[string]any{"table_number": 5, "capacity": 4})
	require.Equal(t, fiber.StatusCreated, status)

	status, body = c.do("POST", "/api/tables", map[string]any{"table_number": 5, "capacity": 2})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Contains(t, body["error"], "already exists")

	status, _ = c.do("POST", "/api/tables", map[string]any{"table_number": 6})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = c.do("GET", "/api/orders/999", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = c.do("POST", "/api/orders", map[string]any{"table_id": 999, "items": []map[string]any{{"menu_id": 1, "quantity": 1}}})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = c.do("POST", "/api/payments", map[string]any{"order_id": 999, "amount": 10, "payment_method": "cash"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = c.do("PUT", "/api/orders/1/bill_request", map[string]any{"bill_requested": "yes"})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestWaiterCannotManageMenu(t *testing.T) {
	c := newClient(t)
	c.loginOwner()

	status, _ := c.do("POST", "/api/users", map[string]any{"username": "garson", "name": "Emre", "password": "pw-123456", "role": "waiter"})
	require.Equal(t, fiber.StatusCreated, status)

	status, body := c.do("POST", "/api/auth/login", map[string]any{"username": "garson", "password": "pw-123456"})
	require.Equal(t, fiber.StatusOK, status)
	c.token = body["token"].(string)

	status, _ = c.do("POST", "/api/menus", map[string]any{"name": "Soup", "price": 10})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = c.do("GET", "/api/menus", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, me := c.do("GET", "/api/auth/me", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "waiter", me["role"])
}
