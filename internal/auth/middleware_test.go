package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"foodorder-backend/internal/config"
	"foodorder-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp(cfg *config.Config) *fiber.App {
	app := fiber.New()
	app.Get("/waiter-only", JWTMiddleware(cfg), RequireRole(models.RoleWaiter, models.RoleOwner), func(c *fiber.Ctx) error {
		a := ActorFrom(c.UserContext())
		return c.JSON(fiber.Map{"user_id": a.UserID, "name": a.Name})
	})
	return app
}

func TestJWTMiddleware(t *testing.T) {
	cfg := &config.Config{JWTSecret: "0123456789abcdef0123456789abcdef", TokenTTL: time.Hour}
	app := testApp(cfg)

	waiter, err := GenerateToken(cfg.JWTSecret, cfg.TokenTTL, &models.User{ID: 3, Name: "Mert", Role: models.RoleWaiter})
	require.NoError(t, err)
	chef, err := GenerateToken(cfg.JWTSecret, cfg.TokenTTL, &models.User{ID: 4, Name: "Zeynep", Role: models.RoleChef})
	require.NoError(t, err)
	expired, err := GenerateToken(cfg.JWTSecret, -time.Minute, &models.User{ID: 3, Name: "Mert", Role: models.RoleWaiter})
	require.NoError(t, err)
	forged, err := GenerateToken("another-secret-another-secret-000", cfg.TokenTTL, &models.User{ID: 1, Role: models.RoleOwner})
	require.NoError(t, err)

	cases := map[string]struct {
		header string
		want   int
	}{
		"missing header":    {"", fiber.StatusUnauthorized},
		"not bearer":        {"Basic abc", fiber.StatusUnauthorized},
		"empty bearer":      {"Bearer ", fiber.StatusUnauthorized},
		"garbage token":     {"Bearer not.a.jwt", fiber.StatusForbidden},
		"expired token":     {"Bearer " + expired, fiber.StatusForbidden},
		"wrong secret":      {"Bearer " + forged, fiber.StatusForbidden},
		"insufficient role": {"Bearer " + chef, fiber.StatusForbidden},
		"allowed":           {"Bearer " + waiter, fiber.StatusOK},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/waiter-only", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}
