package auth

import (
	"strings"

	"foodorder-backend/internal/apperr"
	"foodorder-backend/internal/config"
	"foodorder-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterRequest struct {
	Username string          `json:"username"`
	Name     string          `json:"name"`
	Password string          `json:"password"`
	Role     models.UserRole `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID        uint            `json:"id"`
	Username  string          `json:"username"`
	Name      string          `json:"name"`
	Role      models.UserRole `json:"role"`
	CreatedAt string          `json:"created_at"`
}

func toUserResponse(u models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// POST /api/auth/register-owner
// Only allowed while no owner account exists.
func RegisterOwnerHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		body.Role = models.RoleOwner

		var user models.User
		err := db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.User{}).Where("role = ?", models.RoleOwner).Count(&count).Error; err != nil {
				return apperr.FromStore(err, nil)
			}
			if count > 0 {
				return fiber.NewError(fiber.StatusForbidden, "an owner account already exists")
			}

			var err error
			user, err = createUser(tx, body)
			return err
		})
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
	}
}

// POST /api/users (owner only)
func CreateStaffHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if !body.Role.Valid() {
			return apperr.Validation("role must be one of owner, chef, waiter")
		}

		user, err := createUser(db.WithContext(c.UserContext()), body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
	}
}

// GET /api/users (owner only)
func ListStaffHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var users []models.User
		if err := db.WithContext(c.UserContext()).Order("created_at DESC").Find(&users).Error; err != nil {
			return apperr.FromStore(err, nil)
		}

		res := make([]UserResponse, 0, len(users))
		for _, u := range users {
			res = append(res, toUserResponse(u))
		}
		return c.JSON(res)
	}
}

func createUser(db *gorm.DB, body RegisterRequest) (models.User, error) {
	body.Username = strings.TrimSpace(strings.ToLower(body.Username))
	body.Name = strings.TrimSpace(body.Name)
	if body.Username == "" || body.Password == "" || body.Name == "" {
		return models.User{}, apperr.Validation("username, name and password are required")
	}

	var existing int64
	if err := db.Model(&models.User{}).Where("username = ?", body.Username).Count(&existing).Error; err != nil {
		return models.User{}, apperr.FromStore(err, nil)
	}
	if existing > 0 {
		return models.User{}, apperr.Conflict("username %q is already taken", body.Username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fiber.NewError(fiber.StatusInternalServerError, "could not hash password")
	}

	user := models.User{
		Username:     body.Username,
		Name:         body.Name,
		PasswordHash: string(hash),
		Role:         body.Role,
	}
	if err := db.Create(&user).Error; err != nil {
		return models.User{}, apperr.FromStore(err, nil)
	}
	return user, nil
}

// POST /api/auth/login
func LoginHandler(cfg *config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		username := strings.TrimSpace(strings.ToLower(body.Username))

		var user models.User
		if err := db.WithContext(c.UserContext()).Where("username = ?", username).First(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid username or password")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid username or password")
		}

		token, err := GenerateToken(cfg.JWTSecret, cfg.TokenTTL, &user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not issue token")
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user":  toUserResponse(user),
		})
	}
}

// GET /api/auth/me
func MeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := ActorFrom(c.UserContext())

		var user models.User
		if err := db.WithContext(c.UserContext()).First(&user, actor.UserID).Error; err != nil {
			return apperr.FromStore(err, apperr.NotFound("user %d not found", actor.UserID))
		}
		return c.JSON(toUserResponse(user))
	}
}
