package menu

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"foodorder-backend/internal/apperr"
	"foodorder-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ImageRoute is the public prefix uploaded images are served from.
const ImageRoute = "/images"

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// POST /api/menus/:id/image (multipart field "image")
func UploadImageHandler(db *gorm.DB, imageDir string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperr.Validation("invalid menu item id")
		}

		fileHeader, err := c.FormFile("image")
		if err != nil {
			return apperr.Validation("image upload is required")
		}
		ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
		if !imageExtensions[ext] {
			return apperr.Validation("image must be jpg, png or webp")
		}

		var m models.MenuItem
		if err := db.WithContext(c.UserContext()).First(&m, id).Error; err != nil {
			return apperr.FromStore(err, notFound(id))
		}

		if err := os.MkdirAll(imageDir, 0o755); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create image directory")
		}

		fileName := fmt.Sprintf("menu-%d-%s%s", m.ID, uuid.NewString(), ext)
		if err := c.SaveFile(fileHeader, filepath.Join(imageDir, fileName)); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not store image")
		}

		m.ImageURL = ImageRoute + "/" + fileName
		if err := db.WithContext(c.UserContext()).Model(&m).Update("image_url", m.ImageURL).Error; err != nil {
			return apperr.FromStore(err, nil)
		}

		return c.JSON(toResponse(m))
	}
}
