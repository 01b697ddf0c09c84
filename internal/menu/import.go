package menu

import (
	"fmt"
	"io"
	"strings"

	"foodorder-backend/internal/apperr"
	"foodorder-backend/internal/audit"
	"foodorder-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ImportRow is one menu line read from a spreadsheet.
type ImportRow struct {
	Line        int
	Name        string
	Price       decimal.Decimal
	Category    string
	Description string
}

// ParseSheet reads the first sheet of an xlsx workbook. Columns: name, price,
// category, description. A first row whose price cell is not a number is treated as
// a header. Rows that cannot be read are reported in skipped and left out.
func ParseSheet(r io.Reader) (rows []ImportRow, skipped []string, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}

	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	for i, row := range cells {
		line := i + 1
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}

		name := strings.TrimSpace(row[0])
		var priceCell string
		if len(row) > 1 {
			priceCell = strings.TrimSpace(row[1])
		}

		price, perr := decimal.NewFromString(strings.ReplaceAll(priceCell, ",", "."))
		if perr != nil {
			if i == 0 {
				continue // header
			}
			skipped = append(skipped, fmt.Sprintf("line %d: invalid price %q", line, priceCell))
			continue
		}
		if price.IsNegative() {
			skipped = append(skipped, fmt.Sprintf("line %d: negative price", line))
			continue
		}

		ir := ImportRow{Line: line, Name: name, Price: price.Round(2)}
		if len(row) > 2 {
			ir.Category = strings.TrimSpace(row[2])
		}
		if len(row) > 3 {
			ir.Description = strings.TrimSpace(row[3])
		}
		rows = append(rows, ir)
	}

	return rows, skipped, nil
}

// POST /api/menus/import (multipart field "file")
// Existing items are matched by name and updated; the rest are created.
func ImportMenuHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return apperr.Validation("file upload is required")
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			return apperr.Validation("only .xlsx files are accepted")
		}

		file, err := fileHeader.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not open upload")
		}
		defer file.Close()

		rows, skipped, err := ParseSheet(file)
		if err != nil {
			return apperr.Validation("could not read workbook: %v", err)
		}
		if len(rows) == 0 {
			return apperr.Validation("workbook contains no menu rows")
		}

		var created, updated int
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			for _, r := range rows {
				var m models.MenuItem
				res := tx.Where("name = ?", r.Name).Limit(1).Find(&m)
				if res.Error != nil {
					return apperr.FromStore(res.Error, nil)
				}

				if res.RowsAffected == 0 {
					m = models.MenuItem{
						Name:        r.Name,
						Description: r.Description,
						Price:       r.Price,
						Category:    normalizeCategory(r.Category),
						IsAvailable: true,
					}
					if err := tx.Create(&m).Error; err != nil {
						return apperr.FromStore(err, nil)
					}
					created++
					continue
				}

				fields := map[string]any{"price": r.Price}
				if r.Category != "" {
					fields["category"] = normalizeCategory(r.Category)
				}
				if r.Description != "" {
					fields["description"] = r.Description
				}
				if err := tx.Model(&m).Updates(fields).Error; err != nil {
					return apperr.FromStore(err, nil)
				}
				updated++
			}

			return audit.Record(tx, audit.Entry{
				EntityType:  "menu_item",
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("menu import %s: %d created, %d updated", fileHeader.Filename, created, updated),
			})
		})
		if err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"file":    fileHeader.Filename,
			"created": created,
			"updated": updated,
			"skipped": len(skipped),
		}).Info("menu import finished")

		return c.JSON(fiber.Map{
			"created": created,
			"updated": updated,
			"skipped": skipped,
		})
	}
}
