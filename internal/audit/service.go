package audit

import (
	"encoding/json"
	"fmt"

	"foodorder-backend/internal/auth"
	"foodorder-backend/internal/models"

	"gorm.io/gorm"
)

type Entry struct {
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// Record writes an audit log row using tx, so the row commits or rolls back with the
// change it describes. The acting user comes from the statement context.
func Record(tx *gorm.DB, e Entry) error {
	actor := auth.ActorFrom(tx.Statement.Context)

	row := models.AuditLog{
		UserID:      actor.UserID,
		UserName:    actor.Name,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		Action:      e.Action,
		Description: e.Description,
		BeforeData:  snapshot(e.Before),
		AfterData:   snapshot(e.After),
	}

	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// jsonb columns need "null" rather than an empty string.
func snapshot(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
