package audit

import (
	"encoding/json"

	"ledger-backend/internal/auth"
	"ledger-backend/internal/database"
	"ledger-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type LogOptions struct {
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    string
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func WriteLog(opts LogOptions) {
	// 快照序列化失敗就存 "null"，紀錄本身照寫
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	log := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}

	// 異動紀錄寫不進去不擋主流程，記 log 就好
	if err := database.DB.Create(&log).Error; err != nil {
		logrus.WithError(err).Warn("audit log 寫入失敗")
	}
}

// WriteLogFromCtx: 從請求內容補上操作者資訊再寫紀錄。
func WriteLogFromCtx(c *fiber.Ctx, opts LogOptions) {
	if userID, ok := c.Locals(auth.CtxUserIDKey).(uint); ok {
		opts.UserID = userID
	}
	if email, ok := c.Locals(auth.CtxUserEmailKey).(string); ok && opts.UserName == "" {
		opts.UserName = email
	}
	WriteLog(opts)
}
