package models

import (
	"materials-erp/controllers/idgen"
	"materials-erp/types"
	"time"

	"gorm.io/gorm"
)

const (
	EntityRequest        = "request"
	EntityPurchaseOrder  = "purchase_order"
	EntityBackorder      = "backorder"
	EntityReturnLine     = "return_line"
	EntityMaterialReturn = "material_return"
)

type Notification struct {
	ID          types.SnowflakeID `json:"id" gorm:"primaryKey"`
	RecipientID uint              `json:"recipient_id" gorm:"index"`
	EntityType  string            `json:"entity_type" gorm:"size:32"`
	EntityRef   string            `json:"entity_ref" gorm:"size:32;index"`
	Message     string            `json:"message"`
	StatusTag   string            `json:"status_tag" gorm:"size:64"`
	IsRead      bool              `json:"is_read" gorm:"default:false;index"`
	ReadAt      *time.Time        `json:"read_at"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == 0 {
		n.ID = types.SnowflakeID(idgen.GenerateID())
	}
	return
}

// Sequence is the counter row behind every human-readable number.
type Sequence struct {
	Name      string `gorm:"primaryKey;size:48"`
	Value     int64
	UpdatedAt time.Time
}
