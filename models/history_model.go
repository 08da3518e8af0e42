package models

import (
	"materials-erp/controllers/idgen"
	"materials-erp/types"
	"time"

	"gorm.io/gorm"
)

// TransactionHistory is the operation-level audit row written once per
// committed workflow operation.
type TransactionHistory struct {
	ID        types.SnowflakeID `json:"ID" gorm:"primaryKey"`
	RefNo     string            `json:"ref_no" gorm:"size:32;index"`
	Status    string            `json:"status"`
	Type      string            `json:"type" gorm:"size:32"`
	Detail    string            `json:"detail"`
	CreatedAt time.Time
	CreatedBy int
	UpdatedAt time.Time
	UpdatedBy int
}

func (u *TransactionHistory) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == 0 {
		u.ID = types.SnowflakeID(idgen.GenerateID())
	}
	return
}
