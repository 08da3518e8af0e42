package helpers

import (
	"materials-erp/models"
	"time"

	"gorm.io/gorm"
)

// HistoryEntry is one committed operation on a numbered document.
type HistoryEntry struct {
	RefNo   string
	Status  string
	Type    string
	Detail  string
	ActorID uint
}

// InsertTransactionHistory writes entry with db, which is normally the
// transaction of the operation being recorded.
func InsertTransactionHistory(db *gorm.DB, entry HistoryEntry) error {
	now := time.Now()
	return db.Create(&models.TransactionHistory{
		RefNo:     entry.RefNo,
		Status:    entry.Status,
		Type:      entry.Type,
		Detail:    entry.Detail,
		CreatedAt: now,
		CreatedBy: int(entry.ActorID),
		UpdatedAt: now,
		UpdatedBy: int(entry.ActorID),
	}).Error
}
