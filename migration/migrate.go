package migration

import (
	"materials-erp/models"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.TransactionHistory{},
		&models.Sequence{},
		&models.Component{},
		&models.StockCardEntry{},
		&models.ParentRequest{},
		&models.RequestLine{},
		&models.MaterialIssue{},
		&models.MaterialIssueItem{},
		&models.MaterialReturn{},
		&models.PurchaseOrder{},
		&models.PurchaseOrderLine{},
		&models.BackorderLine{},
		&models.ReturnLine{},
		&models.PurchaseOrderDocument{},
		&models.Notification{},
	)
}
