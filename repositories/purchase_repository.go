package repositories

import (
	"materials-erp/apperr"
	"materials-erp/models"

	"gorm.io/gorm"
)

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db}
}

func (r *PurchaseRepository) CreateOrder(po *models.PurchaseOrder) error {
	return apperr.FromDB(r.db.Create(po).Error, "purchase order")
}

func (r *PurchaseRepository) GetOrder(poNumber string) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	err := r.db.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Documents").
		Where("po_number = ?", poNumber).
		First(&po).Error
	if err != nil {
		return nil, apperr.FromDB(err, "purchase order")
	}
	return &po, nil
}

func (r *PurchaseRepository) ListOrders() ([]models.PurchaseOrder, error) {
	var orders []models.PurchaseOrder
	err := r.db.Preload("Lines").Order("id DESC").Find(&orders).Error
	return orders, err
}

func (r *PurchaseRepository) LockOrderLine(id uint) (*models.PurchaseOrderLine, error) {
	var l models.PurchaseOrderLine
	if err := lockForUpdate(r.db, "purchase_order_lines").First(&l, id).Error; err != nil {
		return nil, apperr.FromDB(err, "purchase order line")
	}
	return &l, nil
}

func (r *PurchaseRepository) SaveOrderLine(l *models.PurchaseOrderLine) error {
	return r.db.Save(l).Error
}

func (r *PurchaseRepository) LockBackorder(seqID string) (*models.BackorderLine, error) {
	var b models.BackorderLine
	err := lockForUpdate(r.db, "backorder_lines").Where("seq_id = ?", seqID).First(&b).Error
	if err != nil {
		return nil, apperr.FromDB(err, "backorder")
	}
	return &b, nil
}

func (r *PurchaseRepository) CreateBackorder(b *models.BackorderLine) error {
	return apperr.FromDB(r.db.Create(b).Error, "backorder")
}

func (r *PurchaseRepository) SaveBackorder(b *models.BackorderLine) error {
	return r.db.Save(b).Error
}

// Backorders lists every backorder descended from a purchase order line.
func (r *PurchaseRepository) Backorders(orderLineID uint) ([]models.BackorderLine, error) {
	var lines []models.BackorderLine
	err := r.db.Where("purchase_order_line_id = ?", orderLineID).Order("id").Find(&lines).Error
	return lines, err
}

func (r *PurchaseRepository) LockReturnLine(seqID string) (*models.ReturnLine, error) {
	var l models.ReturnLine
	err := lockForUpdate(r.db, "return_lines").Where("seq_id = ?", seqID).First(&l).Error
	if err != nil {
		return nil, apperr.FromDB(err, "return line")
	}
	return &l, nil
}

func (r *PurchaseRepository) CreateReturnLine(l *models.ReturnLine) error {
	return apperr.FromDB(r.db.Create(l).Error, "return line")
}

func (r *PurchaseRepository) SaveReturnLine(l *models.ReturnLine) error {
	return r.db.Save(l).Error
}

// ReturnLines lists every return line descended from a purchase order line.
func (r *PurchaseRepository) ReturnLines(orderLineID uint) ([]models.ReturnLine, error) {
	var lines []models.ReturnLine
	err := r.db.Where("purchase_order_line_id = ?", orderLineID).Order("id").Find(&lines).Error
	return lines, err
}

func (r *PurchaseRepository) CreateDocument(doc *models.PurchaseOrderDocument) error {
	return r.db.Create(doc).Error
}
