package repositories

import (
	"materials-erp/apperr"
	"materials-erp/models"
	"time"

	"gorm.io/gorm"
)

type StockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) *StockRepository {
	return &StockRepository{db}
}

func (r *StockRepository) GetComponent(id uint) (*models.Component, error) {
	var c models.Component
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, apperr.FromDB(err, "component")
	}
	return &c, nil
}

func (r *StockRepository) GetComponentByCode(code string) (*models.Component, error) {
	var c models.Component
	if err := r.db.Where("code = ?", code).First(&c).Error; err != nil {
		return nil, apperr.FromDB(err, "component")
	}
	return &c, nil
}

func (r *StockRepository) CreateComponent(c *models.Component) error {
	return apperr.FromDB(r.db.Create(c).Error, "component")
}

func (r *StockRepository) ListComponents(search string) ([]models.Component, error) {
	var components []models.Component
	q := r.db.Order("code")
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("code LIKE ? OR name LIKE ?", like, like)
	}
	err := q.Find(&components).Error
	return components, err
}

// Decrement takes qty off the on-hand balance in one guarded statement and
// returns the new balance. The row is never driven below zero: a short
// balance fails with a conflict and leaves the row untouched.
func (r *StockRepository) Decrement(componentID uint, qty int) (int, error) {
	res := r.db.Model(&models.Component{}).
		Where("id = ? AND on_hand >= ?", componentID, qty).
		Updates(map[string]interface{}{
			"on_hand":    gorm.Expr("on_hand - ?", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		c, err := r.GetComponent(componentID)
		if err != nil {
			return 0, err
		}
		return 0, apperr.Conflict("component", "insufficient stock for %s: %d on hand, %d requested", c.Code, c.OnHand, qty)
	}
	return r.balance(componentID)
}

// Increment adds qty to the on-hand balance and returns the new balance.
func (r *StockRepository) Increment(componentID uint, qty int) (int, error) {
	res := r.db.Model(&models.Component{}).
		Where("id = ?", componentID).
		Updates(map[string]interface{}{
			"on_hand":    gorm.Expr("on_hand + ?", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, apperr.NotFound("component", "component %d not found", componentID)
	}
	return r.balance(componentID)
}

func (r *StockRepository) balance(componentID uint) (int, error) {
	var onHand int
	err := r.db.Model(&models.Component{}).
		Where("id = ?", componentID).
		Select("on_hand").
		Scan(&onHand).Error
	return onHand, err
}

func (r *StockRepository) AppendCard(entry *models.StockCardEntry) error {
	return r.db.Create(entry).Error
}

// Card returns the stock card of a component in posting order, optionally
// bounded by from/to (zero values are open bounds).
func (r *StockRepository) Card(componentID uint, from, to time.Time) ([]models.StockCardEntry, error) {
	var entries []models.StockCardEntry
	q := r.db.Where("component_id = ?", componentID)
	if !from.IsZero() {
		q = q.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("created_at < ?", to)
	}
	err := q.Order("created_at, id").Find(&entries).Error
	return entries, err
}

func (r *StockRepository) CreateIssue(issue *models.MaterialIssue) error {
	return apperr.FromDB(r.db.Create(issue).Error, "material issue")
}

func (r *StockRepository) GetIssue(issueNo string) (*models.MaterialIssue, error) {
	var issue models.MaterialIssue
	err := r.db.Preload("Items").Where("issue_no = ?", issueNo).First(&issue).Error
	if err != nil {
		return nil, apperr.FromDB(err, "material issue")
	}
	return &issue, nil
}

func (r *StockRepository) IssuesForRequest(parentID uint) ([]models.MaterialIssue, error) {
	var issues []models.MaterialIssue
	err := r.db.Preload("Items").Where("parent_id = ?", parentID).Order("id").Find(&issues).Error
	return issues, err
}

func (r *StockRepository) CreateReturn(ret *models.MaterialReturn) error {
	return apperr.FromDB(r.db.Create(ret).Error, "material return")
}

func (r *StockRepository) SaveReturn(ret *models.MaterialReturn) error {
	return r.db.Save(ret).Error
}

// LockReturn reads a material return for update.
func (r *StockRepository) LockReturn(returnNo string) (*models.MaterialReturn, error) {
	var ret models.MaterialReturn
	err := lockForUpdate(r.db, "material_returns").Where("return_no = ?", returnNo).First(&ret).Error
	if err != nil {
		return nil, apperr.FromDB(err, "material return")
	}
	return &ret, nil
}

func (r *StockRepository) GetReturn(returnNo string) (*models.MaterialReturn, error) {
	var ret models.MaterialReturn
	if err := r.db.Where("return_no = ?", returnNo).First(&ret).Error; err != nil {
		return nil, apperr.FromDB(err, "material return")
	}
	return &ret, nil
}

// OpenReturnQty sums the quantity of returns of a line that are still awaiting approval.
func (r *StockRepository) OpenReturnQty(lineID uint, pending []string) (int, error) {
	var total int
	err := r.db.Model(&models.MaterialReturn{}).
		Where("line_id = ? AND status IN ?", lineID, pending).
		Select("COALESCE(SUM(qty), 0)").
		Scan(&total).Error
	return total, err
}

func (r *StockRepository) ReturnsByStatus(statuses []string) ([]models.MaterialReturn, error) {
	var returns []models.MaterialReturn
	err := r.db.Where("status IN ?", statuses).Order("id").Find(&returns).Error
	return returns, err
}
