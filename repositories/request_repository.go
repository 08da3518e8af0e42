package repositories

import (
	"materials-erp/apperr"
	"materials-erp/models"
	"materials-erp/workflow"

	"gorm.io/gorm"
)

type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db}
}

// RequestFilter narrows ListParents. Empty fields do not filter.
type RequestFilter struct {
	Track       workflow.Track
	Department  string
	RequesterID uint
	Status      string
	Drafts      bool
}

func (r *RequestRepository) CreateParent(p *models.ParentRequest) error {
	return apperr.FromDB(r.db.Create(p).Error, "request")
}

func (r *RequestRepository) SaveParent(p *models.ParentRequest) error {
	return apperr.FromDB(r.db.Omit("Lines").Save(p).Error, "request")
}

func (r *RequestRepository) GetParent(requestNo string) (*models.ParentRequest, error) {
	var p models.ParentRequest
	err := r.db.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Lines.Component").
		Where("request_no = ?", requestNo).
		First(&p).Error
	if err != nil {
		return nil, apperr.FromDB(err, "request")
	}
	return &p, nil
}

func (r *RequestRepository) GetParentByID(id uint) (*models.ParentRequest, error) {
	var p models.ParentRequest
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, apperr.FromDB(err, "request")
	}
	return &p, nil
}

// LockParent reads a parent request for update. Every line change of the
// request goes through this lock, so concurrent operations on the same request
// serialize while other requests proceed.
func (r *RequestRepository) LockParent(requestNo string) (*models.ParentRequest, error) {
	var p models.ParentRequest
	err := lockForUpdate(r.db, "parent_requests").Where("request_no = ?", requestNo).First(&p).Error
	if err != nil {
		return nil, apperr.FromDB(err, "request")
	}
	return &p, nil
}

// LockLines reads the lines of a parent for update, ordered by id.
func (r *RequestRepository) LockLines(parentID uint) ([]models.RequestLine, error) {
	var lines []models.RequestLine
	err := lockForUpdate(r.db, "request_lines").
		Where("parent_id = ?", parentID).
		Order("id").
		Find(&lines).Error
	return lines, err
}

func (r *RequestRepository) LockLine(id uint) (*models.RequestLine, error) {
	var l models.RequestLine
	if err := lockForUpdate(r.db, "request_lines").First(&l, id).Error; err != nil {
		return nil, apperr.FromDB(err, "request line")
	}
	return &l, nil
}

func (r *RequestRepository) GetLine(id uint) (*models.RequestLine, error) {
	var l models.RequestLine
	if err := r.db.First(&l, id).Error; err != nil {
		return nil, apperr.FromDB(err, "request line")
	}
	return &l, nil
}

func (r *RequestRepository) SaveLine(l *models.RequestLine) error {
	return r.db.Omit("Component").Save(l).Error
}

func (r *RequestRepository) DeleteLine(l *models.RequestLine) error {
	return r.db.Delete(l).Error
}

func (r *RequestRepository) DeleteParent(p *models.ParentRequest) error {
	if err := r.db.Where("parent_id = ?", p.ID).Delete(&models.RequestLine{}).Error; err != nil {
		return err
	}
	return r.db.Delete(p).Error
}

func (r *RequestRepository) ListParents(f RequestFilter) ([]models.ParentRequest, error) {
	var parents []models.ParentRequest
	q := r.db.Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
	if f.Drafts {
		q = q.Where("submitted_at IS NULL")
	} else {
		q = q.Where("submitted_at IS NOT NULL")
	}
	if f.Track != "" {
		q = q.Where("track = ?", f.Track)
	}
	if f.Department != "" {
		q = q.Where("department = ?", f.Department)
	}
	if f.RequesterID != 0 {
		q = q.Where("requester_id = ?", f.RequesterID)
	}
	if f.Status != "" {
		q = q.Where("id IN (?)", r.db.Model(&models.RequestLine{}).Select("parent_id").Where("status = ?", f.Status))
	}
	err := q.Order("id DESC").Find(&parents).Error
	return parents, err
}

// LinesByStatus lists lines of a track waiting in status, oldest first.
// department limits the result to requests raised in that department.
func (r *RequestRepository) LinesByStatus(track workflow.Track, status, department string) ([]models.RequestLine, error) {
	var lines []models.RequestLine
	q := r.db.Preload("Component").Where("request_lines.track = ? AND request_lines.status = ?", track, status)
	if department != "" {
		q = q.Joins("JOIN parent_requests ON parent_requests.id = request_lines.parent_id").
			Where("parent_requests.department = ?", department)
	}
	err := q.Order("request_lines.id").Find(&lines).Error
	return lines, err
}
