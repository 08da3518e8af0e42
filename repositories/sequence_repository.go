package repositories

import (
	"errors"
	"materials-erp/models"
	"strings"
	"time"

	"gorm.io/gorm"
)

type SequenceRepository struct {
	db *gorm.DB
}

// NewSequenceRepository expects a transaction handle: the counter row stays
// locked until that transaction ends.
func NewSequenceRepository(db *gorm.DB) *SequenceRepository {
	return &SequenceRepository{db}
}

// Next locks the counter row of name, increments it and returns the new value.
// A missing row is created with value 1; a concurrent creator makes the insert
// fail with a duplicate key, which IsRetryable reports.
func (r *SequenceRepository) Next(name string) (int64, error) {
	var seq models.Sequence
	err := lockForUpdate(r.db, "sequences").
		Where("name = ?", name).
		Take(&seq).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		seq = models.Sequence{Name: name, Value: 1, UpdatedAt: time.Now()}
		if err := r.db.Create(&seq).Error; err != nil {
			return 0, err
		}
		return seq.Value, nil
	}
	if err != nil {
		return 0, err
	}

	res := r.db.Model(&models.Sequence{}).
		Where("name = ? AND value = ?", name, seq.Value).
		Updates(map[string]interface{}{
			"value":      gorm.Expr("value + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, errSequenceMoved
	}
	return seq.Value + 1, nil
}

var errSequenceMoved = errors.New("sequence moved while locked")

// IsRetryable reports lock contention and duplicate-key races on the counter row.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, errSequenceMoved) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"deadlock",
		"lock wait timeout",
		"lock request time out",
		"could not obtain lock",
		"could not serialize",
		"database is locked",
		"database table is locked",
		"unique constraint failed",
		"duplicate key",
		"duplicate entry",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
