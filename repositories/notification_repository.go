package repositories

import (
	"materials-erp/apperr"
	"materials-erp/models"
	"materials-erp/types"
	"time"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db}
}

func (r *NotificationRepository) Create(notes []models.Notification) error {
	if len(notes) == 0 {
		return nil
	}
	return r.db.Create(&notes).Error
}

// ForRecipient lists a user's notifications, newest first.
func (r *NotificationRepository) ForRecipient(userID uint, unreadOnly bool) ([]models.Notification, error) {
	var notes []models.Notification
	q := r.db.Where("recipient_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	err := q.Order("created_at DESC, id DESC").Find(&notes).Error
	return notes, err
}

// MarkRead acknowledges one notification of userID. Acknowledging twice is a no-op.
func (r *NotificationRepository) MarkRead(userID uint, id types.SnowflakeID) (*models.Notification, error) {
	now := time.Now()
	err := r.db.Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ? AND is_read = ?", id, userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now, "updated_at": now}).Error
	if err != nil {
		return nil, err
	}

	var note models.Notification
	if err := r.db.Where("id = ? AND recipient_id = ?", id, userID).First(&note).Error; err != nil {
		return nil, apperr.FromDB(err, "notification")
	}
	return &note, nil
}

func (r *NotificationRepository) UnreadCount(userID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}
