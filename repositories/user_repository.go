package repositories

import (
	"materials-erp/apperr"
	"materials-erp/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(DB *gorm.DB) *UserRepository {
	return &UserRepository{DB: DB}
}

// Create user
func (r *UserRepository) Create(user *models.User) error {
	return apperr.FromDB(r.DB.Create(user).Error, "user")
}

// Get user by ID
func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.DB.First(&user, id).Error; err != nil {
		return nil, apperr.FromDB(err, "user")
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.DB.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, apperr.FromDB(err, "user")
	}
	return &user, nil
}

// Get all users
func (r *UserRepository) GetAll() ([]models.User, error) {
	var users []models.User
	err := r.DB.Order("id").Find(&users).Error
	return users, err
}

// ActiveByRoles returns the active users holding any of roles.
func (r *UserRepository) ActiveByRoles(roles []string) ([]models.User, error) {
	var users []models.User
	if len(roles) == 0 {
		return users, nil
	}
	err := r.DB.Where("role IN ? AND is_active = ?", roles, true).Order("id").Find(&users).Error
	return users, err
}

// ActiveByIDs returns the active users among ids.
func (r *UserRepository) ActiveByIDs(ids []uint) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.DB.Where("id IN ? AND is_active = ?", ids, true).Order("id").Find(&users).Error
	return users, err
}

// Update user
func (r *UserRepository) Update(user *models.User) error {
	return r.DB.Save(user).Error
}

// Delete user
func (r *UserRepository) Delete(id uint) error {
	return r.DB.Delete(&models.User{}, id).Error
}
