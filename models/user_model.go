package models

import (
	"materials-erp/workflow"

	"gorm.io/gorm"
)

// User is the read-only copy of the identity directory the workflow resolves
// notification recipients from.
type User struct {
	gorm.Model
	Username  string `json:"username" gorm:"size:64;unique"`
	Name      string `json:"name"`
	Email     string `json:"email" gorm:"size:128"`
	Password  string `json:"-"`
	Role      string `json:"role" gorm:"size:64;index"`
	IsActive  bool   `json:"is_active" gorm:"default:true"`
	CreatedBy int
	UpdatedBy int
	DeletedBy int
}

func (u User) ParsedRole() workflow.Role {
	return workflow.ParseRole(u.Role)
}
