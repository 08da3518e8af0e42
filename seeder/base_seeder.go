package seed

import (
	"errors"
	"log"
	"materials-erp/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RunSeeders loads the users and components a fresh installation needs to
// walk a request through every stage. Existing rows are left untouched.
func RunSeeders(db *gorm.DB, defaultPassword string) error {
	if err := SeedUsers(db, defaultPassword); err != nil {
		return err
	}
	return SeedComponents(db)
}

func SeedUsers(db *gorm.DB, defaultPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	users := []models.User{
		{Username: "admin", Name: "Administrator", Role: "admin"},
		{Username: "ceo", Name: "Chief Executive", Role: "ceo"},
		{Username: "inventory.head", Name: "Inventory Head", Role: "inventory_head"},
		{Username: "inventory.staff", Name: "Inventory Staff", Role: "inventory_employee"},
		{Username: "purchase.head", Name: "Purchase Head", Role: "purchase_head"},
		{Username: "quality.head", Name: "Quality Head", Role: "quality_head"},
		{Username: "quality.staff", Name: "Quality Staff", Role: "quality_employee"},
		{Username: "production.head", Name: "Production Head", Role: "production_head"},
		{Username: "production.staff", Name: "Production Staff", Role: "production_employee"},
	}

	for _, u := range users {
		var existing models.User
		err := db.Where("username = ?", u.Username).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		u.Password = string(hash)
		u.IsActive = true
		if err := db.Create(&u).Error; err != nil {
			return err
		}
		log.Printf("Seeded user %s (%s)", u.Username, u.Role)
	}
	return nil
}

func SeedComponents(db *gorm.DB) error {
	components := []models.Component{
		{Code: "BRG-6204", Name: "Bearing 6204 ZZ", Location: "A-01-01", Uom: "PCS"},
		{Code: "BLT-M10", Name: "Hex Bolt M10x40", Location: "A-02-03", Uom: "PCS"},
		{Code: "CBL-2.5", Name: "Cable NYA 2.5mm", Location: "B-01-01", Uom: "M"},
		{Code: "OIL-HYD46", Name: "Hydraulic Oil ISO 46", Location: "C-01-02", Uom: "L"},
	}

	for _, c := range components {
		var existing models.Component
		err := db.Where("code = ?", c.Code).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Create(&c).Error; err != nil {
			return err
		}
	}
	return nil
}
