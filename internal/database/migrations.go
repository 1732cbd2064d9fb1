package database

import (
	"gorm.io/gorm"

	"github.com/schoolgate/schoolgate/internal/models"
	"github.com/schoolgate/schoolgate/pkg/crypto"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Class{},
		&models.Student{},
		&models.Notification{},
	)
}

// SeedData inserts the bootstrap admin account when no admin exists yet.
// The password must be rotated on first login; deployments normally override
// it through the registration flow.
func SeedData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := crypto.HashPassword("ChangeMe123!")
	if err != nil {
		return err
	}

	admin := models.User{
		Name:     "Administrator",
		Email:    "admin@school.local",
		Password: hashed,
		Role:     models.RoleAdmin,
		IsActive: true,
	}
	return db.Create(&admin).Error
}
