package database

import (
	"gorm.io/gorm"

	"sukpos/internal/database/models"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Shop{},
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.Transaction{},
		&models.TransactionItem{},
		&models.StockMovement{},
		&models.PaymentLog{},
	)
}
