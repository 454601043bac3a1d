package database

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"sukpos/internal/database/models"
)

// Seed loads a demo shop with users and a small catalog. Intended for
// development databases only; it is a no-op when a shop already exists.
func Seed(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Shop{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	address := "Bole Road, Addis Ababa"
	phone := "+251911000000"
	shop := models.Shop{
		Name:    "Mercato Mini Mart",
		Address: &address,
		Phone:   &phone,
		Settings: models.JSONMap{
			"currency": "ETB",
		},
		IsActive: true,
	}
	if err := db.Create(&shop).Error; err != nil {
		return err
	}

	users := []struct {
		name, email, password, role string
	}{
		{"Admin", "admin@sukpos.local", "password", models.RoleAdmin},
		{"Meseret", "manager@sukpos.local", "password", models.RoleManager},
		{"Abel", "cashier@sukpos.local", "password", models.RoleCashier},
	}
	for _, u := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		user := models.User{
			ShopID:   shop.ID,
			Name:     u.name,
			Email:    u.email,
			Password: string(hash),
			Role:     u.role,
			IsActive: true,
		}
		if err := db.Create(&user).Error; err != nil {
			return err
		}
	}

	category := models.Category{ShopID: shop.ID, Name: "Beverages"}
	if err := db.Create(&category).Error; err != nil {
		return err
	}

	products := []struct {
		name, barcode string
		price         string
		stock         int
	}{
		{"Ambo Water 1L", "6186000110011", "25.00", 120},
		{"Bedele Beer", "6186000110028", "65.00", 48},
		{"Kaldi's Coffee 250g", "6186000110035", "350.00", 30},
	}
	for i, p := range products {
		price, err := decimal.NewFromString(p.price)
		if err != nil {
			return fmt.Errorf("seed product %d: %w", i, err)
		}
		product := models.Product{
			ShopID:        shop.ID,
			CategoryID:    &category.ID,
			Name:          p.name,
			Barcode:       &products[i].barcode,
			Price:         price,
			StockQuantity: p.stock,
			MinStock:      5,
			IsActive:      true,
		}
		if err := db.Create(&product).Error; err != nil {
			return err
		}
	}

	return nil
}
