package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role names stored on users.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
)

// Payment methods accepted at the till.
const (
	PaymentCash     = "cash"
	PaymentTelebirr = "telebirr"
	PaymentCBEBirr  = "cbe_birr"
	PaymentChapa    = "chapa"
	PaymentCard     = "card"
)

// Transaction lifecycle states.
const (
	TxnCompleted = "completed"
	TxnPending   = "pending"
	TxnFailed    = "failed"
	TxnRefunded  = "refunded"
)

// Stock movement types.
const (
	MovementIn         = "in"
	MovementOut        = "out"
	MovementAdjustment = "adjustment"
	MovementReturn     = "return"
)

// Payment log states.
const (
	PayLogPending   = "pending"
	PayLogSuccess   = "success"
	PayLogFailed    = "failed"
	PayLogCancelled = "cancelled"
)

// Stock movement reference kinds. Stored as a plain tag, resolved by a
// lookup on the matching table, never by reflection.
const (
	RefTransaction = "transaction"
)

func IsElectronic(method string) bool {
	switch method {
	case PaymentTelebirr, PaymentCBEBirr, PaymentChapa:
		return true
	}
	return false
}

func ValidPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentTelebirr, PaymentCBEBirr, PaymentChapa, PaymentCard:
		return true
	}
	return false
}

type Shop struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Address   *string   `gorm:"type:text" json:"address,omitempty"`
	Phone     *string   `gorm:"type:varchar(20)" json:"phone,omitempty"`
	Settings  JSONMap   `gorm:"type:jsonb" json:"settings"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ShopID    uint      `gorm:"not null;index" json:"shop_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	Role      string    `gorm:"type:varchar(16);not null;default:'cashier'" json:"role"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Shop *Shop `gorm:"foreignKey:ShopID" json:"shop,omitempty"`
}

type Category struct {
	ID        uint      `gorm:"primaryKey;autoIncrement;index:idx_categories_shop_name,unique,priority:2" json:"id"`
	ShopID    uint      `gorm:"not null;index:idx_categories_shop_name,unique,priority:1" json:"shop_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Product struct {
	ID            uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	ShopID        uint            `gorm:"not null;index:idx_products_shop_barcode,unique,priority:1;index:idx_products_shop_category,priority:1" json:"shop_id"`
	CategoryID    *uint           `gorm:"index:idx_products_shop_category,priority:2" json:"category_id,omitempty"`
	Barcode       *string         `gorm:"type:varchar(64);index:idx_products_shop_barcode,unique,priority:2" json:"barcode,omitempty"`
	Name          string          `gorm:"type:varchar(255);not null" json:"name"`
	Description   *string         `gorm:"type:text" json:"description,omitempty"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	CostPrice     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"cost_price"`
	StockQuantity int             `gorm:"not null;default:0" json:"stock_quantity"`
	MinStock      int             `gorm:"not null;default:0" json:"min_stock"`
	IsActive      bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

type Transaction struct {
	ID                uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	ShopID            uint            `gorm:"not null;index:idx_transactions_shop_created,priority:1" json:"shop_id"`
	UserID            uint            `gorm:"not null" json:"user_id"`
	TransactionNumber string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"transaction_number"`
	TotalAmount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	TaxAmount         decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"tax_amount"`
	DiscountAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"discount_amount"`
	PaidAmount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"paid_amount"`
	ChangeAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"change_amount"`
	PaymentMethod     string          `gorm:"type:varchar(16);not null" json:"payment_method"`
	PaymentReference  *string         `gorm:"type:varchar(128)" json:"payment_reference,omitempty"`
	Status            string          `gorm:"type:varchar(16);not null;default:'completed'" json:"status"`
	IsOnline          bool            `gorm:"not null;default:false" json:"is_online"`
	CustomerPhone     *string         `gorm:"type:varchar(20)" json:"customer_phone,omitempty"`
	CustomerEmail     *string         `gorm:"type:varchar(255)" json:"customer_email,omitempty"`
	Notes             *string         `gorm:"type:text" json:"notes,omitempty"`
	SyncedAt          *time.Time      `json:"synced_at,omitempty"`
	CreatedAt         time.Time       `gorm:"index:idx_transactions_shop_created,priority:2" json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`

	Items       []TransactionItem `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	PaymentLogs []PaymentLog      `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE" json:"payment_logs,omitempty"`
	User        *User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

type TransactionItem struct {
	ID            uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID uint            `gorm:"not null;index" json:"transaction_id"`
	ProductID     uint            `gorm:"not null" json:"product_id"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	TotalPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	CreatedAt     time.Time       `json:"created_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

type StockMovement struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID     uint      `gorm:"not null;index:idx_movements_product_created,priority:1" json:"product_id"`
	UserID        uint      `gorm:"not null" json:"user_id"`
	Type          string    `gorm:"type:varchar(16);not null" json:"type"`
	Quantity      int       `gorm:"not null" json:"quantity"`
	PreviousStock int       `gorm:"not null" json:"previous_stock"`
	NewStock      int       `gorm:"not null" json:"new_stock"`
	Reason        *string   `gorm:"type:varchar(500)" json:"reason,omitempty"`
	ReferenceType *string   `gorm:"type:varchar(32)" json:"reference_type,omitempty"`
	ReferenceID   *uint     `json:"reference_id,omitempty"`
	CreatedAt     time.Time `gorm:"index:idx_movements_product_created,priority:2" json:"created_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

type PaymentLog struct {
	ID              uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID   uint            `gorm:"not null;index:idx_paylogs_txn_gateway_ref,unique,priority:1" json:"transaction_id"`
	PaymentGateway  string          `gorm:"type:varchar(16);not null;index:idx_paylogs_gateway_status,priority:1;index:idx_paylogs_txn_gateway_ref,unique,priority:2" json:"payment_gateway"`
	ReferenceNumber string          `gorm:"type:varchar(128);not null;index:idx_paylogs_txn_gateway_ref,unique,priority:3" json:"reference_number"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status          string          `gorm:"type:varchar(16);not null;default:'pending';index:idx_paylogs_gateway_status,priority:2" json:"status"`
	RequestData     JSONMap         `gorm:"type:jsonb" json:"request_data,omitempty"`
	ResponseData    JSONMap         `gorm:"type:jsonb" json:"response_data,omitempty"`
	ErrorMessage    *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
