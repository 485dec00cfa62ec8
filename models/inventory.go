package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	InventoryTable       = "rr_inventories"
	InventoryRentalTable = "rr_inventory_rentals"
)

// InventoryItem：0 <= RentedQuantity <= InitialQuantity
type InventoryItem struct {
	ID              string              `gorm:"type:uuid;primaryKey" json:"id"`
	ItemCode        string              `gorm:"size:120;index" json:"itemCode"`
	Name            string              `gorm:"size:200;not null" json:"name"`
	Location        string              `gorm:"size:200" json:"location"`
	InitialQuantity int                 `gorm:"not null;default:0;check:initial_quantity >= 0" json:"initialQuantity"`
	RentedQuantity  int                 `gorm:"not null;default:0;check:rented_quantity >= 0 AND rented_quantity <= initial_quantity" json:"rentedQuantity"`
	Condition       string              `gorm:"size:255" json:"condition"`
	Category        string              `gorm:"size:120;index" json:"category"`
	Supplier        string              `gorm:"size:200" json:"supplier"`
	PurchasePrice   decimal.NullDecimal `gorm:"type:numeric(14,2)" json:"purchasePrice"`
	PurchaseDate    *time.Time          `json:"purchaseDate,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt      `gorm:"index" json:"deletedAt,omitempty"`
}

// Available 当前可借数量
func (it *InventoryItem) Available() int { return it.InitialQuantity - it.RentedQuantity }

// Rentable：initial > 0 且还有余量
func (it *InventoryItem) Rentable() bool {
	return it.InitialQuantity > 0 && it.InitialQuantity > it.RentedQuantity
}

type InventoryRental struct {
	ID          string     `gorm:"type:uuid;primaryKey" json:"id"`
	InventoryID string     `gorm:"type:uuid;index;not null" json:"inventoryId"`
	UserID      string     `gorm:"type:uuid;index;not null" json:"userId"`
	Quantity    int        `gorm:"not null;check:quantity > 0" json:"quantity"`
	StartTime   time.Time  `gorm:"index;not null" json:"startTime"`
	EndTime     *time.Time `gorm:"index" json:"endTime,omitempty"`
	Condition   string     `gorm:"size:255" json:"condition,omitempty"`
	Notes       string     `gorm:"size:1000" json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	Inventory *InventoryItem `gorm:"foreignKey:InventoryID" json:"inventory,omitempty"`
	User      *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (InventoryItem) TableName() string   { return InventoryTable }
func (InventoryRental) TableName() string { return InventoryRentalTable }

func (it *InventoryItem) BeforeCreate(*gorm.DB) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	return nil
}

func (r *InventoryRental) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
