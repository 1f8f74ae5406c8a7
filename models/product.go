package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID         int    `gorm:"primary_key" json:"id"`
	BusinessId string `gorm:"index;not null" json:"business_id"`
	Name       string `gorm:"size:100;not null" json:"name" binding:"required"`
	Sku        string `gorm:"size:100;index" json:"sku"`
	Barcode    string `gorm:"size:100" json:"barcode"`
	SalesPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sales_price"`
	// PurchasePrice is a denormalized last-known-cost cache. It is refreshed
	// on every bill posting and read only when a consuming line ends up with
	// zero lot allocations; lots are the source of truth for costing.
	PurchasePrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_price"`
	SalesAccountId     int             `gorm:"index" json:"sales_account_id"`
	PurchaseAccountId  int             `gorm:"index" json:"purchase_account_id"`
	InventoryAccountId int             `gorm:"index" json:"inventory_account_id"`
	TrackInventory     *bool           `gorm:"not null;default:true" json:"track_inventory"`
	IsActive           *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name               string            `json:"name" binding:"required"`
	Sku                string            `json:"sku"`
	Barcode            string            `json:"barcode"`
	SalesPrice         decimal.Decimal   `json:"sales_price"`
	PurchasePrice      decimal.Decimal   `json:"purchase_price"`
	SalesAccountId     int               `json:"sales_account_id"`
	PurchaseAccountId  int               `json:"purchase_account_id"`
	InventoryAccountId int               `json:"inventory_account_id"`
	TrackInventory     *bool             `json:"track_inventory"`
	OpeningStocks      []NewOpeningStock `json:"opening_stocks"`
}

type NewOpeningStock struct {
	WarehouseId int             `json:"warehouse_id" validate:"required,gt=0"`
	Date        time.Time       `json:"date"`
	Qty         decimal.Decimal `json:"qty" validate:"required"`
	UnitValue   decimal.Decimal `json:"unit_value" validate:"required"`
}
