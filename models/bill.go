package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill is a purchase document; each detail line becomes one stock lot.
type Bill struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"uniqueIndex:idx_bill_number,priority:1;not null" json:"business_id"`
	SupplierName    string          `gorm:"size:255" json:"supplier_name"`
	BillNumber      string          `gorm:"size:255;uniqueIndex:idx_bill_number,priority:2;not null" json:"bill_number" binding:"required"`
	BillDate        time.Time       `gorm:"index;not null" json:"bill_date" binding:"required"`
	WarehouseId     int             `gorm:"not null" json:"warehouse_id" binding:"required"`
	CurrentStatus   BillStatus      `gorm:"type:enum('Draft','Confirmed','Void');not null;default:Confirmed" json:"current_status"`
	Details         []BillDetail    `gorm:"foreignKey:BillId" json:"details"`
	BillTotalAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bill_total_amount"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type BillDetail struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BillId         int             `gorm:"index;not null" json:"bill_id"`
	ProductId      int             `gorm:"index;not null" json:"product_id"`
	Name           string          `gorm:"size:255" json:"name"`
	DetailQty      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"detail_qty"`
	DetailUnitRate decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"detail_unit_rate"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBill struct {
	SupplierName string          `json:"supplier_name"`
	BillNumber   string          `json:"bill_number" binding:"required"`
	BillDate     time.Time       `json:"bill_date" binding:"required"`
	WarehouseId  int             `json:"warehouse_id" binding:"required"`
	Details      []NewBillDetail `json:"details" binding:"required,min=1"`
}

type NewBillDetail struct {
	ProductId      int             `json:"product_id" validate:"required,gt=0"`
	Name           string          `json:"name"`
	DetailQty      decimal.Decimal `json:"detail_qty" validate:"required"`
	DetailUnitRate decimal.Decimal `json:"detail_unit_rate" validate:"required"`
}
