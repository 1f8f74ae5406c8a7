package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SalesInvoice struct {
	ID                 int                  `gorm:"primary_key" json:"id"`
	BusinessId         string               `gorm:"uniqueIndex:idx_invoice_number,priority:1;not null" json:"business_id"`
	CustomerName       string               `gorm:"size:255" json:"customer_name"`
	InvoiceNumber      string               `gorm:"size:255;uniqueIndex:idx_invoice_number,priority:2;not null" json:"invoice_number" binding:"required"`
	InvoiceDate        time.Time            `gorm:"index;not null" json:"invoice_date" binding:"required"`
	WarehouseId        int                  `gorm:"not null" json:"warehouse_id" binding:"required"`
	CurrentStatus      SalesInvoiceStatus   `gorm:"type:enum('Draft','Confirmed','Void');not null;default:Confirmed" json:"current_status"`
	Details            []SalesInvoiceDetail `gorm:"foreignKey:SalesInvoiceId" json:"details"`
	InvoiceTotalAmount decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"invoice_total_amount"`
	CreatedAt          time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type SalesInvoiceDetail struct {
	ID             int             `gorm:"primary_key" json:"id"`
	SalesInvoiceId int             `gorm:"index;not null" json:"sales_invoice_id"`
	ProductId      int             `gorm:"index;not null" json:"product_id"`
	Name           string          `gorm:"size:255" json:"name"`
	DetailQty      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"detail_qty"`
	DetailUnitRate decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_unit_rate"`
	// Cogs is derived from this line's lot consumptions; only the FIFO
	// engine and the recalculation orchestrator write it.
	Cogs      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cogs"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSalesInvoice struct {
	CustomerName  string                  `json:"customer_name"`
	InvoiceNumber string                  `json:"invoice_number" binding:"required"`
	InvoiceDate   time.Time               `json:"invoice_date" binding:"required"`
	WarehouseId   int                     `json:"warehouse_id" binding:"required"`
	Details       []NewSalesInvoiceDetail `json:"details" binding:"required,min=1"`
}

type NewSalesInvoiceDetail struct {
	ProductId      int             `json:"product_id" validate:"required,gt=0"`
	Name           string          `json:"name"`
	DetailQty      decimal.Decimal `json:"detail_qty" validate:"required"`
	DetailUnitRate decimal.Decimal `json:"detail_unit_rate"`
}
