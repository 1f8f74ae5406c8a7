package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditNote records a customer return; each detail puts stock back as a
// RETURN lot valued at the detail's unit cost.
type CreditNote struct {
	ID               int                `gorm:"primary_key" json:"id"`
	BusinessId       string             `gorm:"uniqueIndex:idx_credit_note_number,priority:1;not null" json:"business_id"`
	CustomerName     string             `gorm:"size:255" json:"customer_name"`
	CreditNoteNumber string             `gorm:"size:255;uniqueIndex:idx_credit_note_number,priority:2;not null" json:"credit_note_number" binding:"required"`
	CreditNoteDate   time.Time          `gorm:"index;not null" json:"credit_note_date" binding:"required"`
	WarehouseId      int                `gorm:"not null" json:"warehouse_id" binding:"required"`
	Details          []CreditNoteDetail `gorm:"foreignKey:CreditNoteId" json:"details"`
	CreatedAt        time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type CreditNoteDetail struct {
	ID             int             `gorm:"primary_key" json:"id"`
	CreditNoteId   int             `gorm:"index;not null" json:"credit_note_id"`
	ProductId      int             `gorm:"index;not null" json:"product_id"`
	Name           string          `gorm:"size:255" json:"name"`
	DetailQty      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"detail_qty"`
	DetailUnitCost decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"detail_unit_cost"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewCreditNote struct {
	CustomerName     string                `json:"customer_name"`
	CreditNoteNumber string                `json:"credit_note_number" binding:"required"`
	CreditNoteDate   time.Time             `json:"credit_note_date" binding:"required"`
	WarehouseId      int                   `json:"warehouse_id" binding:"required"`
	Details          []NewCreditNoteDetail `json:"details" binding:"required,min=1"`
}

type NewCreditNoteDetail struct {
	ProductId      int             `json:"product_id" validate:"required,gt=0"`
	Name           string          `json:"name"`
	DetailQty      decimal.Decimal `json:"detail_qty" validate:"required"`
	DetailUnitCost decimal.Decimal `json:"detail_unit_cost" validate:"required"`
}
