package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineRef identifies one consuming line (an invoice or POS line item).
type LineRef struct {
	Type     ConsumingReferenceType `json:"type"`
	DetailId int                    `json:"detail_id"`
}

// StockLotConsumption is a claim by one consuming line on part of one lot.
// UnitCost is copied from the lot at consumption time; an already-recorded
// consumption never changes cost outside an explicit recalculation.
type StockLotConsumption struct {
	ID               int                    `gorm:"primary_key" json:"id"`
	BusinessId       string                 `gorm:"index;not null" json:"business_id"`
	StockLotId       int                    `gorm:"index;not null" json:"stock_lot_id"`
	ProductId        int                    `gorm:"index;not null" json:"product_id"`
	ConsumingRefType ConsumingReferenceType `gorm:"type:enum('IV');index:idx_consumption_line,priority:1;not null" json:"consuming_ref_type"`
	ConsumingLineId  int                    `gorm:"index:idx_consumption_line,priority:2;not null" json:"consuming_line_id"`
	Qty              decimal.Decimal        `gorm:"type:decimal(20,4);not null" json:"qty"`
	UnitCost         decimal.Decimal        `gorm:"type:decimal(20,4);not null" json:"unit_cost"`
	CorrelationId    string                 `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time              `gorm:"autoCreateTime" json:"created_at"`
}

// Cost is the portion of cost of goods sold this claim contributes.
func (c *StockLotConsumption) Cost() decimal.Decimal {
	return c.Qty.Mul(c.UnitCost)
}
