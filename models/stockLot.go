package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockLot is one batch of inventory received at a single cost on a single
// date. RemainingQty only decreases under consumption; restoration during a
// reversal is the one path allowed to increase it again.
type StockLot struct {
	ID          int                `gorm:"primary_key" json:"id"`
	BusinessId  string             `gorm:"index:idx_lot_scope,priority:1;not null" json:"business_id"`
	WarehouseId int                `gorm:"index:idx_lot_scope,priority:2;not null" json:"warehouse_id"`
	ProductId   int                `gorm:"index:idx_lot_scope,priority:3;not null" json:"product_id"`
	SourceType  StockLotSourceType `gorm:"type:enum('PURCHASE','OPENING_STOCK','RETURN');not null" json:"source_type"`
	SourceRefType SourceReferenceType `gorm:"type:enum('BL','OS','CN');not null" json:"source_ref_type"`
	SourceRefId   int                 `gorm:"index" json:"source_ref_id"`
	LotDate       time.Time           `gorm:"index:idx_lot_scope,priority:4;not null" json:"lot_date"`
	// Sequence is an explicit monotonic tie-break for lots sharing a
	// lot_date, so FIFO order never depends on storage-engine insertion
	// behavior.
	Sequence      int             `gorm:"index;not null" json:"sequence"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_cost"`
	InitialQty    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"initial_qty"`
	RemainingQty  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"remaining_qty"`
	CorrelationId string          `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeSave enforces 0 <= remaining_qty <= initial_qty. FIFO queries rely
// on remaining_qty never drifting outside the lot bounds.
func (lot *StockLot) BeforeSave(tx *gorm.DB) error {
	_ = tx // signature required by gorm; tx may be nil in tests
	if lot == nil {
		return nil
	}
	if lot.RemainingQty.IsNegative() {
		return fmt.Errorf("stock lot %d remaining qty below zero: %s", lot.ID, lot.RemainingQty)
	}
	if lot.RemainingQty.GreaterThan(lot.InitialQty) {
		return fmt.Errorf("stock lot %d remaining qty %s exceeds initial qty %s",
			lot.ID, lot.RemainingQty, lot.InitialQty)
	}
	return nil
}

// NextLotSequence returns the next tie-break sequence for a product.
// Callers hold the per-item posting lock, so MAX+1 is race-free here.
func NextLotSequence(tx *gorm.DB, businessId string, productId int) (int, error) {
	var next int
	err := tx.Raw(`
		SELECT COALESCE(MAX(sequence), 0) + 1
		FROM stock_lots
		WHERE business_id = ? AND product_id = ?
	`, businessId, productId).Scan(&next).Error
	return next, err
}
