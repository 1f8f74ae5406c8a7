package workflow

import (
	"time"

	"bitbucket.org/mmdatafocus/costing_backend/models"
	"github.com/shopspring/decimal"
)

// ConsumingLine is the engine's view of one sale line: enough to replay its
// FIFO allocation without loading the whole document.
type ConsumingLine struct {
	Ref         models.LineRef
	BusinessId  string
	DocId       int
	ProductId   int
	WarehouseId int
	DocDate     time.Time
	Qty         decimal.Decimal
}

// CostingRepository is the persistence surface the costing engine needs.
// The production implementation binds to one open transaction; tests use
// the in-memory implementation.
type CostingRepository interface {
	// Lots. OpenLots returns lots with remaining_qty > 0 ordered oldest
	// first (lot_date, sequence, id); warehouseId 0 means all warehouses.
	OpenLots(businessId string, productId int, warehouseId int) ([]*models.StockLot, error)
	LotById(id int) (*models.StockLot, error)
	CreateLot(lot *models.StockLot) error
	SaveLot(lot *models.StockLot) error
	DeleteLot(id int) error
	LotsBySource(businessId string, refType models.SourceReferenceType, refId int) ([]*models.StockLot, error)
	NextLotSequence(businessId string, productId int) (int, error)

	// Consumption ledger.
	CreateConsumption(c *models.StockLotConsumption) error
	DeleteConsumption(id int) error
	ConsumptionsByLine(businessId string, line models.LineRef) ([]*models.StockLotConsumption, error)
	HasConsumptionAfter(businessId string, productId int, date time.Time) (bool, error)
	EarliestConsumptionDateForLots(businessId string, lotIds []int) (*time.Time, error)

	// Consuming lines, ordered by document date then creation order.
	ConsumingLinesFromDate(businessId string, productId int, from time.Time) ([]*ConsumingLine, error)
	UpdateLineCogs(businessId string, line models.LineRef, cogs decimal.Decimal) error

	// ProductPurchasePrice returns the product's cached last-known cost.
	// The engine reads it only when a line gets no lot allocations at all.
	ProductPurchasePrice(businessId string, productId int) (decimal.Decimal, error)

	// Audit.
	CreateRecalculationRun(run *models.RecalculationRun) error
}
