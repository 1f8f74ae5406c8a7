package workflow

import (
	"sort"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/costing_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MemoryRepository keeps lots, consumptions and document lines in
// maps. It backs the engine tests and mirrors the query semantics of the
// gorm repository, including the lot_date/sequence/id consumption order.
type MemoryRepository struct {
	mu sync.Mutex

	nextLotId         int
	nextConsumptionId int

	lots           map[int]*models.StockLot
	consumptions   map[int]*models.StockLotConsumption
	lines          map[int]*memoryLine
	purchasePrices map[int]decimal.Decimal
	runs           []*models.RecalculationRun
}

type memoryLine struct {
	line ConsumingLine
	cogs decimal.Decimal
	void bool
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextLotId:         1,
		nextConsumptionId: 1,
		lots:              make(map[int]*models.StockLot),
		consumptions:      make(map[int]*models.StockLotConsumption),
		lines:             make(map[int]*memoryLine),
		purchasePrices:    make(map[int]decimal.Decimal),
	}
}

// SetProductPurchasePrice seeds the cached last-known cost for a product.
func (r *MemoryRepository) SetProductPurchasePrice(productId int, price decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purchasePrices[productId] = price
}

func (r *MemoryRepository) ProductPurchasePrice(businessId string, productId int) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = businessId
	if price, ok := r.purchasePrices[productId]; ok {
		return price, nil
	}
	return decimal.Zero, nil
}

// AddLine registers a document line so replay queries can find it.
func (r *MemoryRepository) AddLine(line ConsumingLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[line.Ref.DetailId] = &memoryLine{line: line, cogs: decimal.Zero}
}

func (r *MemoryRepository) VoidLine(detailId int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.lines[detailId]; ok {
		l.void = true
	}
}

func (r *MemoryRepository) LineCogs(detailId int) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.lines[detailId]; ok {
		return l.cogs
	}
	return decimal.Zero
}

func (r *MemoryRepository) Runs() []*models.RecalculationRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.RecalculationRun(nil), r.runs...)
}

func (r *MemoryRepository) OpenLots(businessId string, productId int, warehouseId int) ([]*models.StockLot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	open := make([]*models.StockLot, 0)
	for _, lot := range r.lots {
		if lot.BusinessId != businessId || lot.ProductId != productId {
			continue
		}
		if warehouseId > 0 && lot.WarehouseId != warehouseId {
			continue
		}
		if !lot.RemainingQty.GreaterThan(decimal.Zero) {
			continue
		}
		open = append(open, lot)
	}
	sort.Slice(open, func(i, j int) bool {
		if !open[i].LotDate.Equal(open[j].LotDate) {
			return open[i].LotDate.Before(open[j].LotDate)
		}
		if open[i].Sequence != open[j].Sequence {
			return open[i].Sequence < open[j].Sequence
		}
		return open[i].ID < open[j].ID
	})
	return open, nil
}

func (r *MemoryRepository) LotById(id int) (*models.StockLot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lot, ok := r.lots[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return lot, nil
}

func (r *MemoryRepository) CreateLot(lot *models.StockLot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lot.ID = r.nextLotId
	r.nextLotId++
	r.lots[lot.ID] = lot
	return nil
}

func (r *MemoryRepository) SaveLot(lot *models.StockLot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lots[lot.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.lots[lot.ID] = lot
	return nil
}

func (r *MemoryRepository) DeleteLot(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lots, id)
	return nil
}

func (r *MemoryRepository) LotsBySource(businessId string, refType models.SourceReferenceType, refId int) ([]*models.StockLot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lots := make([]*models.StockLot, 0)
	for _, lot := range r.lots {
		if lot.BusinessId == businessId && lot.SourceRefType == refType && lot.SourceRefId == refId {
			lots = append(lots, lot)
		}
	}
	sort.Slice(lots, func(i, j int) bool { return lots[i].ID < lots[j].ID })
	return lots, nil
}

func (r *MemoryRepository) NextLotSequence(businessId string, productId int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, lot := range r.lots {
		if lot.BusinessId == businessId && lot.ProductId == productId && lot.Sequence > max {
			max = lot.Sequence
		}
	}
	return max + 1, nil
}

func (r *MemoryRepository) CreateConsumption(c *models.StockLotConsumption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.nextConsumptionId
	r.nextConsumptionId++
	r.consumptions[c.ID] = c
	return nil
}

func (r *MemoryRepository) DeleteConsumption(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.consumptions, id)
	return nil
}

func (r *MemoryRepository) ConsumptionsByLine(businessId string, line models.LineRef) ([]*models.StockLotConsumption, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]*models.StockLotConsumption, 0)
	for _, c := range r.consumptions {
		if c.BusinessId == businessId && c.ConsumingRefType == line.Type && c.ConsumingLineId == line.DetailId {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

func (r *MemoryRepository) HasConsumptionAfter(businessId string, productId int, date time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.consumptions {
		if c.BusinessId != businessId || c.ProductId != productId {
			continue
		}
		line, ok := r.lines[c.ConsumingLineId]
		if !ok || line.void {
			continue
		}
		if line.line.DocDate.After(date) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) EarliestConsumptionDateForLots(businessId string, lotIds []int) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make(map[int]struct{}, len(lotIds))
	for _, id := range lotIds {
		ids[id] = struct{}{}
	}
	var earliest *time.Time
	for _, c := range r.consumptions {
		if c.BusinessId != businessId {
			continue
		}
		if _, ok := ids[c.StockLotId]; !ok {
			continue
		}
		line, ok := r.lines[c.ConsumingLineId]
		if !ok || line.void {
			continue
		}
		d := line.line.DocDate
		if earliest == nil || d.Before(*earliest) {
			earliest = &d
		}
	}
	return earliest, nil
}

func (r *MemoryRepository) ConsumingLinesFromDate(businessId string, productId int, from time.Time) ([]*ConsumingLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make([]*ConsumingLine, 0)
	for _, l := range r.lines {
		if l.void {
			continue
		}
		if l.line.BusinessId != businessId || l.line.ProductId != productId {
			continue
		}
		if l.line.DocDate.Before(from) {
			continue
		}
		line := l.line
		lines = append(lines, &line)
	}
	sort.Slice(lines, func(i, j int) bool {
		if !lines[i].DocDate.Equal(lines[j].DocDate) {
			return lines[i].DocDate.Before(lines[j].DocDate)
		}
		return lines[i].Ref.DetailId < lines[j].Ref.DetailId
	})
	return lines, nil
}

func (r *MemoryRepository) UpdateLineCogs(businessId string, line models.LineRef, cogs decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lines[line.DetailId]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	l.cogs = cogs
	return nil
}

func (r *MemoryRepository) CreateRecalculationRun(run *models.RecalculationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}
