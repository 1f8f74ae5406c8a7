package workflow_test

import (
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/costing_backend/models"
	"bitbucket.org/mmdatafocus/costing_backend/workflow"
	"github.com/shopspring/decimal"
)

const testBusinessId = "b7f1de92-31b2-4ac7-8f5e-000000000001"

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func qty(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func addLot(t *testing.T, repo workflow.CostingRepository, productId int, warehouseId int, lotDate time.Time, unitCost int64, quantity int64) *models.StockLot {
	t.Helper()
	sequence, err := repo.NextLotSequence(testBusinessId, productId)
	if err != nil {
		t.Fatalf("NextLotSequence: %v", err)
	}
	lot := &models.StockLot{
		BusinessId:    testBusinessId,
		WarehouseId:   warehouseId,
		ProductId:     productId,
		SourceType:    models.StockLotSourcePurchase,
		SourceRefType: models.SourceReferenceTypeBill,
		SourceRefId:   sequence,
		LotDate:       lotDate,
		Sequence:      sequence,
		UnitCost:      decimal.NewFromInt(unitCost),
		InitialQty:    qty(quantity),
		RemainingQty:  qty(quantity),
	}
	if err := repo.CreateLot(lot); err != nil {
		t.Fatalf("CreateLot: %v", err)
	}
	return lot
}

func TestConsumeStockDrawsOldestLotFirst(t *testing.T) {
	repo := workflow.NewMemoryRepository()
	first := addLot(t, repo, 1, 1, date(2025, time.January, 1), 10, 5)
	second := addLot(t, repo, 1, 1, date(2025, time.January, 3), 12, 5)

	result, err := workflow.ConsumeStock(repo, nil, workflow.ConsumeInput{
		BusinessId: testBusinessId,
		ProductId:  1,
		Line:       models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: 1},
		Qty:        qty(7),
		AsOfDate:   date(2025, time.January, 5),
	})
	if err != nil {
		t.Fatalf("ConsumeStock: %v", err)
	}

	// 5 units at 10, then 2 units at 12.
	if want := decimal.NewFromInt(74); !result.TotalCost.Equal(want) {
		t.Fatalf("total cost = %s, want %s", result.TotalCost, want)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}

	gotFirst, _ := repo.LotById(first.ID)
	if !gotFirst.RemainingQty.IsZero() {
		t.Fatalf("oldest lot remaining = %s, want 0", gotFirst.RemainingQty)
	}
	gotSecond, _ := repo.LotById(second.ID)
	if want := qty(3); !gotSecond.RemainingQty.Equal(want) {
		t.Fatalf("newer lot remaining = %s, want %s", gotSecond.RemainingQty, want)
	}

	consumptions, err := repo.ConsumptionsByLine(testBusinessId, models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: 1})
	if err != nil {
		t.Fatalf("ConsumptionsByLine: %v", err)
	}
	if len(consumptions) != 2 {
		t.Fatalf("consumption records = %d, want 2", len(consumptions))
	}
	if !consumptions[0].UnitCost.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("first consumption unit cost = %s, want 10", consumptions[0].UnitCost)
	}
}

func TestConsumeStockTieBreaksOnSequence(t *testing.T) {
	repo := workflow.NewMemoryRepository()
	sameDay := date(2025, time.March, 1)
	first := addLot(t, repo, 1, 1, sameDay, 10, 4)
	second := addLot(t, repo, 1, 1, sameDay, 15, 4)
	if second.Sequence <= first.Sequence {
		t.Fatalf("sequence not monotonic: %d then %d", first.Sequence, second.Sequence)
	}

	result, err := workflow.ConsumeStock(repo, nil, workflow.ConsumeInput{
		BusinessId: testBusinessId,
		ProductId:  1,
		Line:       models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: 1},
		Qty:        qty(4),
		AsOfDate:   sameDay,
	})
	if err != nil {
		t.Fatalf("ConsumeStock: %v", err)
	}

	// Same lot date: the earlier sequence wins.
	if want := decimal.NewFromInt(40); !result.TotalCost.Equal(want) {
		t.Fatalf("total cost = %s, want %s", result.TotalCost, want)
	}
	gotSecond, _ := repo.LotById(second.ID)
	if !gotSecond.RemainingQty.Equal(qty(4)) {
		t.Fatalf("later-sequence lot was touched: remaining = %s", gotSecond.RemainingQty)
	}
}

func TestConsumeStockShortfallWarnsOnce(t *testing.T) {
	repo := workflow.NewMemoryRepository()
	addLot(t, repo, 1, 1, date(2025, time.January, 1), 10, 6)
	// A partial allocation never touches the cached purchase price.
	repo.SetProductPurchasePrice(1, decimal.NewFromInt(99))

	result, err := workflow.ConsumeStock(repo, nil, workflow.ConsumeInput{
		BusinessId: testBusinessId,
		ProductId:  1,
		Line:       models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: 1},
		Qty:        qty(10),
		AsOfDate:   date(2025, time.January, 2),
	})
	if err != nil {
		t.Fatalf("ConsumeStock: %v", err)
	}

	// The sale still completes: all 6 available units are costed.
	if want := decimal.NewFromInt(60); !result.TotalCost.Equal(want) {
		t.Fatalf("total cost = %s, want %s", result.TotalCost, want)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("warnings = %d, want exactly 1: %v", len(result.Warnings), result.Warnings)
	}
	if !strings.Contains(result.Warnings[0], "qty_missing=4") {
		t.Fatalf("warning does not name the missing quantity: %s", result.Warnings[0])
	}
}

func TestConsumeStockFallsBackToCachedCostWhenNoLots(t *testing.T) {
	repo := workflow.NewMemoryRepository()
	repo.SetProductPurchasePrice(1, decimal.NewFromInt(9))

	result, err := workflow.ConsumeStock(repo, nil, workflow.ConsumeInput{
		BusinessId: testBusinessId,
		ProductId:  1,
		Line:       models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: 1},
		Qty:        qty(5),
		AsOfDate:   date(2025, time.January, 2),
	})
	if err != nil {
		t.Fatalf("ConsumeStock: %v", err)
	}

	// Nothing to draw from: the whole line is costed at the cached price.
	if want := decimal.NewFromInt(45); !result.TotalCost.Equal(want) {
		t.Fatalf("total cost = %s, want %s", result.TotalCost, want)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "qty_missing=5") {
		t.Fatalf("warnings = %v, want one naming 5 missing units", result.Warnings)
	}
	consumptions, err := repo.ConsumptionsByLine(testBusinessId, models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: 1})
	if err != nil {
		t.Fatalf("ConsumptionsByLine: %v", err)
	}
	if len(consumptions) != 0 {
		t.Fatalf("consumption records = %d, want 0", len(consumptions))
	}
}

func TestConsumeStockRejectsNonPositiveQty(t *testing.T) {
	repo := workflow.NewMemoryRepository()
	addLot(t, repo, 1, 1, date(2025, time.January, 1), 10, 6)

	for _, badQty := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-3)} {
		_, err := workflow.ConsumeStock(repo, nil, workflow.ConsumeInput{
			BusinessId: testBusinessId,
			ProductId:  1,
			Line:       models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: 1},
			Qty:        badQty,
			AsOfDate:   date(2025, time.January, 2),
		})
		if err == nil {
			t.Fatalf("qty %s accepted, want error", badQty)
		}
	}
}

func TestConsumeStockScopesToWarehouse(t *testing.T) {
	repo := workflow.NewMemoryRepository()
	addLot(t, repo, 1, 1, date(2025, time.January, 1), 10, 5)
	other := addLot(t, repo, 1, 2, date(2025, time.January, 1), 8, 5)

	result, err := workflow.ConsumeStock(repo, nil, workflow.ConsumeInput{
		BusinessId:  testBusinessId,
		ProductId:   1,
		WarehouseId: 1,
		Line:        models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: 1},
		Qty:         qty(5),
		AsOfDate:    date(2025, time.January, 2),
	})
	if err != nil {
		t.Fatalf("ConsumeStock: %v", err)
	}
	if want := decimal.NewFromInt(50); !result.TotalCost.Equal(want) {
		t.Fatalf("total cost = %s, want %s", result.TotalCost, want)
	}
	gotOther, _ := repo.LotById(other.ID)
	if !gotOther.RemainingQty.Equal(qty(5)) {
		t.Fatalf("other warehouse lot was touched: remaining = %s", gotOther.RemainingQty)
	}
}

func TestConsumeStockConservesQuantity(t *testing.T) {
	repo := workflow.NewMemoryRepository()
	lots := []*models.StockLot{
		addLot(t, repo, 1, 1, date(2025, time.January, 1), 10, 7),
		addLot(t, repo, 1, 1, date(2025, time.January, 2), 11, 3),
		addLot(t, repo, 1, 1, date(2025, time.January, 4), 9, 5),
	}

	_, err := workflow.ConsumeStock(repo, nil, workflow.ConsumeInput{
		BusinessId: testBusinessId,
		ProductId:  1,
		Line:       models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: 1},
		Qty:        qty(9),
		AsOfDate:   date(2025, time.January, 5),
	})
	if err != nil {
		t.Fatalf("ConsumeStock: %v", err)
	}

	consumed := decimal.Zero
	consumptions, _ := repo.ConsumptionsByLine(testBusinessId, models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: 1})
	for _, c := range consumptions {
		consumed = consumed.Add(c.Qty)
	}
	remaining := decimal.Zero
	initial := decimal.Zero
	for _, lot := range lots {
		got, _ := repo.LotById(lot.ID)
		remaining = remaining.Add(got.RemainingQty)
		initial = initial.Add(got.InitialQty)
	}
	if !initial.Equal(remaining.Add(consumed)) {
		t.Fatalf("conservation broken: initial=%s remaining=%s consumed=%s", initial, remaining, consumed)
	}
}
