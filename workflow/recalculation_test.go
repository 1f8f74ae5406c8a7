package workflow_test

import (
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/costing_backend/models"
	"bitbucket.org/mmdatafocus/costing_backend/workflow"
	"github.com/shopspring/decimal"
)

// The reference scenario: a backdated purchase must repair a shortfall and
// recost later sales without disturbing sales the new lot cannot reach.
//
//	Jan 1: buy 100 @ 10
//	Jan 5: sell 30        -> COGS 300
//	Jan 10: sell 80       -> COGS 700, 10 units short
//	then a bill for Jan 3 arrives: 50 @ 12
//	recalculate from Jan 3 -> Jan 5 still 300, Jan 10 becomes 820, no warnings
func TestBackdatedPurchaseRepairsShortfall(t *testing.T) {
	repo := workflow.NewMemoryRepository()
	addLot(t, repo, 1, 1, date(2025, time.January, 1), 10, 100)

	addRegisteredSale(t, repo, 1, 101, 1, date(2025, time.January, 5), 30)
	if got := repo.LineCogs(1); !got.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("Jan 5 sale cogs = %s, want 300", got)
	}

	line2 := workflow.ConsumingLine{
		Ref:        models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: 2},
		BusinessId: testBusinessId,
		DocId:      102,
		ProductId:  1,
		DocDate:    date(2025, time.January, 10),
		Qty:        qty(80),
	}
	repo.AddLine(line2)
	result, err := workflow.ConsumeStock(repo, nil, workflow.ConsumeInput{
		BusinessId: testBusinessId,
		ProductId:  1,
		Line:       line2.Ref,
		Qty:        line2.Qty,
		AsOfDate:   line2.DocDate,
	})
	if err != nil {
		t.Fatalf("ConsumeStock: %v", err)
	}
	if err := repo.UpdateLineCogs(testBusinessId, line2.Ref, result.TotalCost); err != nil {
		t.Fatalf("UpdateLineCogs: %v", err)
	}
	if !result.TotalCost.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("Jan 10 sale cogs = %s, want 700", result.TotalCost)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "qty_missing=10") {
		t.Fatalf("Jan 10 sale warnings = %v, want one naming 10 missing units", result.Warnings)
	}

	// The late-arriving Jan 3 purchase.
	backdated, err := workflow.IsBackdated(repo, testBusinessId, 1, date(2025, time.January, 3))
	if err != nil {
		t.Fatalf("IsBackdated: %v", err)
	}
	if !backdated {
		t.Fatal("Jan 3 purchase not flagged as backdated")
	}
	addLot(t, repo, 1, 1, date(2025, time.January, 3), 12, 50)

	recalc, err := workflow.RecalculateFromDate(repo, nil, testBusinessId, 1, date(2025, time.January, 3), "backdated-purchase", "")
	if err != nil {
		t.Fatalf("RecalculateFromDate: %v", err)
	}

	if recalc.LinesReplayed != 2 {
		t.Fatalf("lines replayed = %d, want 2", recalc.LinesReplayed)
	}
	if recalc.WarningCount != 0 {
		t.Fatalf("warning count = %d, want 0", recalc.WarningCount)
	}
	// The Jan 5 sale still draws purely from the cheaper Jan 1 lot.
	if got := repo.LineCogs(1); !got.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("Jan 5 sale cogs after recalc = %s, want 300", got)
	}
	// Jan 10: 70 remaining @ 10, then 10 @ 12.
	if got := repo.LineCogs(2); !got.Equal(decimal.NewFromInt(820)) {
		t.Fatalf("Jan 10 sale cogs after recalc = %s, want 820", got)
	}

	runs := repo.Runs()
	if len(runs) != 1 {
		t.Fatalf("recalculation runs recorded = %d, want 1", len(runs))
	}
	if runs[0].Reason != "backdated-purchase" || runs[0].LinesReplayed != 2 || runs[0].WarningCount != 0 {
		t.Fatalf("unexpected audit row: %+v", runs[0])
	}
}

func TestRecalculateFromDateIsIdempotent(t *testing.T) {
	repo := workflow.NewMemoryRepository()
	addLot(t, repo, 1, 1, date(2025, time.January, 1), 10, 40)
	addLot(t, repo, 1, 1, date(2025, time.January, 4), 13, 40)
	addRegisteredSale(t, repo, 1, 101, 1, date(2025, time.January, 5), 50)
	addRegisteredSale(t, repo, 2, 102, 1, date(2025, time.January, 8), 20)

	first, err := workflow.RecalculateFromDate(repo, nil, testBusinessId, 1, date(2025, time.January, 1), "edit", "")
	if err != nil {
		t.Fatalf("first RecalculateFromDate: %v", err)
	}
	cogsA, cogsB := repo.LineCogs(1), repo.LineCogs(2)

	second, err := workflow.RecalculateFromDate(repo, nil, testBusinessId, 1, date(2025, time.January, 1), "edit", "")
	if err != nil {
		t.Fatalf("second RecalculateFromDate: %v", err)
	}

	if first.LinesReplayed != second.LinesReplayed || first.WarningCount != second.WarningCount {
		t.Fatalf("runs differ: first=%+v second=%+v", first, second)
	}
	if !repo.LineCogs(1).Equal(cogsA) || !repo.LineCogs(2).Equal(cogsB) {
		t.Fatalf("cogs changed on identical rerun: (%s,%s) then (%s,%s)",
			cogsA, cogsB, repo.LineCogs(1), repo.LineCogs(2))
	}

	// 50 @ 10/13 split then 20 @ 13: 40*10 + 10*13 = 530, 20*13 = 260.
	if !cogsA.Equal(decimal.NewFromInt(530)) {
		t.Fatalf("first sale cogs = %s, want 530", cogsA)
	}
	if !cogsB.Equal(decimal.NewFromInt(260)) {
		t.Fatalf("second sale cogs = %s, want 260", cogsB)
	}
}

func TestRecalculateFromDateLeavesEarlierLinesAlone(t *testing.T) {
	repo := workflow.NewMemoryRepository()
	addLot(t, repo, 1, 1, date(2025, time.January, 1), 10, 100)
	addRegisteredSale(t, repo, 1, 101, 1, date(2025, time.January, 2), 10)
	addRegisteredSale(t, repo, 2, 102, 1, date(2025, time.January, 9), 10)

	cogsBefore := repo.LineCogs(1)
	consumptionsBefore, _ := repo.ConsumptionsByLine(testBusinessId, models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: 1})

	_, err := workflow.RecalculateFromDate(repo, nil, testBusinessId, 1, date(2025, time.January, 5), "edit", "")
	if err != nil {
		t.Fatalf("RecalculateFromDate: %v", err)
	}

	if !repo.LineCogs(1).Equal(cogsBefore) {
		t.Fatalf("line before the window recosted: %s -> %s", cogsBefore, repo.LineCogs(1))
	}
	consumptionsAfter, _ := repo.ConsumptionsByLine(testBusinessId, models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: 1})
	if len(consumptionsAfter) != len(consumptionsBefore) {
		t.Fatalf("consumptions before the window touched: %d -> %d", len(consumptionsBefore), len(consumptionsAfter))
	}
}

func TestReverseConsumptionsFromDateRestoresLotState(t *testing.T) {
	repo := workflow.NewMemoryRepository()
	lot := addLot(t, repo, 1, 1, date(2025, time.January, 1), 10, 100)
	addRegisteredSale(t, repo, 1, 101, 1, date(2025, time.January, 5), 30)
	addRegisteredSale(t, repo, 2, 102, 1, date(2025, time.January, 8), 20)

	lines, err := workflow.ReverseConsumptionsFromDate(repo, testBusinessId, 1, date(2025, time.January, 1))
	if err != nil {
		t.Fatalf("ReverseConsumptionsFromDate: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("reversed lines = %d, want 2", len(lines))
	}
	got, _ := repo.LotById(lot.ID)
	if !got.RemainingQty.Equal(got.InitialQty) {
		t.Fatalf("lot remaining after reversal = %s, want %s", got.RemainingQty, got.InitialQty)
	}
	if !lines[0].DocDate.Before(lines[1].DocDate) {
		t.Fatalf("lines not in document-date order: %s then %s", lines[0].DocDate, lines[1].DocDate)
	}
}

func TestRecalculateFromDateStampsCorrelationId(t *testing.T) {
	repo := workflow.NewMemoryRepository()
	addLot(t, repo, 1, 1, date(2025, time.January, 1), 10, 100)
	addRegisteredSale(t, repo, 1, 101, 1, date(2025, time.January, 5), 30)

	_, err := workflow.RecalculateFromDate(repo, nil, testBusinessId, 1, date(2025, time.January, 1), "edit", "corr-42")
	if err != nil {
		t.Fatalf("RecalculateFromDate: %v", err)
	}

	runs := repo.Runs()
	if len(runs) != 1 || runs[0].CorrelationId != "corr-42" {
		t.Fatalf("audit run correlation id = %q, want corr-42", runs[0].CorrelationId)
	}
	consumptions, err := repo.ConsumptionsByLine(testBusinessId, models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: 1})
	if err != nil {
		t.Fatalf("ConsumptionsByLine: %v", err)
	}
	if len(consumptions) == 0 {
		t.Fatal("no consumptions rewritten")
	}
	for _, c := range consumptions {
		if c.CorrelationId != "corr-42" {
			t.Fatalf("consumption correlation id = %q, want corr-42", c.CorrelationId)
		}
	}
}

func TestRecalculateFromDateRejectsInvalidScope(t *testing.T) {
	repo := workflow.NewMemoryRepository()
	if _, err := workflow.RecalculateFromDate(repo, nil, "", 1, date(2025, time.January, 1), "edit", ""); err == nil {
		t.Fatal("empty business id accepted")
	}
	if _, err := workflow.RecalculateFromDate(repo, nil, testBusinessId, 0, date(2025, time.January, 1), "edit", ""); err == nil {
		t.Fatal("zero product id accepted")
	}
}
