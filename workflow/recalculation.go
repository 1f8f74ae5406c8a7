package workflow

import (
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/costing_backend/models"
	"github.com/sirupsen/logrus"
)

// RecalculationResult summarizes one reversal+replay pass.
type RecalculationResult struct {
	LinesReplayed  int
	WarningCount   int
	AffectedDocIds []int
}

// ReverseConsumptionsFromDate deletes every consumption attached to a line
// dated >= fromDate for the product and restores the quantities to their
// lots, returning the lot table to the state it held just before fromDate.
func ReverseConsumptionsFromDate(repo CostingRepository, businessId string, productId int, fromDate time.Time) ([]*ConsumingLine, error) {
	lines, err := repo.ConsumingLinesFromDate(businessId, productId, fromDate)
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		if err := RestoreConsumptions(repo, businessId, line.Ref); err != nil {
			return nil, err
		}
	}
	return lines, nil
}

// ReplayConsumptionsFromDate re-runs the FIFO engine for the given lines in
// document-date order, exactly as if each were a fresh sale, rewriting each
// line's cost of goods sold.
func ReplayConsumptionsFromDate(repo CostingRepository, logger *logrus.Logger, businessId string, lines []*ConsumingLine, correlationId string) (*RecalculationResult, error) {
	result := &RecalculationResult{}
	seenDocs := make(map[int]struct{})

	for _, line := range lines {
		consumed, err := ConsumeStock(repo, logger, ConsumeInput{
			BusinessId:    businessId,
			ProductId:     line.ProductId,
			WarehouseId:   line.WarehouseId,
			Line:          line.Ref,
			Qty:           line.Qty,
			AsOfDate:      line.DocDate,
			CorrelationId: correlationId,
		})
		if err != nil {
			return nil, err
		}
		if err := repo.UpdateLineCogs(businessId, line.Ref, consumed.TotalCost); err != nil {
			return nil, err
		}

		result.LinesReplayed++
		result.WarningCount += len(consumed.Warnings)
		if _, ok := seenDocs[line.DocId]; !ok {
			seenDocs[line.DocId] = struct{}{}
			result.AffectedDocIds = append(result.AffectedDocIds, line.DocId)
		}

		if logger != nil {
			logger.WithFields(logrus.Fields{
				"business_id": businessId,
				"product_id":  line.ProductId,
				"line_type":   line.Ref.Type,
				"line_id":     line.Ref.DetailId,
				"doc_date":    line.DocDate.Format(time.RFC3339),
				"cogs":        consumed.TotalCost.String(),
				"warnings":    len(consumed.Warnings),
			}).Info("inv.recalc.line")
		}
	}
	return result, nil
}

// RecalculateFromDate rebuilds all FIFO allocations for a product from
// fromDate forward. Reversal first, then chronological replay; the pass is
// idempotent: a second run with no intervening writes reproduces the same
// consumption records and costs.
//
// Runs inside the caller's transaction; any failure rolls the whole document
// mutation back, so a partial recalculation never commits.
func RecalculateFromDate(repo CostingRepository, logger *logrus.Logger, businessId string, productId int, fromDate time.Time, reason string, correlationId string) (*RecalculationResult, error) {
	if businessId == "" || productId <= 0 {
		return nil, errors.New("recalculate: invalid scope")
	}
	started := time.Now()

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"business_id": businessId,
			"product_id":  productId,
			"from_date":   fromDate.Format(time.RFC3339),
			"reason":      reason,
		}).Info("inv.recalc.start")
	}

	lines, err := ReverseConsumptionsFromDate(repo, businessId, productId, fromDate)
	if err != nil {
		return nil, err
	}
	result, err := ReplayConsumptionsFromDate(repo, logger, businessId, lines, correlationId)
	if err != nil {
		return nil, err
	}

	run := &models.RecalculationRun{
		BusinessId:    businessId,
		ProductId:     productId,
		FromDate:      fromDate,
		Reason:        reason,
		LinesReplayed: result.LinesReplayed,
		WarningCount:  result.WarningCount,
		DurationMs:    time.Since(started).Milliseconds(),
		CorrelationId: correlationId,
	}
	if err := repo.CreateRecalculationRun(run); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"business_id":    businessId,
			"product_id":     productId,
			"from_date":      fromDate.Format(time.RFC3339),
			"reason":         reason,
			"lines_replayed": result.LinesReplayed,
			"warning_count":  result.WarningCount,
		}).Info("inv.recalc.end")
	}
	return result, nil
}
