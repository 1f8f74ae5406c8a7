package workflow

import (
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/costing_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ConsumeInput struct {
	BusinessId    string
	ProductId     int
	WarehouseId   int // 0 = all warehouses
	Line          models.LineRef
	Qty           decimal.Decimal
	AsOfDate      time.Time
	CorrelationId string
}

type ConsumeResult struct {
	TotalCost decimal.Decimal
	Warnings  []string
}

// ConsumeStock draws the requested quantity from open lots oldest-first
// (lot_date, then sequence) and records one consumption per lot touched.
//
// A shortfall is not an error: the sale completes with whatever stock
// exists and the result carries one warning naming the missing quantity.
// When no lot can be drawn at all the line is costed from the product's
// cached last-known purchase price instead of zero.
func ConsumeStock(repo CostingRepository, logger *logrus.Logger, input ConsumeInput) (*ConsumeResult, error) {
	if input.BusinessId == "" || input.ProductId <= 0 {
		return nil, errors.New("consume stock: invalid scope")
	}
	if !input.Qty.GreaterThan(decimal.Zero) {
		return nil, fmt.Errorf("consume stock: qty must be positive, got %s", input.Qty)
	}

	lots, err := repo.OpenLots(input.BusinessId, input.ProductId, input.WarehouseId)
	if err != nil {
		return nil, err
	}

	result := &ConsumeResult{TotalCost: decimal.Zero}
	stillNeeded := input.Qty
	allocated := false

	for _, lot := range lots {
		if !stillNeeded.GreaterThan(decimal.Zero) {
			break
		}
		take := lot.RemainingQty
		if take.GreaterThan(stillNeeded) {
			take = stillNeeded
		}
		if !take.GreaterThan(decimal.Zero) {
			continue
		}

		consumption := &models.StockLotConsumption{
			BusinessId:       input.BusinessId,
			StockLotId:       lot.ID,
			ProductId:        input.ProductId,
			ConsumingRefType: input.Line.Type,
			ConsumingLineId:  input.Line.DetailId,
			Qty:              take,
			UnitCost:         lot.UnitCost,
			CorrelationId:    input.CorrelationId,
		}
		if err := repo.CreateConsumption(consumption); err != nil {
			return nil, err
		}

		lot.RemainingQty = lot.RemainingQty.Sub(take)
		if err := repo.SaveLot(lot); err != nil {
			return nil, err
		}

		result.TotalCost = result.TotalCost.Add(take.Mul(lot.UnitCost))
		stillNeeded = stillNeeded.Sub(take)
		allocated = true
	}

	if stillNeeded.GreaterThan(decimal.Zero) {
		if !allocated {
			price, err := repo.ProductPurchasePrice(input.BusinessId, input.ProductId)
			if err != nil {
				return nil, err
			}
			result.TotalCost = input.Qty.Mul(price)
		}
		warning := fmt.Sprintf("insufficient stock for product_id=%d warehouse_id=%d qty_requested=%s qty_missing=%s",
			input.ProductId, input.WarehouseId, input.Qty, stillNeeded)
		result.Warnings = append(result.Warnings, warning)
		if logger != nil {
			logger.WithFields(logrus.Fields{
				"business_id":  input.BusinessId,
				"product_id":   input.ProductId,
				"warehouse_id": input.WarehouseId,
				"line_type":    input.Line.Type,
				"line_id":      input.Line.DetailId,
				"qty_missing":  stillNeeded.String(),
			}).Warn("inv.consume.shortfall")
		}
	}

	return result, nil
}
