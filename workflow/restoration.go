package workflow

import (
	"fmt"

	"bitbucket.org/mmdatafocus/costing_backend/models"
	"bitbucket.org/mmdatafocus/costing_backend/utils"
)

// RestoreConsumptions deletes every consumption held by a consuming line and
// returns the claimed quantities to their lots. It is the reversal primitive
// for both document deletion and recalculation.
func RestoreConsumptions(repo CostingRepository, businessId string, line models.LineRef) error {
	consumptions, err := repo.ConsumptionsByLine(businessId, line)
	if err != nil {
		return err
	}

	for _, consumption := range consumptions {
		lot, err := repo.LotById(consumption.StockLotId)
		if err != nil {
			return fmt.Errorf("restore consumptions: lot %d not found: %w", consumption.StockLotId, err)
		}

		restored := lot.RemainingQty.Add(consumption.Qty)
		if restored.GreaterThan(lot.InitialQty) {
			return fmt.Errorf("restore consumptions: lot_id=%d restored_qty=%s initial_qty=%s: %w",
				lot.ID, restored, lot.InitialQty, utils.ErrorLotOverRestore)
		}
		lot.RemainingQty = restored
		if err := repo.SaveLot(lot); err != nil {
			return err
		}

		if err := repo.DeleteConsumption(consumption.ID); err != nil {
			return err
		}
	}
	return nil
}
