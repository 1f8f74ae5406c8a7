package workflow

import (
	"time"
)

// IsBackdated reports whether a document at candidateDate would land before
// sales that already hold FIFO allocations: true if any existing consumption
// for the product belongs to a line whose document date is strictly later.
//
// Callers skip immediate allocation for backdated lines and hand the product
// to the recalculation orchestrator instead, so the engine never allocates
// against a lot state that is about to be invalidated.
func IsBackdated(repo CostingRepository, businessId string, productId int, candidateDate time.Time) (bool, error) {
	return repo.HasConsumptionAfter(businessId, productId, candidateDate)
}

// RecalculationStartDate picks the replay start for a date move: the earlier
// of the two, since lots before that point are untouched but everything from
// it on may consume differently.
func RecalculationStartDate(oldDate, newDate time.Time) time.Time {
	if oldDate.Before(newDate) {
		return oldDate
	}
	return newDate
}
