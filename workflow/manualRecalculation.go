package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/costing_backend/config"
	"bitbucket.org/mmdatafocus/costing_backend/utils"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RunManualRecalculation recalculates one product from a date on demand.
// A redis lock keeps concurrent manual runs for the same product from
// piling up across instances; inside the transaction the usual per-item
// posting lock still applies.
func RunManualRecalculation(ctx context.Context, db *gorm.DB, logger *logrus.Logger, businessId string, productId int, fromDate time.Time) (*RecalculationResult, error) {
	if locker := config.GetRedisLock(); locker != nil {
		key := fmt.Sprintf("costing:recalc:%s:%d", businessId, productId)
		lock, err := locker.Obtain(ctx, key, 5*time.Minute, nil)
		if err == redislock.ErrNotObtained {
			return nil, fmt.Errorf("recalculation already running for product_id=%d", productId)
		}
		if err == nil {
			defer lock.Release(ctx)
		}
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	tx.Exec("SET innodb_lock_wait_timeout = ?", config.MutationLockWaitSeconds())
	defer tx.Rollback()

	if err := AcquireItemPostingLock(tx, businessId, productId); err != nil {
		return nil, err
	}
	defer ReleaseItemPostingLock(tx, businessId, productId)

	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	if cid == "" {
		cid = uuid.NewString()
	}

	repo := NewGormRepository(tx)
	result, err := RecalculateFromDate(repo, logger, businessId, productId, fromDate, "manual-recalculation", cid)
	if err != nil {
		return nil, err
	}
	if err := SyncCogsJournals(tx, logger, businessId, result.AffectedDocIds); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return result, nil
}
