package workflow

import (
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/costing_backend/config"
	"bitbucket.org/mmdatafocus/costing_backend/models"
	"bitbucket.org/mmdatafocus/costing_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CreateCreditNote posts a customer return. Each line opens a RETURN lot at
// the unit cost supplied by the caller, dated to the credit note, so the
// returned stock rejoins the FIFO queue at its original cost.
func CreateCreditNote(tx *gorm.DB, logger *logrus.Logger, businessId string, input *models.NewCreditNote) (*models.CreditNote, error) {
	business, err := models.GetBusinessById2(tx, businessId)
	if err != nil {
		return nil, errors.New("business not found")
	}
	products, err := validateDocumentLines(tx, businessId, input.WarehouseId, creditNoteLineProducts(input.Details))
	if err != nil {
		return nil, err
	}
	noteDate, err := utils.ConvertToDate(input.CreditNoteDate, business.Timezone)
	if err != nil {
		return nil, err
	}

	note := models.CreditNote{
		BusinessId:       businessId,
		CustomerName:     input.CustomerName,
		CreditNoteNumber: input.CreditNoteNumber,
		CreditNoteDate:   noteDate,
		WarehouseId:      input.WarehouseId,
	}
	for _, line := range input.Details {
		if err := validate.Struct(line); err != nil {
			return nil, err
		}
		if !line.DetailQty.GreaterThan(decimal.Zero) {
			return nil, fmt.Errorf("credit note line qty must be positive for product_id=%d", line.ProductId)
		}
		note.Details = append(note.Details, models.CreditNoteDetail{
			ProductId:      line.ProductId,
			Name:           line.Name,
			DetailQty:      line.DetailQty,
			DetailUnitCost: line.DetailUnitCost,
		})
	}
	if err := tx.Create(&note).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, fmt.Errorf("credit note number %q already exists", input.CreditNoteNumber)
		}
		config.LogError(logger, "creditNoteWorkflow.go", "CreateCreditNote", "CreateCreditNote", input.CreditNoteNumber, err)
		return nil, err
	}

	repo := NewGormRepository(tx)
	cid := correlationIdOf(tx)
	for _, productId := range productIdsOf(products) {
		if err := AcquireItemPostingLock(tx, businessId, productId); err != nil {
			return nil, err
		}
		defer ReleaseItemPostingLock(tx, businessId, productId)
	}

	for _, detail := range note.Details {
		if !trackInventory(products[detail.ProductId]) {
			continue
		}
		sequence, err := repo.NextLotSequence(businessId, detail.ProductId)
		if err != nil {
			return nil, err
		}
		err = repo.CreateLot(&models.StockLot{
			BusinessId:    businessId,
			WarehouseId:   note.WarehouseId,
			ProductId:     detail.ProductId,
			SourceType:    models.StockLotSourceReturn,
			SourceRefType: models.SourceReferenceTypeCreditNote,
			SourceRefId:   note.ID,
			LotDate:       noteDate,
			Sequence:      sequence,
			UnitCost:      detail.DetailUnitCost,
			InitialQty:    detail.DetailQty,
			RemainingQty:  detail.DetailQty,
			CorrelationId: cid,
		})
		if err != nil {
			return nil, err
		}
	}

	affectedDocs := make([]int, 0)
	for _, productId := range productIdsOf(products) {
		if !trackInventory(products[productId]) {
			continue
		}
		backdated, err := IsBackdated(repo, businessId, productId, noteDate)
		if err != nil {
			return nil, err
		}
		if !backdated {
			continue
		}
		result, err := RecalculateFromDate(repo, logger, businessId, productId, noteDate, "backdated-return", cid)
		if err != nil {
			return nil, err
		}
		affectedDocs = utils.MergeIntSlices(affectedDocs, result.AffectedDocIds)
	}
	if err := SyncCogsJournals(tx, logger, businessId, affectedDocs); err != nil {
		return nil, err
	}
	return &note, nil
}

// DeleteCreditNote reverses sales drawing on the return lots, drops the
// lots, removes the document, then replays the affected products.
func DeleteCreditNote(tx *gorm.DB, logger *logrus.Logger, businessId string, creditNoteId int) error {
	var note models.CreditNote
	err := tx.Preload("Details").Where("business_id = ?", businessId).First(&note, creditNoteId).Error
	if err != nil {
		return utils.ErrorRecordNotFound
	}

	affectedProducts := make(map[int]struct{})
	for _, detail := range note.Details {
		affectedProducts[detail.ProductId] = struct{}{}
	}
	productIds := sortedIdSet(affectedProducts)
	for _, productId := range productIds {
		if err := AcquireItemPostingLock(tx, businessId, productId); err != nil {
			return err
		}
		defer ReleaseItemPostingLock(tx, businessId, productId)
	}

	repo := NewGormRepository(tx)
	cid := correlationIdOf(tx)
	fromDate := note.CreditNoteDate
	lots, err := repo.LotsBySource(businessId, models.SourceReferenceTypeCreditNote, creditNoteId)
	if err != nil {
		return err
	}
	lotIds := make([]int, 0, len(lots))
	for _, lot := range lots {
		lotIds = append(lotIds, lot.ID)
	}
	earliest, err := repo.EarliestConsumptionDateForLots(businessId, lotIds)
	if err != nil {
		return err
	}
	if earliest != nil && earliest.Before(fromDate) {
		fromDate = *earliest
	}

	for _, productId := range productIds {
		if _, err := ReverseConsumptionsFromDate(repo, businessId, productId, fromDate); err != nil {
			return err
		}
	}
	for _, lot := range lots {
		refreshed, err := repo.LotById(lot.ID)
		if err != nil {
			return err
		}
		if !refreshed.RemainingQty.Equal(refreshed.InitialQty) {
			return fmt.Errorf("stock lot %d still has consumptions after reversal", lot.ID)
		}
		if err := repo.DeleteLot(lot.ID); err != nil {
			return err
		}
	}

	if err := tx.Where("credit_note_id = ?", creditNoteId).Delete(&models.CreditNoteDetail{}).Error; err != nil {
		return err
	}
	if err := tx.Delete(&models.CreditNote{}, creditNoteId).Error; err != nil {
		return err
	}

	affectedDocs := make([]int, 0)
	for _, productId := range productIds {
		result, err := RecalculateFromDate(repo, logger, businessId, productId, fromDate, "delete", cid)
		if err != nil {
			return err
		}
		affectedDocs = utils.MergeIntSlices(affectedDocs, result.AffectedDocIds)
	}
	return SyncCogsJournals(tx, logger, businessId, affectedDocs)
}

func creditNoteLineProducts(details []models.NewCreditNoteDetail) []int {
	ids := make([]int, 0, len(details))
	for _, detail := range details {
		ids = append(ids, detail.ProductId)
	}
	return ids
}
