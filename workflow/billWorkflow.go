package workflow

import (
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/costing_backend/config"
	"bitbucket.org/mmdatafocus/costing_backend/models"
	"bitbucket.org/mmdatafocus/costing_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CreateBill posts a purchase. Each line opens a stock lot dated to the
// bill. A backdated bill triggers recalculation from the bill date because
// the new lot may now be cheaper than lots already consumed.
func CreateBill(tx *gorm.DB, logger *logrus.Logger, businessId string, input *models.NewBill) (*models.Bill, error) {
	business, err := models.GetBusinessById2(tx, businessId)
	if err != nil {
		return nil, errors.New("business not found")
	}
	products, err := validateDocumentLines(tx, businessId, input.WarehouseId, billLineProducts(input.Details))
	if err != nil {
		return nil, err
	}
	billDate, err := utils.ConvertToDate(input.BillDate, business.Timezone)
	if err != nil {
		return nil, err
	}

	bill := models.Bill{
		BusinessId:    businessId,
		SupplierName:  input.SupplierName,
		BillNumber:    input.BillNumber,
		BillDate:      billDate,
		WarehouseId:   input.WarehouseId,
		CurrentStatus: models.BillStatusConfirmed,
	}
	total := decimal.Zero
	for _, line := range input.Details {
		if err := validate.Struct(line); err != nil {
			return nil, err
		}
		if !line.DetailQty.GreaterThan(decimal.Zero) {
			return nil, fmt.Errorf("bill line qty must be positive for product_id=%d", line.ProductId)
		}
		bill.Details = append(bill.Details, models.BillDetail{
			ProductId:      line.ProductId,
			Name:           line.Name,
			DetailQty:      line.DetailQty,
			DetailUnitRate: line.DetailUnitRate,
		})
		total = total.Add(line.DetailQty.Mul(line.DetailUnitRate))
	}
	bill.BillTotalAmount = total
	if err := tx.Create(&bill).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, fmt.Errorf("bill number %q already exists", input.BillNumber)
		}
		config.LogError(logger, "billWorkflow.go", "CreateBill", "CreateBill", input.BillNumber, err)
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

	for _, detail := range bill.Details {
		product := products[detail.ProductId]
		if !trackInventory(product) {
			continue
		}
		if err := createPurchaseLot(repo, businessId, &bill, &detail, cid); err != nil {
			return nil, err
		}
		// Last-known-cost cache. Lots remain the source of truth for COGS.
		err = tx.Model(&models.Product{}).Where("id = ?", detail.ProductId).
			Update("purchase_price", detail.DetailUnitRate).Error
		if err != nil {
			return nil, err
		}
	}

	affectedDocs := make([]int, 0)
	for _, productId := range productIdsOf(products) {
		if !trackInventory(products[productId]) {
			continue
		}
		backdated, err := IsBackdated(repo, businessId, productId, billDate)
		if err != nil {
			return nil, err
		}
		if !backdated {
			continue
		}
		result, err := RecalculateFromDate(repo, logger, businessId, productId, billDate, "backdated-purchase", cid)
		if err != nil {
			return nil, err
		}
		affectedDocs = utils.MergeIntSlices(affectedDocs, result.AffectedDocIds)
	}
	if err := SyncCogsJournals(tx, logger, businessId, affectedDocs); err != nil {
		return nil, err
	}
	return &bill, nil
}

// UpdateBill rebuilds the bill's lots. Consumptions drawing on the old lots
// are reversed first so the lots can be dropped, then every affected product
// is replayed from the earliest date the change can influence.
func UpdateBill(tx *gorm.DB, logger *logrus.Logger, businessId string, billId int, input *models.NewBill) (*models.Bill, error) {
	business, err := models.GetBusinessById2(tx, businessId)
	if err != nil {
		return nil, errors.New("business not found")
	}
	var oldBill models.Bill
	err = tx.Preload("Details").Where("business_id = ?", businessId).First(&oldBill, billId).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	products, err := validateDocumentLines(tx, businessId, input.WarehouseId, billLineProducts(input.Details))
	if err != nil {
		return nil, err
	}
	newDate, err := utils.ConvertToDate(input.BillDate, business.Timezone)
	if err != nil {
		return nil, err
	}

	affectedProducts := make(map[int]struct{})
	for _, detail := range oldBill.Details {
		affectedProducts[detail.ProductId] = struct{}{}
	}
	for productId := range products {
		affectedProducts[productId] = struct{}{}
	}
	productIds := sortedIdSet(affectedProducts)
	for _, productId := range productIds {
		if err := AcquireItemPostingLock(tx, businessId, productId); err != nil {
			return nil, err
		}
		defer ReleaseItemPostingLock(tx, businessId, productId)
	}

	repo := NewGormRepository(tx)
	cid := correlationIdOf(tx)
	fromDate, err := billRecalcStart(repo, businessId, billId,
		RecalculationStartDate(oldBill.BillDate, newDate))
	if err != nil {
		return nil, err
	}
	for _, productId := range productIds {
		if _, err := ReverseConsumptionsFromDate(repo, businessId, productId, fromDate); err != nil {
			return nil, err
		}
	}
	if err := dropBillLots(repo, businessId, billId); err != nil {
		return nil, err
	}

	if err := tx.Where("bill_id = ?", billId).Delete(&models.BillDetail{}).Error; err != nil {
		return nil, err
	}
	total := decimal.Zero
	details := make([]models.BillDetail, 0, len(input.Details))
	for _, line := range input.Details {
		if err := validate.Struct(line); err != nil {
			return nil, err
		}
		if !line.DetailQty.GreaterThan(decimal.Zero) {
			return nil, fmt.Errorf("bill line qty must be positive for product_id=%d", line.ProductId)
		}
		details = append(details, models.BillDetail{
			BillId:         billId,
			ProductId:      line.ProductId,
			Name:           line.Name,
			DetailQty:      line.DetailQty,
			DetailUnitRate: line.DetailUnitRate,
		})
		total = total.Add(line.DetailQty.Mul(line.DetailUnitRate))
	}
	err = tx.Model(&oldBill).Updates(map[string]interface{}{
		"supplier_name":     input.SupplierName,
		"bill_number":       input.BillNumber,
		"bill_date":         newDate,
		"warehouse_id":      input.WarehouseId,
		"bill_total_amount": total,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := tx.Create(&details).Error; err != nil {
		return nil, err
	}

	updatedBill := oldBill
	updatedBill.BillDate = newDate
	updatedBill.WarehouseId = input.WarehouseId
	for _, detail := range details {
		product := products[detail.ProductId]
		if !trackInventory(product) {
			continue
		}
		if err := createPurchaseLot(repo, businessId, &updatedBill, &detail, cid); err != nil {
			return nil, err
		}
		err = tx.Model(&models.Product{}).Where("id = ?", detail.ProductId).
			Update("purchase_price", detail.DetailUnitRate).Error
		if err != nil {
			return nil, err
		}
	}

	affectedDocs := make([]int, 0)
	for _, productId := range productIds {
		result, err := RecalculateFromDate(repo, logger, businessId, productId, fromDate, "edit", cid)
		if err != nil {
			return nil, err
		}
		affectedDocs = utils.MergeIntSlices(affectedDocs, result.AffectedDocIds)
	}
	if err := SyncCogsJournals(tx, logger, businessId, affectedDocs); err != nil {
		return nil, err
	}

	var updated models.Bill
	if err := tx.Preload("Details").First(&updated, billId).Error; err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteBill reverses every sale that drew on the bill's lots, drops the
// lots, removes the document, then replays so the sales re-cost against the
// remaining stock.
func DeleteBill(tx *gorm.DB, logger *logrus.Logger, businessId string, billId int) error {
	var bill models.Bill
	err := tx.Preload("Details").Where("business_id = ?", businessId).First(&bill, billId).Error
	if err != nil {
		return utils.ErrorRecordNotFound
	}

	affectedProducts := make(map[int]struct{})
	for _, detail := range bill.Details {
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
	fromDate, err := billRecalcStart(repo, businessId, billId, bill.BillDate)
	if err != nil {
		return err
	}
	for _, productId := range productIds {
		if _, err := ReverseConsumptionsFromDate(repo, businessId, productId, fromDate); err != nil {
			return err
		}
	}
	if err := dropBillLots(repo, businessId, billId); err != nil {
		return err
	}

	if err := tx.Where("bill_id = ?", billId).Delete(&models.BillDetail{}).Error; err != nil {
		return err
	}
	if err := tx.Delete(&models.Bill{}, billId).Error; err != nil {
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

func createPurchaseLot(repo CostingRepository, businessId string, bill *models.Bill, detail *models.BillDetail, correlationId string) error {
	sequence, err := repo.NextLotSequence(businessId, detail.ProductId)
	if err != nil {
		return err
	}
	return repo.CreateLot(&models.StockLot{
		BusinessId:    businessId,
		WarehouseId:   bill.WarehouseId,
		ProductId:     detail.ProductId,
		SourceType:    models.StockLotSourcePurchase,
		SourceRefType: models.SourceReferenceTypeBill,
		SourceRefId:   bill.ID,
		LotDate:       bill.BillDate,
		Sequence:      sequence,
		UnitCost:      detail.DetailUnitRate,
		InitialQty:    detail.DetailQty,
		RemainingQty:  detail.DetailQty,
		CorrelationId: correlationId,
	})
}

// billRecalcStart widens the replay window to the earliest sale that drew
// on the bill's lots, so reversal frees every consumption before the lots
// are dropped.
func billRecalcStart(repo CostingRepository, businessId string, billId int, docDate time.Time) (time.Time, error) {
	lots, err := repo.LotsBySource(businessId, models.SourceReferenceTypeBill, billId)
	if err != nil {
		return docDate, err
	}
	lotIds := make([]int, 0, len(lots))
	for _, lot := range lots {
		lotIds = append(lotIds, lot.ID)
	}
	earliest, err := repo.EarliestConsumptionDateForLots(businessId, lotIds)
	if err != nil {
		return docDate, err
	}
	if earliest != nil && earliest.Before(docDate) {
		return *earliest, nil
	}
	return docDate, nil
}

// dropBillLots deletes the bill's lots after verifying reversal restored
// each one to its initial quantity.
func dropBillLots(repo CostingRepository, businessId string, billId int) error {
	lots, err := repo.LotsBySource(businessId, models.SourceReferenceTypeBill, billId)
	if err != nil {
		return err
	}
	for _, lot := range lots {
		if !lot.RemainingQty.Equal(lot.InitialQty) {
			return fmt.Errorf("stock lot %d still has consumptions after reversal", lot.ID)
		}
		if err := repo.DeleteLot(lot.ID); err != nil {
			return err
		}
	}
	return nil
}

func billLineProducts(details []models.NewBillDetail) []int {
	ids := make([]int, 0, len(details))
	for _, detail := range details {
		ids = append(ids, detail.ProductId)
	}
	return ids
}
