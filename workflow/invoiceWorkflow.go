package workflow

import (
	"errors"
	"fmt"
	"sort"

	"bitbucket.org/mmdatafocus/costing_backend/config"
	"bitbucket.org/mmdatafocus/costing_backend/models"
	"bitbucket.org/mmdatafocus/costing_backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var validate = validator.New()

// CreateSalesInvoice posts a sale. Lines for non-backdated dates consume
// stock immediately; a backdated line leaves its cost at zero and hands the
// product to the recalculation orchestrator, which replays every sale from
// the invoice date forward (including the new lines).
func CreateSalesInvoice(tx *gorm.DB, logger *logrus.Logger, businessId string, input *models.NewSalesInvoice) (*models.SalesInvoice, []string, error) {
	business, err := models.GetBusinessById2(tx, businessId)
	if err != nil {
		return nil, nil, errors.New("business not found")
	}
	products, err := validateDocumentLines(tx, businessId, input.WarehouseId, invoiceLineProducts(input.Details))
	if err != nil {
		return nil, nil, err
	}
	invoiceDate, err := utils.ConvertToDate(input.InvoiceDate, business.Timezone)
	if err != nil {
		return nil, nil, err
	}

	invoice := models.SalesInvoice{
		BusinessId:    businessId,
		CustomerName:  input.CustomerName,
		InvoiceNumber: input.InvoiceNumber,
		InvoiceDate:   invoiceDate,
		WarehouseId:   input.WarehouseId,
		CurrentStatus: models.SalesInvoiceStatusConfirmed,
	}
	total := decimal.Zero
	for _, line := range input.Details {
		if err := validate.Struct(line); err != nil {
			return nil, nil, err
		}
		if !line.DetailQty.GreaterThan(decimal.Zero) {
			return nil, nil, fmt.Errorf("invoice line qty must be positive for product_id=%d", line.ProductId)
		}
		invoice.Details = append(invoice.Details, models.SalesInvoiceDetail{
			ProductId:      line.ProductId,
			Name:           line.Name,
			DetailQty:      line.DetailQty,
			DetailUnitRate: line.DetailUnitRate,
		})
		total = total.Add(line.DetailQty.Mul(line.DetailUnitRate))
	}
	invoice.InvoiceTotalAmount = total
	if err := tx.Create(&invoice).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, nil, fmt.Errorf("invoice number %q already exists", input.InvoiceNumber)
		}
		config.LogError(logger, "invoiceWorkflow.go", "CreateSalesInvoice", "CreateInvoice", input.InvoiceNumber, err)
		return nil, nil, err
	}

	repo := NewGormRepository(tx)
	cid := correlationIdOf(tx)
	warnings := make([]string, 0)
	affectedDocs := []int{invoice.ID}

	for _, productId := range productIdsOf(products) {
		if err := AcquireItemPostingLock(tx, businessId, productId); err != nil {
			return nil, nil, err
		}
		defer ReleaseItemPostingLock(tx, businessId, productId)

		if !trackInventory(products[productId]) {
			continue
		}
		backdated, err := IsBackdated(repo, businessId, productId, invoiceDate)
		if err != nil {
			return nil, nil, err
		}
		if backdated {
			result, err := RecalculateFromDate(repo, logger, businessId, productId, invoiceDate, "backdated-create", cid)
			if err != nil {
				return nil, nil, err
			}
			warnings = appendRecalcWarning(warnings, productId, result)
			affectedDocs = utils.MergeIntSlices(affectedDocs, result.AffectedDocIds)
			continue
		}
		for _, detail := range invoice.Details {
			if detail.ProductId != productId {
				continue
			}
			consumed, err := ConsumeStock(repo, logger, ConsumeInput{
				BusinessId:    businessId,
				ProductId:     productId,
				WarehouseId:   invoice.WarehouseId,
				Line:          models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: detail.ID},
				Qty:           detail.DetailQty,
				AsOfDate:      invoiceDate,
				CorrelationId: cid,
			})
			if err != nil {
				return nil, nil, err
			}
			if err := repo.UpdateLineCogs(businessId, models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: detail.ID}, consumed.TotalCost); err != nil {
				return nil, nil, err
			}
			warnings = append(warnings, consumed.Warnings...)
		}
	}

	if err := SyncCogsJournals(tx, logger, businessId, affectedDocs); err != nil {
		return nil, nil, err
	}
	return &invoice, warnings, nil
}

// UpdateSalesInvoice restores the old lines' consumptions, replaces the
// document, then replays every affected product from the earlier of the two
// dates.
func UpdateSalesInvoice(tx *gorm.DB, logger *logrus.Logger, businessId string, invoiceId int, input *models.NewSalesInvoice) (*models.SalesInvoice, []string, error) {
	business, err := models.GetBusinessById2(tx, businessId)
	if err != nil {
		return nil, nil, errors.New("business not found")
	}
	var oldInvoice models.SalesInvoice
	err = tx.Preload("Details").Where("business_id = ?", businessId).First(&oldInvoice, invoiceId).Error
	if err != nil {
		return nil, nil, utils.ErrorRecordNotFound
	}
	products, err := validateDocumentLines(tx, businessId, input.WarehouseId, invoiceLineProducts(input.Details))
	if err != nil {
		return nil, nil, err
	}
	newDate, err := utils.ConvertToDate(input.InvoiceDate, business.Timezone)
	if err != nil {
		return nil, nil, err
	}

	affectedProducts := make(map[int]struct{})
	for _, detail := range oldInvoice.Details {
		affectedProducts[detail.ProductId] = struct{}{}
	}
	for productId := range products {
		affectedProducts[productId] = struct{}{}
	}
	productIds := sortedIdSet(affectedProducts)
	for _, productId := range productIds {
		if err := AcquireItemPostingLock(tx, businessId, productId); err != nil {
			return nil, nil, err
		}
		defer ReleaseItemPostingLock(tx, businessId, productId)
	}

	repo := NewGormRepository(tx)
	cid := correlationIdOf(tx)
	for _, detail := range oldInvoice.Details {
		ref := models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: detail.ID}
		if err := RestoreConsumptions(repo, businessId, ref); err != nil {
			return nil, nil, err
		}
	}
	if err := tx.Where("sales_invoice_id = ?", invoiceId).Delete(&models.SalesInvoiceDetail{}).Error; err != nil {
		return nil, nil, err
	}

	total := decimal.Zero
	details := make([]models.SalesInvoiceDetail, 0, len(input.Details))
	for _, line := range input.Details {
		if err := validate.Struct(line); err != nil {
			return nil, nil, err
		}
		if !line.DetailQty.GreaterThan(decimal.Zero) {
			return nil, nil, fmt.Errorf("invoice line qty must be positive for product_id=%d", line.ProductId)
		}
		details = append(details, models.SalesInvoiceDetail{
			SalesInvoiceId: invoiceId,
			ProductId:      line.ProductId,
			Name:           line.Name,
			DetailQty:      line.DetailQty,
			DetailUnitRate: line.DetailUnitRate,
		})
		total = total.Add(line.DetailQty.Mul(line.DetailUnitRate))
	}
	err = tx.Model(&oldInvoice).Updates(map[string]interface{}{
		"customer_name":        input.CustomerName,
		"invoice_number":       input.InvoiceNumber,
		"invoice_date":         newDate,
		"warehouse_id":         input.WarehouseId,
		"invoice_total_amount": total,
	}).Error
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Create(&details).Error; err != nil {
		return nil, nil, err
	}

	fromDate := RecalculationStartDate(oldInvoice.InvoiceDate, newDate)
	warnings := make([]string, 0)
	affectedDocs := []int{invoiceId}
	for _, productId := range productIds {
		result, err := RecalculateFromDate(repo, logger, businessId, productId, fromDate, "edit", cid)
		if err != nil {
			return nil, nil, err
		}
		warnings = appendRecalcWarning(warnings, productId, result)
		affectedDocs = utils.MergeIntSlices(affectedDocs, result.AffectedDocIds)
	}

	if err := SyncCogsJournals(tx, logger, businessId, affectedDocs); err != nil {
		return nil, nil, err
	}

	var updated models.SalesInvoice
	if err := tx.Preload("Details").First(&updated, invoiceId).Error; err != nil {
		return nil, nil, err
	}
	return &updated, warnings, nil
}

// DeleteSalesInvoice restores every consumption the invoice held, removes
// the document and its posting, then replays the affected products from the
// invoice date so later sales re-absorb the freed stock.
func DeleteSalesInvoice(tx *gorm.DB, logger *logrus.Logger, businessId string, invoiceId int) error {
	var invoice models.SalesInvoice
	err := tx.Preload("Details").Where("business_id = ?", businessId).First(&invoice, invoiceId).Error
	if err != nil {
		return utils.ErrorRecordNotFound
	}

	affectedProducts := make(map[int]struct{})
	for _, detail := range invoice.Details {
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
	for _, detail := range invoice.Details {
		ref := models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: detail.ID}
		if err := RestoreConsumptions(repo, businessId, ref); err != nil {
			return err
		}
	}

	if err := models.DeleteJournalByReference(tx, businessId, string(models.ConsumingReferenceTypeInvoice), invoiceId); err != nil {
		return err
	}
	if err := tx.Where("sales_invoice_id = ?", invoiceId).Delete(&models.SalesInvoiceDetail{}).Error; err != nil {
		return err
	}
	if err := tx.Delete(&models.SalesInvoice{}, invoiceId).Error; err != nil {
		return err
	}

	affectedDocs := make([]int, 0)
	for _, productId := range productIds {
		result, err := RecalculateFromDate(repo, logger, businessId, productId, invoice.InvoiceDate, "delete", cid)
		if err != nil {
			return err
		}
		affectedDocs = utils.MergeIntSlices(affectedDocs, result.AffectedDocIds)
	}
	return SyncCogsJournals(tx, logger, businessId, affectedDocs)
}

func invoiceLineProducts(details []models.NewSalesInvoiceDetail) []int {
	ids := make([]int, 0, len(details))
	for _, detail := range details {
		ids = append(ids, detail.ProductId)
	}
	return ids
}

func appendRecalcWarning(warnings []string, productId int, result *RecalculationResult) []string {
	if result.WarningCount > 0 {
		warnings = append(warnings, fmt.Sprintf("recalculation reported %d shortfall warning(s) for product_id=%d",
			result.WarningCount, productId))
	}
	return warnings
}

// validateDocumentLines checks the warehouse and every product referenced by
// a document, returning the products keyed by id.
func validateDocumentLines(tx *gorm.DB, businessId string, warehouseId int, productIds []int) (map[int]*models.Product, error) {
	var warehouse models.Warehouse
	if err := tx.Where("business_id = ?", businessId).First(&warehouse, warehouseId).Error; err != nil {
		return nil, errors.New("warehouse not found")
	}
	products := make(map[int]*models.Product, len(productIds))
	for _, productId := range productIds {
		if _, ok := products[productId]; ok {
			continue
		}
		var product models.Product
		if err := tx.Where("business_id = ?", businessId).First(&product, productId).Error; err != nil {
			return nil, fmt.Errorf("product not found: product_id=%d", productId)
		}
		products[productId] = &product
	}
	return products, nil
}

// productIdsOf returns the keys in ascending order. Posting locks for a
// multi-product document must always be taken in the same order or two
// concurrent documents sharing products can deadlock on GET_LOCK.
func productIdsOf(products map[int]*models.Product) []int {
	ids := make([]int, 0, len(products))
	for id := range products {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func sortedIdSet(set map[int]struct{}) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// correlationIdOf reads the request correlation id riding on the
// transaction's context, so lots, consumptions and audit rows written in
// one mutation share the id the middleware assigned to the request.
func correlationIdOf(tx *gorm.DB) string {
	if tx == nil || tx.Statement == nil {
		return ""
	}
	cid, _ := utils.GetCorrelationIdFromContext(tx.Statement.Context)
	return cid
}

func trackInventory(product *models.Product) bool {
	return product.TrackInventory == nil || *product.TrackInventory
}
