package workflow

import (
	"fmt"

	"bitbucket.org/mmdatafocus/costing_backend/config"
	"bitbucket.org/mmdatafocus/costing_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SyncInvoiceCogsJournal regenerates the double-entry COGS posting for one
// invoice from its lines' recalculated costs: debit the product's purchase
// account, credit its inventory account, one pair per line with a non-zero
// cost. The purchase account is normally a CostOfGoodsSold detail-type
// account. The previous posting for the invoice is replaced.
//
// A product without the required accounts fails the transaction; costing
// must never commit with an unpostable journal.
func SyncInvoiceCogsJournal(tx *gorm.DB, logger *logrus.Logger, businessId string, invoiceId int) error {
	var invoice models.SalesInvoice
	err := tx.Preload("Details").
		Where("business_id = ?", businessId).
		First(&invoice, invoiceId).Error
	if err != nil {
		config.LogError(logger, "journalSync.go", "SyncInvoiceCogsJournal", "FetchInvoice", invoiceId, err)
		return err
	}

	if err := models.DeleteJournalByReference(tx, businessId, string(models.ConsumingReferenceTypeInvoice), invoiceId); err != nil {
		return err
	}

	journal := models.AccountJournal{
		BusinessId:    businessId,
		JournalDate:   invoice.InvoiceDate,
		ReferenceType: string(models.ConsumingReferenceTypeInvoice),
		ReferenceID:   invoiceId,
		Description:   "COGS " + invoice.InvoiceNumber,
	}

	for _, detail := range invoice.Details {
		if !detail.Cogs.GreaterThan(decimal.Zero) {
			continue
		}
		var product models.Product
		if err := tx.Where("business_id = ?", businessId).First(&product, detail.ProductId).Error; err != nil {
			config.LogError(logger, "journalSync.go", "SyncInvoiceCogsJournal", "FetchProduct", detail.ProductId, err)
			return err
		}
		if product.PurchaseAccountId <= 0 || product.InventoryAccountId <= 0 {
			return fmt.Errorf("product_id=%d is missing purchase or inventory account", product.ID)
		}
		journal.Transactions = append(journal.Transactions,
			models.AccountTransaction{
				BusinessId: businessId,
				AccountId:  product.PurchaseAccountId,
				Debit:      detail.Cogs,
			},
			models.AccountTransaction{
				BusinessId: businessId,
				AccountId:  product.InventoryAccountId,
				Credit:     detail.Cogs,
			},
		)
	}

	if len(journal.Transactions) == 0 {
		return nil
	}
	return tx.Create(&journal).Error
}

// SyncCogsJournals reposts the COGS journal for every invoice touched by a
// replay pass.
func SyncCogsJournals(tx *gorm.DB, logger *logrus.Logger, businessId string, invoiceIds []int) error {
	for _, invoiceId := range invoiceIds {
		if err := SyncInvoiceCogsJournal(tx, logger, businessId, invoiceId); err != nil {
			return err
		}
	}
	return nil
}
