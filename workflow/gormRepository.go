package workflow

import (
	"time"

	"bitbucket.org/mmdatafocus/costing_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormCostingRepository binds the costing repository to one open
// transaction. Lot reads take row locks (SELECT ... FOR UPDATE) so two
// concurrent sales of the same product serialize on the database.
type gormCostingRepository struct {
	tx *gorm.DB
}

func NewGormRepository(tx *gorm.DB) CostingRepository {
	return &gormCostingRepository{tx: tx}
}

func (r *gormCostingRepository) OpenLots(businessId string, productId int, warehouseId int) ([]*models.StockLot, error) {
	var lots []*models.StockLot
	query := r.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND product_id = ? AND remaining_qty > 0", businessId, productId)
	if warehouseId > 0 {
		query = query.Where("warehouse_id = ?", warehouseId)
	}
	err := query.Order("lot_date, sequence, id").Find(&lots).Error
	return lots, err
}

func (r *gormCostingRepository) LotById(id int) (*models.StockLot, error) {
	var lot models.StockLot
	err := r.tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&lot, id).Error
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

func (r *gormCostingRepository) CreateLot(lot *models.StockLot) error {
	return r.tx.Create(lot).Error
}

func (r *gormCostingRepository) SaveLot(lot *models.StockLot) error {
	return r.tx.Save(lot).Error
}

func (r *gormCostingRepository) DeleteLot(id int) error {
	return r.tx.Delete(&models.StockLot{}, id).Error
}

func (r *gormCostingRepository) LotsBySource(businessId string, refType models.SourceReferenceType, refId int) ([]*models.StockLot, error) {
	var lots []*models.StockLot
	err := r.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND source_ref_type = ? AND source_ref_id = ?", businessId, refType, refId).
		Order("lot_date, sequence, id").
		Find(&lots).Error
	return lots, err
}

func (r *gormCostingRepository) NextLotSequence(businessId string, productId int) (int, error) {
	return models.NextLotSequence(r.tx, businessId, productId)
}

func (r *gormCostingRepository) CreateConsumption(c *models.StockLotConsumption) error {
	return r.tx.Create(c).Error
}

func (r *gormCostingRepository) DeleteConsumption(id int) error {
	return r.tx.Delete(&models.StockLotConsumption{}, id).Error
}

func (r *gormCostingRepository) ConsumptionsByLine(businessId string, line models.LineRef) ([]*models.StockLotConsumption, error) {
	var consumptions []*models.StockLotConsumption
	err := r.tx.
		Where("business_id = ? AND consuming_ref_type = ? AND consuming_line_id = ?",
			businessId, line.Type, line.DetailId).
		Order("id").
		Find(&consumptions).Error
	return consumptions, err
}

func (r *gormCostingRepository) HasConsumptionAfter(businessId string, productId int, date time.Time) (bool, error) {
	var count int64
	err := r.tx.Raw(`
		SELECT COUNT(*)
		FROM stock_lot_consumptions c
		JOIN sales_invoice_details d ON d.id = c.consuming_line_id AND c.consuming_ref_type = 'IV'
		JOIN sales_invoices i ON i.id = d.sales_invoice_id
		WHERE c.business_id = ?
		  AND c.product_id = ?
		  AND i.current_status != 'Void'
		  AND i.invoice_date > ?
	`, businessId, productId, date).Scan(&count).Error
	return count > 0, err
}

func (r *gormCostingRepository) EarliestConsumptionDateForLots(businessId string, lotIds []int) (*time.Time, error) {
	if len(lotIds) == 0 {
		return nil, nil
	}
	var row struct {
		DocDate *time.Time
	}
	err := r.tx.Raw(`
		SELECT MIN(i.invoice_date) AS doc_date
		FROM stock_lot_consumptions c
		JOIN sales_invoice_details d ON d.id = c.consuming_line_id AND c.consuming_ref_type = 'IV'
		JOIN sales_invoices i ON i.id = d.sales_invoice_id
		WHERE c.business_id = ? AND c.stock_lot_id IN ?
	`, businessId, lotIds).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return row.DocDate, nil
}

func (r *gormCostingRepository) ConsumingLinesFromDate(businessId string, productId int, from time.Time) ([]*ConsumingLine, error) {
	type lineRow struct {
		DetailId    int
		DocId       int
		ProductId   int
		WarehouseId int
		DocDate     time.Time
		Qty         decimal.Decimal
	}
	var rows []lineRow
	err := r.tx.Raw(`
		SELECT d.id AS detail_id, i.id AS doc_id, d.product_id, i.warehouse_id,
		       i.invoice_date AS doc_date, d.detail_qty AS qty
		FROM sales_invoice_details d
		JOIN sales_invoices i ON i.id = d.sales_invoice_id
		WHERE i.business_id = ?
		  AND d.product_id = ?
		  AND i.current_status != 'Void'
		  AND i.invoice_date >= ?
		ORDER BY i.invoice_date, d.id
	`, businessId, productId, from).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	lines := make([]*ConsumingLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, &ConsumingLine{
			Ref:         models.LineRef{Type: models.ConsumingReferenceTypeInvoice, DetailId: row.DetailId},
			BusinessId:  businessId,
			DocId:       row.DocId,
			ProductId:   row.ProductId,
			WarehouseId: row.WarehouseId,
			DocDate:     row.DocDate,
			Qty:         row.Qty,
		})
	}
	return lines, nil
}

func (r *gormCostingRepository) UpdateLineCogs(businessId string, line models.LineRef, cogs decimal.Decimal) error {
	_ = businessId // line ids are globally unique; scope is enforced upstream
	return r.tx.Model(&models.SalesInvoiceDetail{}).
		Where("id = ?", line.DetailId).
		Update("cogs", cogs).Error
}

func (r *gormCostingRepository) ProductPurchasePrice(businessId string, productId int) (decimal.Decimal, error) {
	var product models.Product
	err := r.tx.Select("purchase_price").
		Where("business_id = ?", businessId).
		First(&product, productId).Error
	if err != nil {
		return decimal.Zero, err
	}
	return product.PurchasePrice, nil
}

func (r *gormCostingRepository) CreateRecalculationRun(run *models.RecalculationRun) error {
	return r.tx.Create(run).Error
}
