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

// CreateProduct creates a product and, for a tracked product, one
// OPENING_STOCK lot per opening stock entry. The lots carry the product id
// as their source reference since no purchase document exists.
func CreateProduct(tx *gorm.DB, logger *logrus.Logger, businessId string, input *models.NewProduct) (*models.Product, error) {
	business, err := models.GetBusinessById2(tx, businessId)
	if err != nil {
		return nil, errors.New("business not found")
	}

	product := models.Product{
		BusinessId:         businessId,
		Name:               input.Name,
		Sku:                input.Sku,
		Barcode:            input.Barcode,
		SalesPrice:         input.SalesPrice,
		PurchasePrice:      input.PurchasePrice,
		SalesAccountId:     input.SalesAccountId,
		PurchaseAccountId:  input.PurchaseAccountId,
		InventoryAccountId: input.InventoryAccountId,
		TrackInventory:     input.TrackInventory,
		IsActive:           utils.NewTrue(),
	}
	if product.TrackInventory == nil {
		product.TrackInventory = utils.NewTrue()
	}
	if err := tx.Create(&product).Error; err != nil {
		config.LogError(logger, "productWorkflow.go", "CreateProduct", "CreateProduct", input.Name, err)
		return nil, err
	}

	if !*product.TrackInventory {
		return &product, nil
	}

	repo := NewGormRepository(tx)
	cid := correlationIdOf(tx)
	for _, opening := range input.OpeningStocks {
		if err := validate.Struct(opening); err != nil {
			return nil, err
		}
		if !opening.Qty.GreaterThan(decimal.Zero) {
			return nil, fmt.Errorf("opening stock qty must be positive for warehouse_id=%d", opening.WarehouseId)
		}
		var warehouse models.Warehouse
		if err := tx.Where("business_id = ?", businessId).First(&warehouse, opening.WarehouseId).Error; err != nil {
			return nil, errors.New("warehouse not found")
		}

		lotDate := opening.Date
		if lotDate.IsZero() {
			lotDate = time.Now()
		}
		lotDate, err = utils.ConvertToDate(lotDate, business.Timezone)
		if err != nil {
			return nil, err
		}
		sequence, err := repo.NextLotSequence(businessId, product.ID)
		if err != nil {
			return nil, err
		}
		err = repo.CreateLot(&models.StockLot{
			BusinessId:    businessId,
			WarehouseId:   opening.WarehouseId,
			ProductId:     product.ID,
			SourceType:    models.StockLotSourceOpeningStock,
			SourceRefType: models.SourceReferenceTypeOpeningStock,
			SourceRefId:   product.ID,
			LotDate:       lotDate,
			Sequence:      sequence,
			UnitCost:      opening.UnitValue,
			InitialQty:    opening.Qty,
			RemainingQty:  opening.Qty,
			CorrelationId: cid,
		})
		if err != nil {
			return nil, err
		}
	}
	return &product, nil
}

// ProductStockLevel is one warehouse's position for a product: remaining
// units across open lots and their value at lot cost.
type ProductStockLevel struct {
	WarehouseId int             `json:"warehouse_id"`
	OnHandQty   decimal.Decimal `json:"on_hand_qty"`
	StockValue  decimal.Decimal `json:"stock_value"`
}

// GetProductStockLevels sums open lots per warehouse.
func GetProductStockLevels(tx *gorm.DB, businessId string, productId int) ([]ProductStockLevel, error) {
	levels := make([]ProductStockLevel, 0)
	err := tx.Raw(`
		SELECT warehouse_id,
			SUM(remaining_qty) AS on_hand_qty,
			SUM(remaining_qty * unit_cost) AS stock_value
		FROM stock_lots
		WHERE business_id = ? AND product_id = ? AND remaining_qty > 0
		GROUP BY warehouse_id
		ORDER BY warehouse_id`,
		businessId, productId).Scan(&levels).Error
	if err != nil {
		return nil, err
	}
	return levels, nil
}
