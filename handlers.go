package main

import (
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/costing_backend/config"
	"bitbucket.org/mmdatafocus/costing_backend/models"
	"bitbucket.org/mmdatafocus/costing_backend/utils"
	"bitbucket.org/mmdatafocus/costing_backend/workflow"
	"github.com/gin-gonic/gin"
)

func requireBusinessId(c *gin.Context) (string, bool) {
	businessId, ok := utils.GetBusinessIdFromContext(c.Request.Context())
	if !ok || businessId == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return businessId, true
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func createBusinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewBusiness
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, utils.ProcessValidationErrors(err))
			return
		}
		business, err := models.CreateBusiness(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, business)
	}
}

func createWarehouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireBusinessId(c); !ok {
			return
		}
		var input models.NewWarehouse
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, utils.ProcessValidationErrors(err))
			return
		}
		warehouse, err := models.CreateWarehouse(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, warehouse)
	}
}

func listWarehousesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := requireBusinessId(c)
		if !ok {
			return
		}
		warehouses, err := utils.FetchAllModels[models.Warehouse](c.Request.Context(), businessId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, warehouses)
	}
}

func createProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := requireBusinessId(c)
		if !ok {
			return
		}
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, utils.ProcessValidationErrors(err))
			return
		}

		logger := config.GetLogger()
		tx := config.BeginMutation(c.Request.Context())
		if tx.Error != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
			return
		}
		defer tx.Rollback()

		product, err := workflow.CreateProduct(tx, logger, businessId, &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := tx.Commit().Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

func productStockLevelsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := requireBusinessId(c)
		if !ok {
			return
		}
		productId, ok := pathId(c, "id")
		if !ok {
			return
		}
		if err := utils.ValidateResourceId[models.Product](c.Request.Context(), businessId, productId); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		levels, err := workflow.GetProductStockLevels(config.GetDB(), businessId, productId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"product_id": productId, "stock_levels": levels})
	}
}

func createSalesInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := requireBusinessId(c)
		if !ok {
			return
		}
		var input models.NewSalesInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, utils.ProcessValidationErrors(err))
			return
		}

		logger := config.GetLogger()
		tx := config.BeginMutation(c.Request.Context())
		if tx.Error != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
			return
		}
		defer tx.Rollback()

		invoice, warnings, err := workflow.CreateSalesInvoice(tx, logger, businessId, &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := tx.Commit().Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"invoice": invoice, "warnings": warnings})
	}
}

func getSalesInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := requireBusinessId(c)
		if !ok {
			return
		}
		invoiceId, ok := pathId(c, "id")
		if !ok {
			return
		}
		invoice, err := utils.FetchModel[models.SalesInvoice](c.Request.Context(), businessId, invoiceId, "Details")
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func updateSalesInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := requireBusinessId(c)
		if !ok {
			return
		}
		invoiceId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewSalesInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, utils.ProcessValidationErrors(err))
			return
		}

		logger := config.GetLogger()
		tx := config.BeginMutation(c.Request.Context())
		if tx.Error != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
			return
		}
		defer tx.Rollback()

		invoice, warnings, err := workflow.UpdateSalesInvoice(tx, logger, businessId, invoiceId, &input)
		if err != nil {
			status := http.StatusBadRequest
			if err == utils.ErrorRecordNotFound {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		if err := tx.Commit().Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"invoice": invoice, "warnings": warnings})
	}
}

func deleteSalesInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := requireBusinessId(c)
		if !ok {
			return
		}
		invoiceId, ok := pathId(c, "id")
		if !ok {
			return
		}

		logger := config.GetLogger()
		tx := config.BeginMutation(c.Request.Context())
		if tx.Error != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
			return
		}
		defer tx.Rollback()

		if err := workflow.DeleteSalesInvoice(tx, logger, businessId, invoiceId); err != nil {
			status := http.StatusBadRequest
			if err == utils.ErrorRecordNotFound {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		if err := tx.Commit().Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted_invoice_id": invoiceId})
	}
}

func createBillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := requireBusinessId(c)
		if !ok {
			return
		}
		var input models.NewBill
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, utils.ProcessValidationErrors(err))
			return
		}

		logger := config.GetLogger()
		tx := config.BeginMutation(c.Request.Context())
		if tx.Error != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
			return
		}
		defer tx.Rollback()

		bill, err := workflow.CreateBill(tx, logger, businessId, &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := tx.Commit().Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, bill)
	}
}

func getBillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := requireBusinessId(c)
		if !ok {
			return
		}
		billId, ok := pathId(c, "id")
		if !ok {
			return
		}
		bill, err := utils.FetchModel[models.Bill](c.Request.Context(), businessId, billId, "Details")
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, bill)
	}
}

func updateBillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := requireBusinessId(c)
		if !ok {
			return
		}
		billId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewBill
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, utils.ProcessValidationErrors(err))
			return
		}

		logger := config.GetLogger()
		tx := config.BeginMutation(c.Request.Context())
		if tx.Error != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
			return
		}
		defer tx.Rollback()

		bill, err := workflow.UpdateBill(tx, logger, businessId, billId, &input)
		if err != nil {
			status := http.StatusBadRequest
			if err == utils.ErrorRecordNotFound {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		if err := tx.Commit().Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, bill)
	}
}

func deleteBillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := requireBusinessId(c)
		if !ok {
			return
		}
		billId, ok := pathId(c, "id")
		if !ok {
			return
		}

		logger := config.GetLogger()
		tx := config.BeginMutation(c.Request.Context())
		if tx.Error != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
			return
		}
		defer tx.Rollback()

		if err := workflow.DeleteBill(tx, logger, businessId, billId); err != nil {
			status := http.StatusBadRequest
			if err == utils.ErrorRecordNotFound {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		if err := tx.Commit().Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted_bill_id": billId})
	}
}

func createCreditNoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := requireBusinessId(c)
		if !ok {
			return
		}
		var input models.NewCreditNote
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, utils.ProcessValidationErrors(err))
			return
		}

		logger := config.GetLogger()
		tx := config.BeginMutation(c.Request.Context())
		if tx.Error != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
			return
		}
		defer tx.Rollback()

		note, err := workflow.CreateCreditNote(tx, logger, businessId, &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := tx.Commit().Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, note)
	}
}

func deleteCreditNoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := requireBusinessId(c)
		if !ok {
			return
		}
		creditNoteId, ok := pathId(c, "id")
		if !ok {
			return
		}

		logger := config.GetLogger()
		tx := config.BeginMutation(c.Request.Context())
		if tx.Error != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
			return
		}
		defer tx.Rollback()

		if err := workflow.DeleteCreditNote(tx, logger, businessId, creditNoteId); err != nil {
			status := http.StatusBadRequest
			if err == utils.ErrorRecordNotFound {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		if err := tx.Commit().Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted_credit_note_id": creditNoteId})
	}
}

type recalculateRequest struct {
	ProductId int       `json:"product_id" binding:"required,gt=0"`
	FromDate  time.Time `json:"from_date" binding:"required"`
}

func recalculateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := requireBusinessId(c)
		if !ok {
			return
		}
		var req recalculateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, utils.ProcessValidationErrors(err))
			return
		}

		logger := config.GetLogger()
		result, err := workflow.RunManualRecalculation(c.Request.Context(), config.GetDB(), logger, businessId, req.ProductId, req.FromDate)
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"product_id":     req.ProductId,
			"from_date":      req.FromDate.Format(time.RFC3339),
			"lines_replayed": result.LinesReplayed,
			"warning_count":  result.WarningCount,
			"affected_docs":  result.AffectedDocIds,
		})
	}
}
