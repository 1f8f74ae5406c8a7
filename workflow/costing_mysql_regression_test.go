package workflow_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/costing_backend/config"
	"bitbucket.org/mmdatafocus/costing_backend/models"
	"bitbucket.org/mmdatafocus/costing_backend/utils"
	"bitbucket.org/mmdatafocus/costing_backend/workflow"
	"github.com/shopspring/decimal"
)

// Runs the backdated-purchase scenario end to end against real MySQL:
// buy 100@10 on Jan 1, sell 30 on Jan 5 and 80 on Jan 10 (10 short),
// then post a backdated bill of 50@12 on Jan 3. The create itself must
// trigger the recalculation that repairs the Jan 10 line to 820.
func TestBackdatedBillRecalculatesCogsMySQL(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "costing_test")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	logger := config.GetLogger()

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{Name: "FIFO Co", Timezone: "UTC"})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	businessId := biz.ID.String()
	ctx = utils.SetBusinessIdInContext(ctx, businessId)

	warehouse, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Main"})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}

	cogsAccount := models.Account{
		BusinessId: businessId,
		Name:       "Cost of Goods Sold",
		Code:       "5001",
		MainType:   models.AccountMainTypeExpense,
		DetailType: models.AccountDetailTypeCostOfGoodsSold,
	}
	inventoryAccount := models.Account{
		BusinessId: businessId,
		Name:       "Inventory Asset",
		Code:       "1401",
		MainType:   models.AccountMainTypeAsset,
		DetailType: models.AccountDetailTypeStock,
	}
	if err := config.GetDB().Create(&cogsAccount).Error; err != nil {
		t.Fatalf("create cogs account: %v", err)
	}
	if err := config.GetDB().Create(&inventoryAccount).Error; err != nil {
		t.Fatalf("create inventory account: %v", err)
	}

	tx := config.BeginMutation(ctx)
	product, err := workflow.CreateProduct(tx, logger, businessId, &models.NewProduct{
		Name:               "Widget",
		Sku:                "WID-1",
		PurchasePrice:      decimal.NewFromInt(10),
		PurchaseAccountId:  cogsAccount.ID,
		InventoryAccountId: inventoryAccount.ID,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		t.Fatalf("commit product: %v", err)
	}

	jan := func(day int) time.Time { return time.Date(2024, time.January, day, 0, 0, 0, 0, time.UTC) }

	postBill := func(number string, day int, qty, rate int64) {
		t.Helper()
		tx := config.BeginMutation(ctx)
		_, err := workflow.CreateBill(tx, logger, businessId, &models.NewBill{
			SupplierName: "Acme Supply",
			BillNumber:   number,
			BillDate:     jan(day),
			WarehouseId:  warehouse.ID,
			Details: []models.NewBillDetail{{
				ProductId:      product.ID,
				DetailQty:      decimal.NewFromInt(qty),
				DetailUnitRate: decimal.NewFromInt(rate),
			}},
		})
		if err != nil {
			t.Fatalf("CreateBill %s: %v", number, err)
		}
		if err := tx.Commit().Error; err != nil {
			t.Fatalf("commit bill %s: %v", number, err)
		}
	}

	invoiceIds := map[string]int{}
	postInvoice := func(number string, day int, qty int64) []string {
		t.Helper()
		tx := config.BeginMutation(ctx)
		invoice, warnings, err := workflow.CreateSalesInvoice(tx, logger, businessId, &models.NewSalesInvoice{
			CustomerName:  "Retail Buyer",
			InvoiceNumber: number,
			InvoiceDate:   jan(day),
			WarehouseId:   warehouse.ID,
			Details: []models.NewSalesInvoiceDetail{{
				ProductId: product.ID,
				DetailQty: decimal.NewFromInt(qty),
			}},
		})
		if err != nil {
			t.Fatalf("CreateSalesInvoice %s: %v", number, err)
		}
		if err := tx.Commit().Error; err != nil {
			t.Fatalf("commit invoice %s: %v", number, err)
		}
		invoiceIds[number] = invoice.ID
		return warnings
	}

	lineCogs := func(invoiceNumber string) decimal.Decimal {
		t.Helper()
		invoice, err := utils.FetchModel[models.SalesInvoice](ctx, businessId, invoiceIds[invoiceNumber], "Details")
		if err != nil {
			t.Fatalf("fetch invoice %s: %v", invoiceNumber, err)
		}
		if len(invoice.Details) != 1 {
			t.Fatalf("invoice %s: expected 1 detail, got %d", invoiceNumber, len(invoice.Details))
		}
		return invoice.Details[0].Cogs
	}

	postBill("BILL-001", 1, 100, 10)

	if warnings := postInvoice("INV-001", 5, 30); len(warnings) != 0 {
		t.Fatalf("INV-001 warnings: %v", warnings)
	}
	if got := lineCogs("INV-001"); !got.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("INV-001 cogs = %s, want 300", got)
	}

	warnings := postInvoice("INV-002", 10, 80)
	if len(warnings) != 1 || !strings.Contains(warnings[0], "qty_missing=10") {
		t.Fatalf("INV-002 warnings = %v, want one shortfall of 10", warnings)
	}
	if got := lineCogs("INV-002"); !got.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("INV-002 cogs = %s, want 700", got)
	}

	// Backdated purchase: the create path must detect later consumptions
	// and replay everything from Jan 3.
	postBill("BILL-002", 3, 50, 12)

	if got := lineCogs("INV-001"); !got.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("INV-001 cogs after recalc = %s, want 300", got)
	}
	if got := lineCogs("INV-002"); !got.Equal(decimal.NewFromInt(820)) {
		t.Fatalf("INV-002 cogs after recalc = %s, want 820", got)
	}

	var run models.RecalculationRun
	err = config.GetDB().
		Where("business_id = ? AND product_id = ? AND reason = ?", businessId, product.ID, "backdated-purchase").
		First(&run).Error
	if err != nil {
		t.Fatalf("fetch recalculation run: %v", err)
	}
	if run.LinesReplayed != 2 || run.WarningCount != 0 {
		t.Fatalf("run replayed=%d warnings=%d, want 2 and 0", run.LinesReplayed, run.WarningCount)
	}

	levels, err := workflow.GetProductStockLevels(config.GetDB(), businessId, product.ID)
	if err != nil {
		t.Fatalf("GetProductStockLevels: %v", err)
	}
	if len(levels) != 1 {
		t.Fatalf("stock levels: expected 1 warehouse, got %d", len(levels))
	}
	if !levels[0].OnHandQty.Equal(decimal.NewFromInt(40)) || !levels[0].StockValue.Equal(decimal.NewFromInt(480)) {
		t.Fatalf("stock level = qty %s value %s, want 40 and 480", levels[0].OnHandQty, levels[0].StockValue)
	}

	// The repost after recalculation must debit the purchase account and
	// credit the inventory account with the repaired COGS.
	var journal models.AccountJournal
	err = config.GetDB().Preload("Transactions").
		Where("business_id = ? AND reference_type = ? AND reference_id = ?",
			businessId, string(models.ConsumingReferenceTypeInvoice), invoiceIds["INV-002"]).
		First(&journal).Error
	if err != nil {
		t.Fatalf("fetch INV-002 journal: %v", err)
	}
	if len(journal.Transactions) != 2 {
		t.Fatalf("INV-002 journal has %d transactions, want 2", len(journal.Transactions))
	}
	for _, txn := range journal.Transactions {
		switch txn.AccountId {
		case cogsAccount.ID:
			if !txn.Debit.Equal(decimal.NewFromInt(820)) {
				t.Fatalf("purchase account debit = %s, want 820", txn.Debit)
			}
		case inventoryAccount.ID:
			if !txn.Credit.Equal(decimal.NewFromInt(820)) {
				t.Fatalf("inventory account credit = %s, want 820", txn.Credit)
			}
		default:
			t.Fatalf("journal hit unexpected account %d", txn.AccountId)
		}
	}

	warehouses, err := utils.FetchAllModels[models.Warehouse](ctx, businessId)
	if err != nil {
		t.Fatalf("FetchAllModels warehouses: %v", err)
	}
	if len(warehouses) != 1 || warehouses[0].ID != warehouse.ID {
		t.Fatalf("warehouses = %v, want the one created above", warehouses)
	}

	if err := utils.ValidateResourceId[models.Product](ctx, businessId, product.ID); err != nil {
		t.Fatalf("ValidateResourceId existing product: %v", err)
	}
	if err := utils.ValidateResourceId[models.Product](ctx, businessId, product.ID+999); err != utils.ErrorRecordNotFound {
		t.Fatalf("ValidateResourceId missing product = %v, want record not found", err)
	}
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("costing-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=costing_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
