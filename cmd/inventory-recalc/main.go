package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/costing_backend/config"
	"bitbucket.org/mmdatafocus/costing_backend/models"
	"bitbucket.org/mmdatafocus/costing_backend/workflow"
	"github.com/joho/godotenv"
)

// Replays FIFO costing for one product, or every tracked product of a
// business, from a given date. Used after data fixes done outside the API.
func main() {
	businessID := flag.String("business-id", "", "Business id (uuid string). Required.")
	productID := flag.Int("product-id", 0, "Optional: recalculate only one product. If 0, recalculates every tracked product of the business.")
	from := flag.String("from", "", "Start date (YYYY-MM-DD). Required.")
	flag.Parse()

	_ = godotenv.Load()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "-business-id is required")
		os.Exit(1)
	}
	fromDate, err := time.Parse("2006-01-02", strings.TrimSpace(*from))
	if err != nil {
		fmt.Fprintln(os.Stderr, "-from must be a date in YYYY-MM-DD form")
		os.Exit(1)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	logger := config.GetLogger()

	productIds := make([]int, 0)
	if *productID > 0 {
		productIds = append(productIds, *productID)
	} else {
		var products []models.Product
		err := db.Where("business_id = ? AND track_inventory = true", *businessID).
			Order("id").Find(&products).Error
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list products: %v\n", err)
			os.Exit(1)
		}
		for _, product := range products {
			productIds = append(productIds, product.ID)
		}
	}
	if len(productIds) == 0 {
		fmt.Fprintln(os.Stderr, "no products found to recalculate")
		return
	}

	for _, productId := range productIds {
		result, err := workflow.RunManualRecalculation(ctx, db, logger, *businessID, productId, fromDate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "product %d: recalculation failed: %v\n", productId, err)
			os.Exit(1)
		}
		fmt.Printf("product %d: replayed %d line(s), %d warning(s)\n",
			productId, result.LinesReplayed, result.WarningCount)
	}
}
