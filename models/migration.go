package models

import (
	"log"

	"bitbucket.org/mmdatafocus/costing_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Account{}, &AccountJournal{}, &AccountTransaction{},
		&Bill{}, &BillDetail{}, &Business{},
		&CreditNote{}, &CreditNoteDetail{},
		&Product{},
		&RecalculationRun{},
		&SalesInvoice{}, &SalesInvoiceDetail{},
		&StockLot{}, &StockLotConsumption{},
		&Warehouse{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
