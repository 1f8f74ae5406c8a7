package models

import "errors"

// StockLotSourceType identifies the kind of document that created a lot.
type StockLotSourceType string

const (
	StockLotSourcePurchase     StockLotSourceType = "PURCHASE"
	StockLotSourceOpeningStock StockLotSourceType = "OPENING_STOCK"
	StockLotSourceReturn       StockLotSourceType = "RETURN"
)

func (t *StockLotSourceType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "PURCHASE":
		*t = StockLotSourcePurchase
	case "OPENING_STOCK":
		*t = StockLotSourceOpeningStock
	case "RETURN":
		*t = StockLotSourceReturn
	default:
		return errors.New("invalid stock lot source type")
	}
	return nil
}

// SourceReferenceType identifies the document table a lot points back to.
type SourceReferenceType string

const (
	SourceReferenceTypeBill         SourceReferenceType = "BL"
	SourceReferenceTypeOpeningStock SourceReferenceType = "OS"
	SourceReferenceTypeCreditNote   SourceReferenceType = "CN"
)

// ConsumingReferenceType identifies the line table a consumption points to.
type ConsumingReferenceType string

const (
	ConsumingReferenceTypeInvoice ConsumingReferenceType = "IV"
)

type SalesInvoiceStatus string

const (
	SalesInvoiceStatusDraft     SalesInvoiceStatus = "Draft"
	SalesInvoiceStatusConfirmed SalesInvoiceStatus = "Confirmed"
	SalesInvoiceStatusVoid      SalesInvoiceStatus = "Void"
)

type BillStatus string

const (
	BillStatusDraft     BillStatus = "Draft"
	BillStatusConfirmed BillStatus = "Confirmed"
	BillStatusVoid      BillStatus = "Void"
)

type AccountMainType string

const (
	AccountMainTypeAsset   AccountMainType = "Asset"
	AccountMainTypeIncome  AccountMainType = "Income"
	AccountMainTypeExpense AccountMainType = "Expense"
)

type AccountDetailType string

const (
	AccountDetailTypeStock           AccountDetailType = "Stock"
	AccountDetailTypeIncome          AccountDetailType = "Income"
	AccountDetailTypeCostOfGoodsSold AccountDetailType = "CostOfGoodsSold"
)
