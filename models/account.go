package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Account struct {
	ID         int               `gorm:"primary_key" json:"id"`
	BusinessId string            `gorm:"index;not null" json:"business_id"`
	Name       string            `gorm:"size:100;not null" json:"name"`
	Code       string            `gorm:"size:50;index" json:"code"`
	MainType   AccountMainType   `gorm:"type:enum('Asset','Income','Expense');not null" json:"main_type"`
	DetailType AccountDetailType `gorm:"type:enum('Stock','Income','CostOfGoodsSold');not null" json:"detail_type"`
	IsActive   *bool             `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// AccountJournal is one posting event (here: the COGS posting of a sale).
type AccountJournal struct {
	ID            int                  `gorm:"primary_key" json:"id"`
	BusinessId    string               `gorm:"index;not null" json:"business_id"`
	JournalDate   time.Time            `gorm:"not null" json:"journal_date"`
	ReferenceType string               `gorm:"size:20;index:idx_journal_ref,priority:1;not null" json:"reference_type"`
	ReferenceID   int                  `gorm:"index:idx_journal_ref,priority:2;not null" json:"reference_id"`
	Description   string               `gorm:"size:255" json:"description"`
	Transactions  []AccountTransaction `gorm:"foreignKey:AccountJournalId" json:"transactions"`
	CreatedAt     time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type AccountTransaction struct {
	ID               int             `gorm:"primary_key" json:"id"`
	BusinessId       string          `gorm:"index;not null" json:"business_id"`
	AccountJournalId int             `gorm:"index;not null" json:"account_journal_id"`
	AccountId        int             `gorm:"index;not null" json:"account_id"`
	Debit            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit"`
	Credit           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// DeleteJournalByReference removes a posting and its lines. Used before a
// repost so a reference never carries two journals.
func DeleteJournalByReference(tx *gorm.DB, businessId string, referenceType string, referenceId int) error {
	var journals []AccountJournal
	err := tx.Where("business_id = ? AND reference_type = ? AND reference_id = ?",
		businessId, referenceType, referenceId).Find(&journals).Error
	if err != nil {
		return err
	}
	for _, journal := range journals {
		if err := tx.Where("account_journal_id = ?", journal.ID).Delete(&AccountTransaction{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&AccountJournal{}, journal.ID).Error; err != nil {
			return err
		}
	}
	return nil
}
