package models

import "time"

// RecalculationRun is the audit record of one reversal+replay pass.
type RecalculationRun struct {
	ID            int       `gorm:"primary_key" json:"id"`
	BusinessId    string    `gorm:"index;not null" json:"business_id"`
	ProductId     int       `gorm:"index;not null" json:"product_id"`
	FromDate      time.Time `gorm:"not null" json:"from_date"`
	Reason        string    `gorm:"size:100;not null" json:"reason"`
	LinesReplayed int       `gorm:"default:0" json:"lines_replayed"`
	WarningCount  int       `gorm:"default:0" json:"warning_count"`
	DurationMs    int64     `gorm:"default:0" json:"duration_ms"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
