package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/costing_backend/config"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Business struct {
	ID        uuid.UUID `gorm:"type:char(36);primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:100" json:"email"`
	Timezone  string    `gorm:"size:100;default:UTC" json:"timezone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusiness struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email"`
	Timezone string `json:"timezone"`
}

func (b *Business) BeforeCreate(tx *gorm.DB) error {
	_ = tx
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {
	business := Business{
		Name:     input.Name,
		Email:    input.Email,
		Timezone: input.Timezone,
	}
	if business.Timezone == "" {
		business.Timezone = "UTC"
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

func GetBusinessById2(tx *gorm.DB, businessId string) (*Business, error) {
	var business Business
	if err := tx.Where("id = ?", businessId).First(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}
