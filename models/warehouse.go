package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/costing_backend/config"
	"bitbucket.org/mmdatafocus/costing_backend/utils"
)

type Warehouse struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Address    string    `gorm:"type:text" json:"address"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWarehouse struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
}

func CreateWarehouse(ctx context.Context, input *NewWarehouse) (*Warehouse, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	warehouse := Warehouse{
		BusinessId: businessId,
		Name:       input.Name,
		Address:    input.Address,
		IsActive:   utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&warehouse).Error; err != nil {
		return nil, err
	}
	return &warehouse, nil
}
