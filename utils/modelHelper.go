package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/costing_backend/config"
)

/* DB fetching */

// fetch model from db
// (ctx's business_id is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, businessId string, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch all models from db
// (ctx's business_id is used in query's WHERE)
func FetchAllModels[T any](ctx context.Context, businessId string, associations ...string) ([]*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return results, nil
}

// ValidateResourceId checks that a row of model T with the given id exists
// for the business.
func ValidateResourceId[T any](ctx context.Context, businessId string, id int) error {
	db := config.GetDB()
	var count int64
	var model T
	err := db.WithContext(ctx).Model(&model).
		Where("business_id = ? AND id = ?", businessId, id).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrorRecordNotFound
	}
	return nil
}
