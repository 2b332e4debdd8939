package repositories

import (
	"context"

	"github.com/anonto42/event-fanout/backend/internal/models"
	"gorm.io/gorm"
)

// DeliveryRepository records per-recipient push outcomes
type DeliveryRepository interface {
	RecordDeliveries(ctx context.Context, records []models.DeliveryRecord) error
	ListByEvent(ctx context.Context, eventID string, limit int) ([]models.DeliveryRecord, error)
}

type postgresDeliveryRepository struct {
	db *gorm.DB
}

func NewPostgresDeliveryRepository(db *gorm.DB) DeliveryRepository {
	return &postgresDeliveryRepository{db: db}
}

func (r *postgresDeliveryRepository) RecordDeliveries(ctx context.Context, records []models.DeliveryRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(records, 100).Error
}

func (r *postgresDeliveryRepository) ListByEvent(ctx context.Context, eventID string, limit int) ([]models.DeliveryRecord, error) {
	var records []models.DeliveryRecord
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
