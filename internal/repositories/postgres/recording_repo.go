package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yoockh/yoomeet/internal/models"
	"github.com/yoockh/yoomeet/internal/utils"
)

type RecordingRepository interface {
	Insert(ctx context.Context, rec *models.Recording) error
	LatestByMeeting(ctx context.Context, meetingID string) (*models.Recording, error)
}

type recordingRepo struct {
	db *gorm.DB
}

func NewRecordingRepo(db *gorm.DB) RecordingRepository {
	return &recordingRepo{db: db}
}

func (r *recordingRepo) Insert(ctx context.Context, rec *models.Recording) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *recordingRepo) LatestByMeeting(ctx context.Context, meetingID string) (*models.Recording, error) {
	var row models.Recording
	err := r.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("uploaded_at DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
