package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/yoockh/yoomeet/internal/models"
)

type TranscriptRepository interface {
	// ReplaceForMeeting swaps the whole transcript of a meeting in one transaction, so
	// a repeated hand-off does not duplicate rows.
	ReplaceForMeeting(ctx context.Context, meetingID string, entries []models.TranscriptEntry) error
	ListByMeeting(ctx context.Context, meetingID string, limit int) ([]models.TranscriptEntry, error)
}

type transcriptRepo struct {
	db *gorm.DB
}

func NewTranscriptRepo(db *gorm.DB) TranscriptRepository {
	return &transcriptRepo{db: db}
}

func (r *transcriptRepo) ReplaceForMeeting(ctx context.Context, meetingID string, entries []models.TranscriptEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("meeting_id = ?", meetingID).Delete(&models.TranscriptEntry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.CreateInBatches(entries, 200).Error
	})
}

func (r *transcriptRepo) ListByMeeting(ctx context.Context, meetingID string, limit int) ([]models.TranscriptEntry, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []models.TranscriptEntry
	err := r.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("seq ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
