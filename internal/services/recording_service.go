package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yoockh/yoomeet/internal/media"
	"github.com/yoockh/yoomeet/internal/models"
	pgrepo "github.com/yoockh/yoomeet/internal/repositories/postgres"
	"github.com/yoockh/yoomeet/internal/storage"
	"github.com/yoockh/yoomeet/internal/utils"
)

const (
	MaxRecordingBytes = 200 << 20
	signedURLTTL      = 15 * time.Minute
)

type RecordingService interface {
	Upload(ctx context.Context, userID, meetingID string, data []byte) (*models.Recording, error)
	SignedURL(ctx context.Context, userID, meetingID string) (string, error)
}

type recordingService struct {
	store      storage.ObjectStore
	recordings pgrepo.RecordingRepository
	meetings   MeetingService
}

func NewRecordingService(store storage.ObjectStore, recordings pgrepo.RecordingRepository, meetings MeetingService) RecordingService {
	return &recordingService{store: store, recordings: recordings, meetings: meetings}
}

var recordingExt = map[string]string{
	media.MimeWAV:     "wav",
	media.MimeOggOpus: "ogg",
	media.MimeWebM:    "webm",
}

func (s *recordingService) Upload(ctx context.Context, userID, meetingID string, data []byte) (*models.Recording, error) {
	const op = "RecordingService.Upload"

	if len(data) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "recording is empty", nil)
	}
	if len(data) > MaxRecordingBytes {
		return nil, utils.E(utils.CodeInvalidArgument, op, "recording too large", nil)
	}
	if _, err := s.meetings.Get(ctx, userID, meetingID); err != nil {
		return nil, err
	}

	mime := media.Sniff(data)
	ext, ok := recordingExt[mime]
	if !ok {
		return nil, utils.E(utils.CodeInvalidArgument, op, "unsupported recording format", nil)
	}

	id := uuid.NewString()
	object := fmt.Sprintf("recordings/%s/%s.%s", meetingID, id, ext)
	if _, err := s.store.Upload(ctx, object, mime, bytes.NewReader(data)); err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to store recording", err)
	}

	rec := &models.Recording{
		ID:         id,
		MeetingID:  meetingID,
		UserID:     userID,
		ObjectPath: object,
		MimeType:   mime,
		Size:       int64(len(data)),
		UploadedAt: time.Now().UTC(),
	}
	if err := s.recordings.Insert(ctx, rec); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save recording", err)
	}
	if err := s.meetings.SetRecordingURL(ctx, meetingID, object); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *recordingService) SignedURL(ctx context.Context, userID, meetingID string) (string, error) {
	const op = "RecordingService.SignedURL"

	if _, err := s.meetings.Get(ctx, userID, meetingID); err != nil {
		return "", err
	}
	rec, err := s.recordings.LatestByMeeting(ctx, meetingID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return "", utils.E(utils.CodeNotFound, op, "recording not found", err)
		}
		return "", utils.E(utils.CodeInternal, op, "failed to get recording", err)
	}
	url, err := s.store.SignedGetURL(ctx, rec.ObjectPath, signedURLTTL)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to sign recording url", err)
	}
	return url, nil
}
