package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/yoockh/yoomeet/internal/models"
	mongorepo "github.com/yoockh/yoomeet/internal/repositories/mongo"
	"github.com/yoockh/yoomeet/internal/utils"
)

type VoiceTurnService interface {
	Begin(ctx context.Context, userID, agentID string, audioBytes int) (*models.VoiceTurn, error)
	MarkSTT(ctx context.Context, turnID, transcript string, confidence float64, status string) error
	MarkLLM(ctx context.Context, turnID, answer, status string, processingMS int64) error
	MarkTTS(ctx context.Context, turnID, status string) error
	Fail(ctx context.Context, turnID, msg string) error
	ListByUser(ctx context.Context, userID string, limit int64) ([]models.VoiceTurn, error)
}

type voiceTurnService struct {
	turns mongorepo.VoiceTurnRepository
	ttl   time.Duration
}

func NewVoiceTurnService(turns mongorepo.VoiceTurnRepository, ttl time.Duration) VoiceTurnService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &voiceTurnService{turns: turns, ttl: ttl}
}

func (s *voiceTurnService) Begin(ctx context.Context, userID, agentID string, audioBytes int) (*models.VoiceTurn, error) {
	const op = "VoiceTurnService.Begin"

	if userID == "" || audioBytes <= 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required and audio must not be empty", nil)
	}

	now := time.Now().UTC()
	doc := &models.VoiceTurn{
		TurnID:     uuid.NewString(),
		UserID:     userID,
		AgentID:    agentID,
		AudioBytes: audioBytes,

		STTStatus: models.StagePending,
		LLMStatus: models.StagePending,
		TTSStatus: models.StagePending,

		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.turns.Insert(ctx, doc); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to insert voice turn", err)
	}
	return doc, nil
}

func (s *voiceTurnService) MarkSTT(ctx context.Context, turnID, transcript string, confidence float64, status string) error {
	const op = "VoiceTurnService.MarkSTT"
	return s.update(ctx, op, turnID, status, bson.M{
		"stt_status":     status,
		"transcript":     transcript,
		"stt_confidence": confidence,
	})
}

func (s *voiceTurnService) MarkLLM(ctx context.Context, turnID, answer, status string, processingMS int64) error {
	const op = "VoiceTurnService.MarkLLM"
	return s.update(ctx, op, turnID, status, bson.M{
		"llm_status":         status,
		"answer":             answer,
		"processing_time_ms": processingMS,
	})
}

func (s *voiceTurnService) MarkTTS(ctx context.Context, turnID, status string) error {
	const op = "VoiceTurnService.MarkTTS"
	return s.update(ctx, op, turnID, status, bson.M{"tts_status": status})
}

func (s *voiceTurnService) Fail(ctx context.Context, turnID, msg string) error {
	const op = "VoiceTurnService.Fail"
	return s.update(ctx, op, turnID, models.StageFailed, bson.M{"error": msg})
}

func (s *voiceTurnService) update(ctx context.Context, op, turnID, status string, set bson.M) error {
	if turnID == "" || status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "turn_id and status are required", nil)
	}
	if err := s.turns.Update(ctx, turnID, set); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to update voice turn", err)
	}
	return nil
}

func (s *voiceTurnService) ListByUser(ctx context.Context, userID string, limit int64) ([]models.VoiceTurn, error) {
	const op = "VoiceTurnService.ListByUser"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	out, err := s.turns.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list voice turns", err)
	}
	return out, nil
}
