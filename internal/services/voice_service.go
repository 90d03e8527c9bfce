package services

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoomeet/internal/models"
	"github.com/yoockh/yoomeet/internal/providers/llm"
	"github.com/yoockh/yoomeet/internal/providers/stt"
	"github.com/yoockh/yoomeet/internal/providers/tts"
	"github.com/yoockh/yoomeet/internal/utils"
)

const (
	FrameUserTranscript = "user_transcript"
	FrameTranscript     = "transcript"
	FrameAudio          = "audio"
	FrameDone           = "done"
	FrameError          = "error"

	MaxVoiceTurnBytes = 10 << 20
	defaultLanguage   = "en-US"
)

type VoiceTurnRequest struct {
	AgentID     string `json:"agent_id"`
	AudioBase64 string `json:"audio_base64"`
	Language    string `json:"language"`
}

// VoiceFrame is one server-sent event of a push-to-talk turn.
type VoiceFrame struct {
	Type       string  `json:"type"`
	TurnID     string  `json:"turn_id,omitempty"`
	Text       string  `json:"text,omitempty"`
	Audio      string  `json:"audio,omitempty"` // base64
	MimeType   string  `json:"mime_type,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Message    string  `json:"message,omitempty"`
}

type VoiceService interface {
	// Turn runs one stateless exchange. Invalid input is returned before any frame is
	// emitted; later failures emit an error frame and end the turn.
	Turn(ctx context.Context, userID string, req VoiceTurnRequest, emit func(VoiceFrame)) error
}

type voiceService struct {
	agents  AgentService
	turns   VoiceTurnService
	stt     stt.Provider
	llm     llm.Provider
	tts     tts.Provider
	persona string
	log     logrus.FieldLogger
}

func NewVoiceService(agents AgentService, turns VoiceTurnService, sttp stt.Provider, llmp llm.Provider, ttsp tts.Provider, persona string, log logrus.FieldLogger) VoiceService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &voiceService{agents: agents, turns: turns, stt: sttp, llm: llmp, tts: ttsp, persona: persona, log: log}
}

func normalizeLanguage(v string) string {
	v = strings.TrimSpace(v)
	switch v {
	case "":
		return defaultLanguage
	case "id", "id-ID":
		return "id-ID"
	case "en", "en-US":
		return "en-US"
	default:
		return v
	}
}

func decodeAudio(v string) ([]byte, error) {
	raw := strings.TrimSpace(v)
	if i := strings.Index(raw, ","); i >= 0 {
		raw = raw[i+1:] // data:audio/...;base64,
	}
	return base64.StdEncoding.DecodeString(raw)
}

func (s *voiceService) resolvePersona(ctx context.Context, agentID string) (system, language, voice string) {
	system = s.persona
	if agentID == "" {
		return system, "", ""
	}
	a, err := s.agents.Get(ctx, agentID)
	if err != nil {
		s.log.WithError(err).WithField("agent_id", agentID).Warn("agent lookup failed; using default persona")
		return system, "", ""
	}
	return a.Instructions, a.Language, a.Voice
}

func (s *voiceService) Turn(ctx context.Context, userID string, req VoiceTurnRequest, emit func(VoiceFrame)) error {
	const op = "VoiceService.Turn"

	if strings.TrimSpace(req.AudioBase64) == "" {
		return utils.E(utils.CodeInvalidArgument, op, "audio_base64 is required", nil)
	}
	audio, err := decodeAudio(req.AudioBase64)
	if err != nil || len(audio) == 0 {
		return utils.E(utils.CodeInvalidArgument, op, "invalid audio_base64", err)
	}
	if len(audio) > MaxVoiceTurnBytes {
		return utils.E(utils.CodeInvalidArgument, op, "audio too large", nil)
	}

	turn, err := s.turns.Begin(ctx, userID, req.AgentID, len(audio))
	if err != nil {
		return err
	}
	log := s.log.WithFields(logrus.Fields{"turn_id": turn.TurnID, "agent_id": req.AgentID})

	fail := func(stage string, err error) error {
		log.WithError(err).Errorf("%s failed", stage)
		_ = s.turns.Fail(ctx, turn.TurnID, stage+" failed")
		emit(VoiceFrame{Type: FrameError, TurnID: turn.TurnID, Message: stage + " failed"})
		return utils.E(utils.CodeUpstream, op, stage+" failed", err)
	}

	system, agentLang, voice := s.resolvePersona(ctx, req.AgentID)
	language := normalizeLanguage(req.Language)
	if req.Language == "" && agentLang != "" {
		language = normalizeLanguage(agentLang)
	}

	// STT
	_ = s.turns.MarkSTT(ctx, turn.TurnID, "", 0, models.StageProcessing)
	text, conf, err := s.stt.Transcribe(ctx, audio, language)
	if err != nil {
		_ = s.turns.MarkSTT(ctx, turn.TurnID, "", 0, models.StageFailed)
		return fail("stt", err)
	}
	_ = s.turns.MarkSTT(ctx, turn.TurnID, text, conf, models.StageDone)
	emit(VoiceFrame{Type: FrameUserTranscript, TurnID: turn.TurnID, Text: text, Confidence: conf})

	if strings.TrimSpace(text) == "" {
		_ = s.turns.MarkLLM(ctx, turn.TurnID, "", models.StageDone, 0)
		_ = s.turns.MarkTTS(ctx, turn.TurnID, models.StageDone)
		emit(VoiceFrame{Type: FrameDone, TurnID: turn.TurnID})
		return nil
	}

	// LLM
	start := time.Now()
	_ = s.turns.MarkLLM(ctx, turn.TurnID, "", models.StageProcessing, 0)
	chunks, errs := s.llm.StreamAnswer(ctx, system, text)

	var full strings.Builder
	for chunk := range chunks {
		full.WriteString(chunk)
		emit(VoiceFrame{Type: FrameTranscript, TurnID: turn.TurnID, Text: chunk})
	}
	if err := <-errs; err != nil {
		_ = s.turns.MarkLLM(ctx, turn.TurnID, full.String(), models.StageFailed, time.Since(start).Milliseconds())
		return fail("llm", err)
	}
	answer := strings.TrimSpace(full.String())
	_ = s.turns.MarkLLM(ctx, turn.TurnID, answer, models.StageDone, time.Since(start).Milliseconds())

	// TTS
	if answer != "" {
		_ = s.turns.MarkTTS(ctx, turn.TurnID, models.StageProcessing)
		speech, mime, err := s.tts.Synthesize(ctx, answer, language, voice)
		if err != nil {
			_ = s.turns.MarkTTS(ctx, turn.TurnID, models.StageFailed)
			return fail("tts", err)
		}
		emit(VoiceFrame{
			Type:     FrameAudio,
			TurnID:   turn.TurnID,
			Audio:    base64.StdEncoding.EncodeToString(speech),
			MimeType: mime,
		})
	}
	_ = s.turns.MarkTTS(ctx, turn.TurnID, models.StageDone)

	log.WithField("processing_ms", time.Since(start).Milliseconds()).Info("voice turn done")
	emit(VoiceFrame{Type: FrameDone, TurnID: turn.TurnID, Text: answer})
	return nil
}
