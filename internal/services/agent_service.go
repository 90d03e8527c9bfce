package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"

	"github.com/yoockh/yoomeet/internal/cache"
	"github.com/yoockh/yoomeet/internal/models"
	pgrepo "github.com/yoockh/yoomeet/internal/repositories/postgres"
	"github.com/yoockh/yoomeet/internal/utils"
)

type AgentInput struct {
	Name         string          `json:"name"`
	Instructions string          `json:"instructions"`
	Voice        string          `json:"voice"`
	Language     string          `json:"language"`
	Tags         []string        `json:"tags"`
	Metadata     json.RawMessage `json:"metadata"`
}

type AgentService interface {
	Get(ctx context.Context, agentID string) (*models.Agent, error)
	List(ctx context.Context, tag string, limit int) ([]models.Agent, error)
	Create(ctx context.Context, userID string, in AgentInput) (*models.Agent, error)
	Update(ctx context.Context, agentID string, in AgentInput) (*models.Agent, error)
}

type agentService struct {
	agents pgrepo.AgentRepository
	cache  cache.Cache
	ttl    time.Duration
}

func NewAgentService(agents pgrepo.AgentRepository, c cache.Cache, ttl time.Duration) AgentService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &agentService{agents: agents, cache: c, ttl: ttl}
}

func agentKey(id string) string { return "agent:" + id }

func (s *agentService) Get(ctx context.Context, agentID string) (*models.Agent, error) {
	const op = "AgentService.Get"

	if agentID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "agent_id is required", nil)
	}
	if _, err := uuid.Parse(agentID); err != nil {
		return nil, utils.E(utils.CodeNotFound, op, "agent not found", err)
	}

	a, err := cache.Remember(ctx, s.cache, agentKey(agentID), s.ttl, func(ctx context.Context) (*models.Agent, error) {
		return s.agents.GetByID(ctx, agentID)
	})
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "agent not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get agent", err)
	}
	return a, nil
}

func (s *agentService) List(ctx context.Context, tag string, limit int) ([]models.Agent, error) {
	const op = "AgentService.List"

	rows, err := s.agents.List(ctx, strings.TrimSpace(tag), limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list agents", err)
	}
	return rows, nil
}

func (s *agentService) Create(ctx context.Context, userID string, in AgentInput) (*models.Agent, error) {
	const op = "AgentService.Create"

	if err := validateAgent(in); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, err.Error(), nil)
	}
	now := time.Now().UTC()
	a := &models.Agent{ID: uuid.NewString(), CreatedBy: userID, CreatedAt: now}
	applyAgentInput(a, in, now)

	if err := s.agents.Upsert(ctx, a); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create agent", err)
	}
	return a, nil
}

func (s *agentService) Update(ctx context.Context, agentID string, in AgentInput) (*models.Agent, error) {
	const op = "AgentService.Update"

	if err := validateAgent(in); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, err.Error(), nil)
	}
	a, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "agent not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get agent", err)
	}
	applyAgentInput(a, in, time.Now().UTC())

	if err := s.agents.Upsert(ctx, a); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to update agent", err)
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, agentKey(agentID))
	}
	return a, nil
}

func validateAgent(in AgentInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return errors.New("name is required")
	case strings.TrimSpace(in.Instructions) == "":
		return errors.New("instructions are required")
	case len(in.Metadata) > 0 && !json.Valid(in.Metadata):
		return errors.New("metadata must be valid json")
	}
	return nil
}

func applyAgentInput(a *models.Agent, in AgentInput, now time.Time) {
	a.Name = strings.TrimSpace(in.Name)
	a.Instructions = strings.TrimSpace(in.Instructions)
	a.Voice = strings.TrimSpace(in.Voice)
	a.Language = strings.TrimSpace(in.Language)
	a.Tags = pq.StringArray(in.Tags)
	if len(in.Metadata) > 0 {
		a.Metadata = datatypes.JSON(in.Metadata)
	}
	a.UpdatedAt = now
}
