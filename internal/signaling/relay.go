package signaling

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoomeet/internal/models"
	"github.com/yoockh/yoomeet/internal/utils"
)

// AgentSource is the read side of the agent store.
type AgentSource interface {
	Get(ctx context.Context, agentID string) (*models.Agent, error)
}

// Persona is the fallback used when no agent is named or found.
type Persona struct {
	Instructions string
	Voice        string
}

// Relay exchanges a browser offer for an upstream answer.
type Relay struct {
	agents   AgentSource
	upstream Upstream
	model    string
	fallback Persona
	log      logrus.FieldLogger
}

func NewRelay(agents AgentSource, upstream Upstream, model string, fallback Persona, log logrus.FieldLogger) *Relay {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Relay{agents: agents, upstream: upstream, model: model, fallback: fallback, log: log}
}

func (r *Relay) Exchange(ctx context.Context, offerSDP, agentID string) (string, error) {
	const op = "Relay.Exchange"

	if strings.TrimSpace(offerSDP) == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "offer sdp is required", nil)
	}

	session := SessionConfig{
		Type:         "realtime",
		Model:        r.model,
		Instructions: r.fallback.Instructions,
		Audio:        SessionAudio{Output: SessionOutput{Voice: r.fallback.Voice}},
	}
	if a := r.agent(ctx, agentID); a != nil {
		if a.Instructions != "" {
			session.Instructions = a.Instructions
		}
		if a.Voice != "" {
			session.Audio.Output.Voice = a.Voice
		}
	}

	answer, err := r.upstream.CreateCall(ctx, offerSDP, session)
	if err != nil {
		r.log.WithError(err).WithField("agent_id", agentID).Error("realtime session exchange failed")
		return "", err
	}
	return answer, nil
}

// agent returns nil when the default persona should be used.
func (r *Relay) agent(ctx context.Context, agentID string) *models.Agent {
	if agentID == "" || r.agents == nil {
		return nil
	}
	a, err := r.agents.Get(ctx, agentID)
	if err == nil {
		return a
	}
	log := r.log.WithField("agent_id", agentID)
	if utils.IsCode(err, utils.CodeNotFound) || errors.Is(err, utils.ErrNotFound) {
		log.Debug("agent not found; using default persona")
	} else {
		log.WithError(err).Warn("agent lookup failed; using default persona")
	}
	return nil
}
