package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoomeet/internal/utils"
)

const maxOfferBytes = 64 << 10

type SessionExchanger interface {
	Exchange(ctx context.Context, offerSDP, agentID string) (string, error)
}

type RealtimeHandler struct {
	relay SessionExchanger
}

func NewRealtimeHandler(relay SessionExchanger) *RealtimeHandler {
	return &RealtimeHandler{relay: relay}
}

// Session takes a raw SDP offer and answers with the upstream SDP unchanged.
func (h *RealtimeHandler) Session(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxOfferBytes+1))
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "RealtimeHandler.Session", "failed to read offer", err))
		return
	}
	if len(body) > maxOfferBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, "RealtimeHandler.Session", "offer too large", nil))
		return
	}

	answer, err := h.relay.Exchange(c.Request.Context(), string(body), c.Query("agent_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/sdp", []byte(answer))
}
