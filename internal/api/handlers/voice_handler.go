package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoomeet/internal/services"
	"github.com/yoockh/yoomeet/internal/utils"
)

type VoiceHandler struct {
	svc   services.VoiceService
	turns services.VoiceTurnService
}

func NewVoiceHandler(svc services.VoiceService, turns services.VoiceTurnService) *VoiceHandler {
	return &VoiceHandler{svc: svc, turns: turns}
}

// Turn streams one push-to-talk exchange as server-sent events.
func (h *VoiceHandler) Turn(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.VoiceTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "VoiceHandler.Turn", "invalid request body", err))
		return
	}

	started := false
	emit := func(f services.VoiceFrame) {
		if !started {
			started = true
			c.Header("Cache-Control", "no-cache")
			c.Header("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
		}
		c.SSEvent(f.Type, f)
		c.Writer.Flush()
	}

	if err := h.svc.Turn(c.Request.Context(), userID, req, emit); err != nil && !started {
		writeError(c, err)
	}
}

// History lists the caller's recent push-to-talk turns still inside the buffer TTL.
func (h *VoiceHandler) History(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	rows, err := h.turns.ListByUser(c.Request.Context(), userID, int64(queryLimit(c, 20, 100)))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}
