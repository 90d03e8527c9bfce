package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoomeet/internal/services"
	"github.com/yoockh/yoomeet/internal/utils"
)

type AgentHandler struct {
	svc services.AgentService
}

func NewAgentHandler(svc services.AgentService) *AgentHandler {
	return &AgentHandler{svc: svc}
}

func (h *AgentHandler) List(c *gin.Context) {
	rows, err := h.svc.List(c.Request.Context(), c.Query("tag"), queryLimit(c, 50, 200))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}

func (h *AgentHandler) Get(c *gin.Context) {
	a, err := h.svc.Get(c.Request.Context(), c.Param("agent_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *AgentHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var in services.AgentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AgentHandler.Create", "invalid request body", err))
		return
	}
	a, err := h.svc.Create(c.Request.Context(), userID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *AgentHandler) Update(c *gin.Context) {
	var in services.AgentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AgentHandler.Update", "invalid request body", err))
		return
	}
	a, err := h.svc.Update(c.Request.Context(), c.Param("agent_id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
