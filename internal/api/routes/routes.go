package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoomeet/internal/api/handlers"
	"github.com/yoockh/yoomeet/internal/api/middleware"
)

type Deps struct {
	Auth     middleware.AuthConfig
	Realtime *handlers.RealtimeHandler
	Agent    *handlers.AgentHandler
	Meeting  *handlers.MeetingHandler
	Voice    *handlers.VoiceHandler
	WS       *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(d.Auth))

	auth.POST("/realtime/session", d.Realtime.Session)

	auth.GET("/agents", d.Agent.List)
	auth.GET("/agents/:agent_id", d.Agent.Get)
	admin := auth.Group("/", middleware.RequireAdmin())
	admin.POST("/agents", d.Agent.Create)
	admin.PUT("/agents/:agent_id", d.Agent.Update)

	auth.POST("/meetings", d.Meeting.Start)
	auth.GET("/meetings/:meeting_id", d.Meeting.Get)
	auth.POST("/meetings/:meeting_id/end", d.Meeting.End)
	auth.GET("/meetings/:meeting_id/transcript", d.Meeting.Transcript)
	auth.POST("/meetings/:meeting_id/recording", d.Meeting.UploadRecording)
	auth.GET("/meetings/:meeting_id/recording", d.Meeting.RecordingURL)

	auth.POST("/voice/turn", d.Voice.Turn)
	auth.GET("/voice/turns", d.Voice.History)

	// WebSocket
	auth.GET("/ws/meetings/:meeting_id", d.WS.MeetingStatusWS)
}
