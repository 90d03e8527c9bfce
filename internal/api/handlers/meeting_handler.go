package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoomeet/internal/services"
	"github.com/yoockh/yoomeet/internal/utils"
)

type MeetingHandler struct {
	meetings    services.MeetingService
	transcripts services.TranscriptService
	recordings  services.RecordingService
}

func NewMeetingHandler(meetings services.MeetingService, transcripts services.TranscriptService, recordings services.RecordingService) *MeetingHandler {
	return &MeetingHandler{meetings: meetings, transcripts: transcripts, recordings: recordings}
}

type StartMeetingRequest struct {
	AgentID string `json:"agent_id"`
}

type EndMeetingRequest struct {
	Transcript []services.TranscriptRecord `json:"transcript"`
}

func (h *MeetingHandler) Start(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	// the body is optional
	var req StartMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, utils.E(utils.CodeInvalidArgument, "MeetingHandler.Start", "invalid request body", err))
		return
	}

	m, err := h.meetings.Start(c.Request.Context(), userID, req.AgentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *MeetingHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	m, err := h.meetings.Get(c.Request.Context(), userID, c.Param("meeting_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// End answers as soon as the transcript is stored; the summary runs in the background.
func (h *MeetingHandler) End(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req EndMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "MeetingHandler.End", "invalid request body", err))
		return
	}

	m, err := h.meetings.End(c.Request.Context(), userID, c.Param("meeting_id"), req.Transcript)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, m)
}

func (h *MeetingHandler) Transcript(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	meetingID := c.Param("meeting_id")
	if _, err := h.meetings.Get(c.Request.Context(), userID, meetingID); err != nil {
		writeError(c, err)
		return
	}
	rows, err := h.transcripts.List(c.Request.Context(), meetingID, queryLimit(c, 500, 5000))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meeting_id": meetingID, "items": rows})
}

func (h *MeetingHandler) UploadRecording(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "MeetingHandler.UploadRecording", "missing multipart field 'file'", err))
		return
	}
	if fh.Size <= 0 || fh.Size > services.MaxRecordingBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, "MeetingHandler.UploadRecording", "recording too large (max 200MB)", nil))
		return
	}

	file, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, "MeetingHandler.UploadRecording", "failed to open upload", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, "MeetingHandler.UploadRecording", "failed to read upload", err))
		return
	}

	rec, err := h.recordings.Upload(c.Request.Context(), userID, c.Param("meeting_id"), data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *MeetingHandler) RecordingURL(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	url, err := h.recordings.SignedURL(c.Request.Context(), userID, c.Param("meeting_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
