package handlers

import (
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/services"
)

type InterviewHandler struct {
  log          *logger.Logger
  interviewSvc services.InterviewService
}

func NewInterviewHandler(log *logger.Logger, interviewSvc services.InterviewService) *InterviewHandler {
  return &InterviewHandler{
    log:          log.With("handler", "InterviewHandler"),
    interviewSvc: interviewSvc,
  }
}

// POST /api/sessions
// Create an adaptive session for a candidate.
func (h *InterviewHandler) StartSession(c *gin.Context) {
  var input services.StartSessionInput
  if err := c.ShouldBindJSON(&input); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  session, err := h.interviewSvc.StartSession(c.Request.Context(), input)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  c.JSON(http.StatusCreated, gin.H{"session": session})
}

// GET /api/sessions/:id
func (h *InterviewHandler) GetSession(c *gin.Context) {
  sessionID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
    return
  }
  session, err := h.interviewSvc.GetSession(c.Request.Context(), sessionID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"session": session})
}

// POST /api/sessions/:id/next
// Select the next question, or report why the session terminated.
func (h *InterviewHandler) NextQuestion(c *gin.Context) {
  sessionID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
    return
  }
  result, err := h.interviewSvc.RequestNextQuestion(c.Request.Context(), sessionID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, result)
}

// POST /api/sessions/:id/responses
// Record an answer. Replays of an already-recorded answer return the stored
// result unchanged.
func (h *InterviewHandler) SubmitResponse(c *gin.Context) {
  sessionID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
    return
  }
  var input services.SubmitResponseInput
  if err := c.ShouldBindJSON(&input); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  input.SessionID = sessionID
  result, err := h.interviewSvc.SubmitResponse(c.Request.Context(), input)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, result)
}

// POST /api/sessions/:id/cancel
func (h *InterviewHandler) CancelSession(c *gin.Context) {
  sessionID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
    return
  }
  if err := h.interviewSvc.CancelSession(c.Request.Context(), sessionID); err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"cancelled": true})
}
