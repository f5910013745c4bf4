package handlers

import (
  "errors"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/services"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

var errMissingFilter = errors.New("question_id or session_id query parameter required")

type BiasHandler struct {
  log     *logger.Logger
  biasSvc services.BiasService
}

func NewBiasHandler(log *logger.Logger, biasSvc services.BiasService) *BiasHandler {
  return &BiasHandler{
    log:     log.With("handler", "BiasHandler"),
    biasSvc: biasSvc,
  }
}

// GET /api/bias/report?question_id=...|session_id=...
// Latest stored bias results for one question, or for every question a
// session touched.
func (h *BiasHandler) GetReport(c *gin.Context) {
  if raw := c.Query("question_id"); raw != "" {
    questionID, err := uuid.Parse(raw)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "invalid_question_id", err)
      return
    }
    result, err := h.biasSvc.ReportForQuestion(c.Request.Context(), questionID)
    if err != nil {
      RespondServiceError(c, err)
      return
    }
    RespondOK(c, gin.H{"results": resultsOrEmpty(result)})
    return
  }
  if raw := c.Query("session_id"); raw != "" {
    sessionID, err := uuid.Parse(raw)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
      return
    }
    results, err := h.biasSvc.ReportForSession(c.Request.Context(), sessionID)
    if err != nil {
      RespondServiceError(c, err)
      return
    }
    RespondOK(c, gin.H{"results": results})
    return
  }
  RespondError(c, http.StatusBadRequest, "missing_filter", errMissingFilter)
}

// POST /api/bias/scan/:question_id
// Run a DIF scan for one question immediately.
func (h *BiasHandler) ScanQuestion(c *gin.Context) {
  questionID, err := uuid.Parse(c.Param("question_id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_question_id", err)
    return
  }
  result, err := h.biasSvc.ScanQuestion(c.Request.Context(), questionID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"result": result})
}

func resultsOrEmpty(result *types.BiasDetectionResult) []*types.BiasDetectionResult {
  if result == nil {
    return []*types.BiasDetectionResult{}
  }
  return []*types.BiasDetectionResult{result}
}
