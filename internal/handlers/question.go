package handlers

import (
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/services"
)

type QuestionHandler struct {
  log     *logger.Logger
  bankSvc services.QuestionBankService
}

func NewQuestionHandler(log *logger.Logger, bankSvc services.QuestionBankService) *QuestionHandler {
  return &QuestionHandler{
    log:     log.With("handler", "QuestionHandler"),
    bankSvc: bankSvc,
  }
}

// POST /api/questions
// Ingest one or more calibrated items. The whole batch is rejected if any
// item carries invalid parameters.
func (h *QuestionHandler) CreateQuestions(c *gin.Context) {
  var body struct {
    Questions []services.CreateQuestionInput `json:"questions"`
  }
  if err := c.ShouldBindJSON(&body); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  created, err := h.bankSvc.CreateQuestions(c.Request.Context(), body.Questions)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  c.JSON(http.StatusCreated, gin.H{"questions": created})
}

// POST /api/questions/:id/active
func (h *QuestionHandler) SetActive(c *gin.Context) {
  questionID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_question_id", err)
    return
  }
  var body struct {
    Active bool `json:"active"`
  }
  if err := c.ShouldBindJSON(&body); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  if err := h.bankSvc.SetActive(c.Request.Context(), questionID, body.Active); err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"active": body.Active})
}
