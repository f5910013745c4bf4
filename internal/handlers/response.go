package handlers

import (
  "errors"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

type APIError struct {
  Message     string	`json:"message"`
  Code	      string	`json:"code,omitempty"`
}

type ErrorEnvelope struct {
  Error	      APIError	`json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
  msg := "unknown error"
  if err != nil {
    msg = err.Error()
  }
  c.JSON(status, ErrorEnvelope{
    Error: APIError{
      Message: msg,
      Code:    code,
    },
  })
}

func RespondOK(c *gin.Context, payload any) {
  c.JSON(http.StatusOK, payload)
}

// RespondServiceError maps the service sentinel errors onto HTTP statuses so
// every handler reports them the same way.
func RespondServiceError(c *gin.Context, err error) {
  switch {
  case errors.Is(err, types.ErrSessionNotFound):
    RespondError(c, http.StatusNotFound, "session_not_found", err)
  case errors.Is(err, types.ErrInvalidSessionState):
    RespondError(c, http.StatusConflict, "invalid_session_state", err)
  case errors.Is(err, types.ErrNoEligibleQuestions):
    RespondError(c, http.StatusConflict, "no_eligible_questions", err)
  case errors.Is(err, types.ErrUnsupportedAnswerPayload):
    RespondError(c, http.StatusBadRequest, "unsupported_answer_payload", err)
  case errors.Is(err, types.ErrInvalidItemParameters):
    RespondError(c, http.StatusBadRequest, "invalid_item_parameters", err)
  case errors.Is(err, types.ErrCalibrationInsufficientData):
    RespondError(c, http.StatusUnprocessableEntity, "insufficient_data", err)
  default:
    RespondError(c, http.StatusInternalServerError, "internal_error", err)
  }
}
