package handlers

import (
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/services"
)

type CalibrationHandler struct {
  log            *logger.Logger
  calibrationSvc services.CalibrationService
}

func NewCalibrationHandler(log *logger.Logger, calibrationSvc services.CalibrationService) *CalibrationHandler {
  return &CalibrationHandler{
    log:            log.With("handler", "CalibrationHandler"),
    calibrationSvc: calibrationSvc,
  }
}

// POST /api/calibration/trigger
// Enqueue a recalibration run. Returns 202 with the run when queued, 200
// with no run when one is already queued or running.
func (h *CalibrationHandler) Trigger(c *gin.Context) {
  run, err := h.calibrationSvc.Trigger(c.Request.Context())
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  if run == nil {
    RespondOK(c, gin.H{"queued": false})
    return
  }
  c.JSON(http.StatusAccepted, gin.H{"queued": true, "run": run})
}

// GET /api/calibration/runs/:id
func (h *CalibrationHandler) GetRun(c *gin.Context) {
  runID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
    return
  }
  run, err := h.calibrationSvc.GetRun(c.Request.Context(), runID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  if run == nil {
    RespondError(c, http.StatusNotFound, "run_not_found", nil)
    return
  }
  RespondOK(c, gin.H{"run": run})
}
