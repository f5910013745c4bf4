package jobs

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/services"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

type CalibrationHandler struct {
	svc services.CalibrationService
}

func NewCalibrationHandler(svc services.CalibrationService) *CalibrationHandler {
	return &CalibrationHandler{svc: svc}
}

func (h *CalibrationHandler) Type() string { return types.JobTypeCalibration }

func (h *CalibrationHandler) Run(jc *Context) error {
	report, err := h.svc.Run(jc.Ctx, jc.Progress)
	if err != nil {
		jc.Fail(jc.Run.Stage, err)
		return err
	}
	jc.Succeed("published", services.MetadataFromReport(report))
	return nil
}

type BiasScanHandler struct {
	svc services.BiasService
}

func NewBiasScanHandler(svc services.BiasService) *BiasScanHandler {
	return &BiasScanHandler{svc: svc}
}

func (h *BiasScanHandler) Type() string { return types.JobTypeBiasScan }

func (h *BiasScanHandler) Run(jc *Context) error {
	report, err := h.svc.RunScan(jc.Ctx, jc.Progress)
	if err != nil {
		jc.Fail(jc.Run.Stage, err)
		return err
	}
	meta, _ := json.Marshal(report)
	jc.Succeed("done", datatypes.JSON(meta))
	return nil
}
