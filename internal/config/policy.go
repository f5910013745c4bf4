package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/utils"
)

// Policy holds the tunable knobs of the adaptive engine. Every value can be
// set from the environment; ENGINE_POLICY_FILE points at an optional YAML file
// that overrides whatever it names.
type Policy struct {
	// Stopping rule.
	TargetSE     float64 `yaml:"target_se"`
	MinQuestions int     `yaml:"min_questions"`
	MaxQuestions int     `yaml:"max_questions"`

	// Ability estimator.
	ThetaMin        float64 `yaml:"theta_min"`
	ThetaMax        float64 `yaml:"theta_max"`
	MaxThetaStep    float64 `yaml:"max_theta_step"`
	PriorSD         float64 `yaml:"prior_sd"`
	FastResponseMS  int     `yaml:"fast_response_ms"`
	SlowResponseMS  int     `yaml:"slow_response_ms"`
	AnomalousWeight float64 `yaml:"anomalous_weight"`

	// Response recorder.
	StatsEMAAlpha float64 `yaml:"stats_ema_alpha"`

	// Exposure control.
	MaxExposureRate float64 `yaml:"max_exposure_rate"`
	ExposureWarmup  int     `yaml:"exposure_warmup"`

	// Calibration.
	MinCalibrationSample int           `yaml:"min_calibration_sample"`
	DiscriminationFloor  float64       `yaml:"discrimination_floor"`
	CalibrationEMSweeps  int           `yaml:"calibration_em_sweeps"`
	CalibrationTriggerN  int           `yaml:"calibration_trigger_n"`
	CalibrationInterval  time.Duration `yaml:"calibration_interval"`
	AutoCalibration      bool          `yaml:"auto_calibration"`

	// Bias monitor.
	BiasDivergenceThreshold float64 `yaml:"bias_divergence_threshold"`
	BiasMinGroupSample      int     `yaml:"bias_min_group_sample"`
	BiasThetaBandWidth      float64 `yaml:"bias_theta_band_width"`
}

func DefaultPolicy() Policy {
	return Policy{
		TargetSE:     0.3,
		MinQuestions: 10,
		MaxQuestions: 30,

		ThetaMin:        -4.0,
		ThetaMax:        4.0,
		MaxThetaStep:    1.0,
		PriorSD:         1.0,
		FastResponseMS:  2000,
		SlowResponseMS:  600000,
		AnomalousWeight: 0.5,

		StatsEMAAlpha: 0.1,

		MaxExposureRate: 0.25,
		ExposureWarmup:  50,

		MinCalibrationSample: 30,
		DiscriminationFloor:  0.4,
		CalibrationEMSweeps:  5,
		CalibrationTriggerN:  200,
		CalibrationInterval:  6 * time.Hour,
		AutoCalibration:      true,

		BiasDivergenceThreshold: 0.05,
		BiasMinGroupSample:      20,
		BiasThetaBandWidth:      1.0,
	}
}

// Load builds the policy from defaults, then environment, then the optional
// YAML file. The file wins so operators can pin a reviewed policy.
func Load(log *logger.Logger) (Policy, error) {
	p := DefaultPolicy()

	p.TargetSE = utils.GetEnvAsFloat("TARGET_SE", p.TargetSE, log)
	p.MinQuestions = utils.GetEnvAsInt("MIN_QUESTIONS", p.MinQuestions, log)
	p.MaxQuestions = utils.GetEnvAsInt("MAX_QUESTIONS", p.MaxQuestions, log)
	p.MaxThetaStep = utils.GetEnvAsFloat("MAX_THETA_STEP", p.MaxThetaStep, log)
	p.FastResponseMS = utils.GetEnvAsInt("FAST_RESPONSE_MS", p.FastResponseMS, log)
	p.SlowResponseMS = utils.GetEnvAsInt("SLOW_RESPONSE_MS", p.SlowResponseMS, log)
	p.AnomalousWeight = utils.GetEnvAsFloat("ANOMALOUS_RESPONSE_WEIGHT", p.AnomalousWeight, log)
	p.StatsEMAAlpha = utils.GetEnvAsFloat("STATS_EMA_ALPHA", p.StatsEMAAlpha, log)
	p.MaxExposureRate = utils.GetEnvAsFloat("MAX_EXPOSURE_RATE", p.MaxExposureRate, log)
	p.ExposureWarmup = utils.GetEnvAsInt("EXPOSURE_WARMUP", p.ExposureWarmup, log)
	p.MinCalibrationSample = utils.GetEnvAsInt("MIN_CALIBRATION_SAMPLE", p.MinCalibrationSample, log)
	p.DiscriminationFloor = utils.GetEnvAsFloat("DISCRIMINATION_FLOOR", p.DiscriminationFloor, log)
	p.CalibrationTriggerN = utils.GetEnvAsInt("CALIBRATION_TRIGGER_N", p.CalibrationTriggerN, log)
	p.AutoCalibration = utils.GetEnvAsBool("AUTO_CALIBRATION", p.AutoCalibration, log)
	p.BiasDivergenceThreshold = utils.GetEnvAsFloat("BIAS_DIVERGENCE_THRESHOLD", p.BiasDivergenceThreshold, log)
	p.BiasMinGroupSample = utils.GetEnvAsInt("BIAS_MIN_GROUP_SAMPLE", p.BiasMinGroupSample, log)

	if path := utils.GetEnv("ENGINE_POLICY_FILE", "", log); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return p, fmt.Errorf("read policy file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &p); err != nil {
			return p, fmt.Errorf("parse policy file %s: %w", path, err)
		}
		if log != nil {
			log.Info("Engine policy overridden from file", "path", path)
		}
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func (p Policy) Validate() error {
	if p.TargetSE <= 0 {
		return fmt.Errorf("target_se must be positive, got %v", p.TargetSE)
	}
	if p.MinQuestions < 1 || p.MaxQuestions < p.MinQuestions {
		return fmt.Errorf("question bounds invalid: min=%d max=%d", p.MinQuestions, p.MaxQuestions)
	}
	if p.ThetaMin >= p.ThetaMax {
		return fmt.Errorf("theta range invalid: [%v, %v]", p.ThetaMin, p.ThetaMax)
	}
	if p.StatsEMAAlpha <= 0 || p.StatsEMAAlpha > 1 {
		return fmt.Errorf("stats_ema_alpha must be in (0, 1], got %v", p.StatsEMAAlpha)
	}
	if p.MaxExposureRate <= 0 || p.MaxExposureRate > 1 {
		return fmt.Errorf("max_exposure_rate must be in (0, 1], got %v", p.MaxExposureRate)
	}
	if p.BiasDivergenceThreshold <= 0 {
		return fmt.Errorf("bias_divergence_threshold must be positive, got %v", p.BiasDivergenceThreshold)
	}
	return nil
}
