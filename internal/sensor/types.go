// Package sensor contains the gas-channel conversion pipeline and the
// two-channel fusion engine. This package has no hardware dependencies;
// time is always injectable via time.Time parameters.
package sensor

import "time"

// Reading is one calibrated reading from a single gas channel.
type Reading struct {
	Raw        int
	Voltage    float64
	Resistance float64 // Ω, clamped to [100, 1e6]
	PPM        float64 // clamped to [0, 10000]; 0 while preheating
	Preheated  bool
	Time       time.Time
}

// CalibrationState is the per-channel calibration record.
type CalibrationState struct {
	BaselineOhm    float64 // Ro; always > 0
	Sensitivity    float64
	Drift          float64
	LastCalibrated time.Time
	ManualCount    int
}

// GasType classifies what the channel pair is most likely seeing.
type GasType string

const (
	GasLPGButane  GasType = "LPG/Butane"
	GasSmokeFire  GasType = "Smoke/Fire"
	GasLPGPropane GasType = "LPG/Propane"
	GasOther      GasType = "Other Gases"
	GasCleanAir   GasType = "Clean Air"
)

// RiskLevel buckets the type-weighted concentration.
type RiskLevel string

const (
	RiskMinimal RiskLevel = "MINIMAL"
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
)

// Agreement buckets how closely the two channels track each other.
type Agreement string

const (
	AgreementPerfect      Agreement = "PERFECT"
	AgreementExcellent    Agreement = "EXCELLENT"
	AgreementGood         Agreement = "GOOD"
	AgreementFair         Agreement = "FAIR"
	AgreementPoor         Agreement = "POOR"
	AgreementDisagreement Agreement = "DISAGREEMENT"
)

// Recommendation is the suggested operator action.
type Recommendation string

const (
	RecommendEvacuate  Recommendation = "IMMEDIATE_EVACUATION"
	RecommendVentilate Recommendation = "VENTILATE_AREA"
	RecommendInspect   Recommendation = "INVESTIGATE"
	RecommendVerify    Recommendation = "VERIFY_READING"
	RecommendNormal    Recommendation = "NORMAL_OPERATION"
)

// Assessment is the fused, confidence-scored view of both channels.
type Assessment struct {
	MaxPPM         float64
	AvgPPM         float64
	MinPPM         float64
	GasType        GasType
	Confidence     int // 0-100
	Risk           RiskLevel
	Agreement      Agreement
	Recommendation Recommendation
	Time           time.Time
}
