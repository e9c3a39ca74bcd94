package sensor

import "time"

// Type multipliers weight the raw concentration into a risk score.
var riskMultipliers = map[GasType]float64{
	GasLPGButane:  1.2,
	GasLPGPropane: 1.1,
	GasSmokeFire:  1.5,
	GasOther:      0.8,
	GasCleanAir:   0.1,
}

// Fuse combines simultaneous readings from channel A (LPG-weighted) and
// channel B (smoke-weighted) into a classified, confidence-scored
// assessment. Pure function of its inputs.
func Fuse(a, b Reading, now time.Time) Assessment {
	maxPPM := a.PPM
	minPPM := b.PPM
	if b.PPM > maxPPM {
		maxPPM = b.PPM
		minPPM = a.PPM
	}
	avgPPM := (a.PPM + b.PPM) / 2

	gasType := classify(a.PPM, b.PPM)
	agreement := agreementFor(minPPM, maxPPM)
	confidence := confidenceFor(minPPM, maxPPM)
	risk := riskFor(maxPPM, gasType)

	return Assessment{
		MaxPPM:         maxPPM,
		AvgPPM:         avgPPM,
		MinPPM:         minPPM,
		GasType:        gasType,
		Confidence:     confidence,
		Risk:           risk,
		Agreement:      agreement,
		Recommendation: recommend(risk, confidence),
		Time:           now,
	}
}

// classify identifies the gas family from the cross-channel ratios.
// Channel A responds strongest to LPG/butane, channel B to smoke and
// combustion products.
func classify(aPPM, bPPM float64) GasType {
	// IEEE division is deliberate: a silent channel gives an infinite
	// ratio (still subject to the absolute floor), and 0/0 is NaN which
	// fails every comparison.
	switch {
	case aPPM/bPPM > 1.5 && aPPM > 50:
		return GasLPGButane
	case bPPM/aPPM > 2.0 && bPPM > 30:
		return GasSmokeFire
	case aPPM > 20 && bPPM > 20:
		return GasLPGPropane
	case bPPM > 10:
		return GasOther
	default:
		return GasCleanAir
	}
}

// confidenceFor scores 0-100: concentration bands, channel agreement,
// and a flat bonus for unambiguous high readings.
func confidenceFor(minPPM, maxPPM float64) int {
	score := 0

	switch {
	case maxPPM > 100:
		score += 40
	case maxPPM > 50:
		score += 30
	case maxPPM > 20:
		score += 20
	case maxPPM > 5:
		score += 10
	}

	// Both channels seeing gas and agreeing is strong evidence.
	if minPPM > 5 && maxPPM > 0 {
		score += int(30 * (minPPM / maxPPM))
	}

	if maxPPM > 200 {
		score += 20
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// riskFor buckets the type-weighted concentration.
func riskFor(maxPPM float64, gasType GasType) RiskLevel {
	weighted := maxPPM * riskMultipliers[gasType]
	switch {
	case weighted > 300:
		return RiskHigh
	case weighted > 150:
		return RiskMedium
	case weighted > 50:
		return RiskLow
	default:
		return RiskMinimal
	}
}

// agreementFor buckets the min/max concentration ratio.
func agreementFor(minPPM, maxPPM float64) Agreement {
	if maxPPM == 0 {
		return AgreementPerfect
	}
	ratio := minPPM / maxPPM
	switch {
	case ratio > 0.8:
		return AgreementExcellent
	case ratio > 0.6:
		return AgreementGood
	case ratio > 0.4:
		return AgreementFair
	case ratio > 0.2:
		return AgreementPoor
	default:
		return AgreementDisagreement
	}
}

// recommend maps risk and confidence to an operator action.
func recommend(risk RiskLevel, confidence int) Recommendation {
	switch {
	case risk == RiskHigh && confidence > 70:
		return RecommendEvacuate
	case confidence < 30 && risk != RiskMinimal:
		return RecommendVerify
	case risk == RiskHigh:
		return RecommendVentilate
	case risk == RiskMedium && confidence > 50:
		return RecommendVentilate
	case risk == RiskMedium || risk == RiskLow:
		return RecommendInspect
	default:
		return RecommendNormal
	}
}
