// Package gps maintains a best-effort position fix from a serial GPS
// receiver: NMEA decoding, signal-quality gating, reconnection with
// backoff, and disk persistence of the last good fix.
package gps

import "time"

// Source tells consumers whether a position is the live fix or the
// cached last-known location.
type Source string

const (
	SourceLive   Source = "live"
	SourceCached Source = "cached"
)

// SignalStrength is the coarse receiver-quality bucket.
type SignalStrength string

const (
	SignalNone      SignalStrength = "none"
	SignalPoor      SignalStrength = "poor"
	SignalFair      SignalStrength = "fair"
	SignalGood      SignalStrength = "good"
	SignalExcellent SignalStrength = "excellent"
)

// Position is a decoded location.
type Position struct {
	Latitude   float64
	Longitude  float64
	Altitude   float64 // meters
	Accuracy   float64 // estimated horizontal error, meters
	Satellites int
	FixQuality int
	HDOP       float64
	Speed      float64 // km/h, from course sentences
	Course     float64 // degrees
	Signal     SignalStrength
	Time       time.Time
	Source     Source
	Age        time.Duration // only meaningful for cached positions
}

// AccuracyFor estimates horizontal error in meters from HDOP, scaled by
// the satellite count: geometry is trustworthy with eight or more birds
// and optimistic below four.
func AccuracyFor(hdop float64, satellites int) float64 {
	acc := hdop * 3
	switch {
	case satellites >= 8:
		acc *= 0.8
	case satellites < 4:
		acc *= 1.5
	}
	return acc
}

// SignalFor buckets fix quality, satellite count, and HDOP.
func SignalFor(fixQuality, satellites int, hdop float64) SignalStrength {
	switch {
	case fixQuality == 0 || satellites == 0:
		return SignalNone
	case fixQuality >= 2 && satellites >= 8 && hdop < 2:
		return SignalExcellent
	case satellites >= 6 && hdop < 3:
		return SignalGood
	case satellites >= 4 && hdop < 5:
		return SignalFair
	default:
		return SignalPoor
	}
}

// GoodFix is the gate a reading must pass before it is promoted to the
// persisted last-known location: fix present, at least four satellites,
// fix quality at least 1, HDOP under 5, estimated accuracy under 50m.
func GoodFix(p Position) bool {
	return p.FixQuality >= 1 &&
		p.Satellites >= 4 &&
		p.HDOP < 5 &&
		p.Accuracy < 50
}
