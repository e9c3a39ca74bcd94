// Package mqtt publishes the detector event stream with abstraction for
// testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/gasguard/internal/alert"
	"github.com/sweeney/gasguard/internal/gps"
	"github.com/sweeney/gasguard/internal/sensor"
)

// Topics for detector events.
const (
	TopicReading  = "gasguard/events/reading"
	TopicAlert    = "gasguard/events/alert"
	TopicPosition = "gasguard/events/position"
	TopicSystem   = "gasguard/system"
)

// Publisher publishes detector events to MQTT.
type Publisher interface {
	// PublishReading sends the per-tick fused reading.
	PublishReading(a, b sensor.Reading, fused sensor.Assessment) error

	// PublishAlert sends an alert-level change. Critical transitions are
	// flagged and sent at a higher QoS.
	PublishAlert(tr alert.Transition) error

	// PublishPosition sends a position update.
	PublishPosition(p gps.Position) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup,
// shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// ReadingPayload is the MQTT message for a fused reading.
type ReadingPayload struct {
	Reading ReadingInner `json:"reading"`
}

// ReadingInner contains the reading details.
type ReadingInner struct {
	Timestamp  string  `json:"timestamp"`
	PPMA       float64 `json:"ppm_a"`
	PPMB       float64 `json:"ppm_b"`
	MaxPPM     float64 `json:"max_ppm"`
	GasType    string  `json:"gas_type"`
	Confidence int     `json:"confidence"`
	Risk       string  `json:"risk"`
	Agreement  string  `json:"agreement"`
}

// FormatReadingPayload creates the JSON payload for a reading event.
func FormatReadingPayload(a, b sensor.Reading, fused sensor.Assessment) ([]byte, error) {
	return json.Marshal(ReadingPayload{
		Reading: ReadingInner{
			Timestamp:  fused.Time.UTC().Format(time.RFC3339),
			PPMA:       a.PPM,
			PPMB:       b.PPM,
			MaxPPM:     fused.MaxPPM,
			GasType:    string(fused.GasType),
			Confidence: fused.Confidence,
			Risk:       string(fused.Risk),
			Agreement:  string(fused.Agreement),
		},
	})
}

// AlertPayload is the MQTT message for an alert-level change.
type AlertPayload struct {
	Alert AlertInner `json:"alert"`
}

// AlertInner contains the alert details.
type AlertInner struct {
	Timestamp      string  `json:"timestamp"`
	Previous       string  `json:"previous"`
	Level          string  `json:"level"`
	MaxPPM         float64 `json:"max_ppm"`
	GasType        string  `json:"gas_type"`
	Confidence     int     `json:"confidence"`
	Risk           string  `json:"risk"`
	Recommendation string  `json:"recommendation"`
	Critical       bool    `json:"critical"`
}

// FormatAlertPayload creates the JSON payload for an alert event.
func FormatAlertPayload(tr alert.Transition) ([]byte, error) {
	return json.Marshal(AlertPayload{
		Alert: AlertInner{
			Timestamp:      tr.At.UTC().Format(time.RFC3339),
			Previous:       string(tr.From),
			Level:          string(tr.To),
			MaxPPM:         tr.Assessment.MaxPPM,
			GasType:        string(tr.Assessment.GasType),
			Confidence:     tr.Assessment.Confidence,
			Risk:           string(tr.Assessment.Risk),
			Recommendation: string(tr.Assessment.Recommendation),
			Critical:       tr.To == alert.LevelCritical,
		},
	})
}

// PositionPayload is the MQTT message for a position update.
type PositionPayload struct {
	Position PositionInner `json:"position"`
}

// PositionInner contains the position details.
type PositionInner struct {
	Timestamp  string  `json:"timestamp"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Accuracy   float64 `json:"accuracy_m"`
	Satellites int     `json:"satellites"`
	Signal     string  `json:"signal_strength"`
	Source     string  `json:"source"`
}

// FormatPositionPayload creates the JSON payload for a position event.
func FormatPositionPayload(p gps.Position) ([]byte, error) {
	return json.Marshal(PositionPayload{
		Position: PositionInner{
			Timestamp:  p.Time.UTC().Format(time.RFC3339),
			Latitude:   p.Latitude,
			Longitude:  p.Longitude,
			Accuracy:   p.Accuracy,
			Satellites: p.Satellites,
			Signal:     string(p.Signal),
			Source:     string(p.Source),
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full
// status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
