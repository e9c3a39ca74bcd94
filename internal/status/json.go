package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event            string        `json:"event,omitempty"`
	Reason           string        `json:"reason,omitempty"`
	Level            string        `json:"level"`
	Ready            bool          `json:"ready"`
	PreheatRemaining int64         `json:"preheat_remaining_s,omitempty"`
	Channels         ChannelsJSON  `json:"channels"`
	Assessment       FusionJSON    `json:"assessment"`
	Position         *PositionJSON `json:"position,omitempty"`
	GPS              GPSJSON       `json:"gps"`
	QueueDepth       int           `json:"gpio_queue_depth"`
	UptimeSeconds    int64         `json:"uptime_seconds"`
	StartTime        string        `json:"start_time"`
	Timestamp        string        `json:"timestamp"`
	MQTT             MQTTStatus    `json:"mqtt"`
	Counts           CountsJSON    `json:"event_counts"`
	Config           ConfigJSON    `json:"config"`
}

// ChannelsJSON reports both gas channels.
type ChannelsJSON struct {
	A ChannelJSON `json:"a"`
	B ChannelJSON `json:"b"`
}

// ChannelJSON is one channel's latest reading.
type ChannelJSON struct {
	PPM        float64 `json:"ppm"`
	Raw        int     `json:"raw"`
	Voltage    float64 `json:"voltage"`
	Resistance float64 `json:"resistance_ohm"`
	Preheated  bool    `json:"preheated"`
}

// FusionJSON is the fused assessment.
type FusionJSON struct {
	MaxPPM         float64 `json:"max_ppm"`
	AvgPPM         float64 `json:"avg_ppm"`
	GasType        string  `json:"gas_type"`
	Confidence     int     `json:"confidence"`
	Risk           string  `json:"risk"`
	Agreement      string  `json:"agreement"`
	Recommendation string  `json:"recommendation"`
}

// PositionJSON is the current best-effort location.
type PositionJSON struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Altitude   float64 `json:"altitude"`
	Accuracy   float64 `json:"accuracy_m"`
	Satellites int     `json:"satellites"`
	HDOP       float64 `json:"hdop"`
	Signal     string  `json:"signal_strength"`
	Source     string  `json:"source"`
	AgeSeconds int64   `json:"age_seconds,omitempty"`
}

// GPSJSON is the position-service health.
type GPSJSON struct {
	State      string `json:"state"`
	Device     string `json:"device,omitempty"`
	Satellites int    `json:"satellites"`
	Malformed  int    `json:"malformed_sentences"`
	Dormant    bool   `json:"dormant,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Readings      int `json:"readings"`
	Transitions   int `json:"level_changes"`
	Notifications int `json:"notifications"`
	ReadErrors    int `json:"read_errors"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs           int64   `json:"poll_ms"`
	Broker           string  `json:"broker"`
	HTTPAddr         string  `json:"http_addr"`
	WarningPPM       float64 `json:"warning_ppm"`
	DangerPPM        float64 `json:"danger_ppm"`
	LegacyWarningPPM float64 `json:"legacy_warning_ppm,omitempty"`
	LegacyDangerPPM  float64 `json:"legacy_danger_ppm,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Level:         string(snap.Level),
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		QueueDepth:    snap.QueueDepth,
		Channels: ChannelsJSON{
			A: ChannelJSON{
				PPM:        snap.A.PPM,
				Raw:        snap.A.Raw,
				Voltage:    snap.A.Voltage,
				Resistance: snap.A.Resistance,
				Preheated:  snap.A.Preheated,
			},
			B: ChannelJSON{
				PPM:        snap.B.PPM,
				Raw:        snap.B.Raw,
				Voltage:    snap.B.Voltage,
				Resistance: snap.B.Resistance,
				Preheated:  snap.B.Preheated,
			},
		},
		Assessment: FusionJSON{
			MaxPPM:         snap.Assessment.MaxPPM,
			AvgPPM:         snap.Assessment.AvgPPM,
			GasType:        string(snap.Assessment.GasType),
			Confidence:     snap.Assessment.Confidence,
			Risk:           string(snap.Assessment.Risk),
			Agreement:      string(snap.Assessment.Agreement),
			Recommendation: string(snap.Assessment.Recommendation),
		},
		GPS: GPSJSON{
			State:      string(snap.GPS.State),
			Device:     snap.GPS.Device,
			Satellites: snap.GPS.Satellites,
			Malformed:  snap.GPS.Malformed,
			Dormant:    snap.GPS.Dormant,
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Readings:      snap.Counts.Readings,
			Transitions:   snap.Counts.Transitions,
			Notifications: snap.Counts.Notifications,
			ReadErrors:    snap.Counts.ReadErrors,
		},
		Config: ConfigJSON{
			PollMs:           snap.Config.PollMs,
			Broker:           snap.Config.Broker,
			HTTPAddr:         snap.Config.HTTPAddr,
			WarningPPM:       snap.Config.WarningPPM,
			DangerPPM:        snap.Config.DangerPPM,
			LegacyWarningPPM: snap.Config.LegacyWarningPPM,
			LegacyDangerPPM:  snap.Config.LegacyDangerPPM,
		},
	}

	if !snap.Ready {
		inner.PreheatRemaining = int64(snap.PreheatRemaining.Truncate(time.Second).Seconds())
	}

	if p := snap.Position; p != nil {
		pj := &PositionJSON{
			Latitude:   p.Latitude,
			Longitude:  p.Longitude,
			Altitude:   p.Altitude,
			Accuracy:   p.Accuracy,
			Satellites: p.Satellites,
			HDOP:       p.HDOP,
			Signal:     string(p.Signal),
			Source:     string(p.Source),
		}
		if p.Source == "cached" {
			pj.AgeSeconds = int64(p.Age.Truncate(time.Second).Seconds())
		}
		inner.Position = pj
	}

	return inner
}

// Format returns the status snapshot as JSON.
func Format(snap Snapshot) []byte {
	data, err := json.Marshal(StatusJSON{Status: buildInner(snap)})
	if err != nil {
		// Snapshot contains only marshal-safe types.
		return []byte(`{"status":{}}`)
	}
	return data
}

// FormatStatusEvent returns the snapshot as JSON with a system event and
// optional reason attached. Used for STARTUP/SHUTDOWN/HEARTBEAT payloads.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, err := json.Marshal(StatusJSON{Status: inner})
	if err != nil {
		return []byte(`{"status":{}}`)
	}
	return data
}
