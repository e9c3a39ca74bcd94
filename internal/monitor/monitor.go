// Package monitor runs the sensor-to-actuator control loop: periodic
// sampling, fusion, alert evaluation, actuator drive, and the status
// snapshot.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/gasguard/internal/actuator"
	"github.com/sweeney/gasguard/internal/adc"
	"github.com/sweeney/gasguard/internal/alert"
	"github.com/sweeney/gasguard/internal/gps"
	"github.com/sweeney/gasguard/internal/mqtt"
	"github.com/sweeney/gasguard/internal/sensor"
	"github.com/sweeney/gasguard/internal/status"
	"github.com/sweeney/gasguard/internal/store"
)

// Deps wires the control loop. Everything is constructed by the caller
// and passed by reference; optional collaborators may be nil and the
// loop degrades instead of failing.
type Deps struct {
	ADC        adc.Reader
	ChannelA   *sensor.Channel
	ChannelB   *sensor.Channel
	ADCChanA   int
	ADCChanB   int
	Machine    *alert.Machine
	Gate       *alert.Gate
	Queue      *actuator.Queue
	Lights     *actuator.Lights
	Buzzer     *actuator.Buzzer
	GPS        *gps.Service          // optional
	Publisher  mqtt.Publisher        // optional
	MQTTStatus mqtt.ConnectionStatus // optional
	Store      store.Store           // optional
	Tracker    *status.Tracker
	Heartbeat  time.Duration // 0 disables heartbeat system events
	Log        *zap.Logger
}

// Monitor is the control loop.
type Monitor struct {
	d   Deps
	log *zap.Logger

	lastHeartbeat time.Time
	lastPosTime   time.Time
}

// New creates a Monitor. The sensor channels must already be
// initialized (preheat started).
func New(d Deps) *Monitor {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Monitor{d: d, log: d.Log}
}

// Run drives the loop from the tick channel until ctx is cancelled.
// Each tick is handled completely before the next is taken; there is a
// single writer for all detector state.
func (m *Monitor) Run(ctx context.Context, tick <-chan time.Time) error {
	m.lastHeartbeat = time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-tick:
			m.Tick(t)
		}
	}
}

// Tick executes one poll cycle. Exported so tests can drive the loop
// with a synthetic clock.
func (m *Monitor) Tick(now time.Time) {
	a := m.readChannel(m.d.ChannelA, m.d.ADCChanA, now)
	b := m.readChannel(m.d.ChannelB, m.d.ADCChanB, now)

	fused := sensor.Fuse(a, b, now)
	tr := m.d.Machine.Process(fused, now)
	if tr != nil {
		m.handleTransition(*tr, a, b)
	}

	ready := m.d.ChannelA.Ready(now) && m.d.ChannelB.Ready(now)
	preheat := m.d.ChannelA.PreheatRemaining(now)
	if r := m.d.ChannelB.PreheatRemaining(now); r > preheat {
		preheat = r
	}
	m.d.Tracker.UpdateReadings(a, b, fused, m.d.Machine.Current(), ready, preheat)
	m.d.Tracker.SetQueueDepth(m.d.Queue.Depth())

	if m.d.Publisher != nil && ready {
		if err := m.d.Publisher.PublishReading(a, b, fused); err != nil {
			m.log.Warn("publish reading", zap.Error(err))
		}
	}

	m.updatePosition()
	m.heartbeat(now)

	if m.d.MQTTStatus != nil {
		m.d.Tracker.SetMQTTConnected(m.d.MQTTStatus.IsConnected())
	}
}

// readChannel samples one gas channel. A read failure substitutes the
// previous valid reading (zero before any exists) and never aborts the
// tick; preheat reads carry raw values with zero concentration.
func (m *Monitor) readChannel(ch *sensor.Channel, adcChannel int, now time.Time) sensor.Reading {
	sample, err := m.d.ADC.ReadChannel(adcChannel)
	if err != nil {
		m.log.Warn("adc read failed, holding last value",
			zap.Int("adc_channel", adcChannel), zap.Error(err))
		m.d.Tracker.NoteReadError()
		return ch.LastValid()
	}

	reading, err := ch.Read(sample, now)
	if err != nil {
		var preheat *sensor.PreheatError
		if errors.As(err, &preheat) {
			return reading // raw values, zero ppm
		}
		m.log.Warn("channel read failed", zap.Error(err))
		m.d.Tracker.NoteReadError()
		return ch.LastValid()
	}
	return reading
}

// handleTransition reacts to an alert-level change: actuators first,
// then the notification gate, then best-effort persistence and the
// event stream.
func (m *Monitor) handleTransition(tr alert.Transition, a, b sensor.Reading) {
	m.log.Info("alert level change",
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
		zap.Float64("max_ppm", tr.Assessment.MaxPPM),
		zap.String("gas_type", string(tr.Assessment.GasType)))
	m.d.Tracker.NoteTransition()

	switch tr.To {
	case alert.LevelCritical:
		m.d.Lights.Set(actuator.ColorRed)
		if err := m.d.Buzzer.Start("critical"); err != nil {
			m.log.Warn("buzzer start", zap.Error(err))
		}
	case alert.LevelLow:
		m.d.Lights.Set(actuator.ColorYellow)
		if err := m.d.Buzzer.Start("warning"); err != nil {
			m.log.Warn("buzzer start", zap.Error(err))
		}
	default:
		// Clear immediately; the buzzer may ride out its hold time.
		m.d.Lights.Set(actuator.ColorGreen)
		m.d.Buzzer.Hold()
	}

	m.d.Gate.UpdateLevel(tr.To, tr.Assessment)

	if m.d.Store != nil && tr.To != alert.LevelNormal {
		// Off the tick path; a slow disk must not delay sampling.
		go m.persistTransition(tr, a, b)
	}

	if m.d.Publisher != nil {
		if err := m.d.Publisher.PublishAlert(tr); err != nil {
			m.log.Warn("publish alert", zap.Error(err))
		}
	}
}

func (m *Monitor) persistTransition(tr alert.Transition, a, b sensor.Reading) {
	r := &store.Reading{
		PPMA:       a.PPM,
		PPMB:       b.PPM,
		MaxPPM:     tr.Assessment.MaxPPM,
		GasType:    string(tr.Assessment.GasType),
		Confidence: tr.Assessment.Confidence,
		Risk:       string(tr.Assessment.Risk),
	}
	if err := m.d.Store.CreateReading(r); err != nil {
		m.log.Warn("persist reading", zap.Error(err))
		return
	}
	alertRec := &store.Alert{ReadingID: r.ID, Level: string(tr.To)}
	if err := m.d.Store.CreateAlert(alertRec); err != nil {
		m.log.Warn("persist alert", zap.Error(err))
	}
}

// updatePosition refreshes the tracked position and publishes an event
// when a newer fix arrived since the last tick.
func (m *Monitor) updatePosition() {
	if m.d.GPS == nil {
		return
	}

	pos := m.d.GPS.Current()
	m.d.Tracker.SetPosition(pos)
	m.d.Tracker.SetGPSStatus(m.d.GPS.CurrentStatus())

	if pos == nil || m.d.Publisher == nil {
		return
	}
	if pos.Source == gps.SourceLive && pos.Time.After(m.lastPosTime) {
		m.lastPosTime = pos.Time
		if err := m.d.Publisher.PublishPosition(*pos); err != nil {
			m.log.Warn("publish position", zap.Error(err))
		}
	}
}

// heartbeat publishes a full status snapshot at the configured interval.
func (m *Monitor) heartbeat(now time.Time) {
	if m.d.Heartbeat <= 0 || m.d.Publisher == nil {
		return
	}
	if now.Sub(m.lastHeartbeat) < m.d.Heartbeat {
		return
	}
	m.lastHeartbeat = now

	snap := m.d.Tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  now,
		Event:      "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
	}
	if err := m.d.Publisher.PublishSystem(event); err != nil {
		m.log.Warn("publish heartbeat", zap.Error(err))
	}
}

// Acknowledge silences the audible pattern without changing the alert
// level; the light keeps showing the current state.
func (m *Monitor) Acknowledge() {
	m.log.Info("alert acknowledged")
	m.d.Buzzer.Stop()
}

// SetThresholds replaces the simple-band thresholds at runtime.
func (m *Monitor) SetThresholds(warning, danger float64) error {
	if warning <= 0 || danger <= warning {
		return fmt.Errorf("monitor: thresholds must satisfy 0 < warning < danger")
	}
	m.d.Machine.SetThresholds(alert.Thresholds{Warning: warning, Danger: danger})
	m.d.Tracker.SetThresholds(warning, danger)
	m.log.Info("thresholds updated",
		zap.Float64("warning", warning), zap.Float64("danger", danger))
	return nil
}

// CalibrateChannel runs auto-calibration on the named channel ("a" or
// "b"), averaging n clean-air samples. Blocks for about n seconds.
func (m *Monitor) CalibrateChannel(ctx context.Context, name string, n int) (float64, error) {
	var ch *sensor.Channel
	var adcChannel int
	switch name {
	case "a":
		ch, adcChannel = m.d.ChannelA, m.d.ADCChanA
	case "b":
		ch, adcChannel = m.d.ChannelB, m.d.ADCChanB
	default:
		return 0, fmt.Errorf("monitor: unknown channel %q", name)
	}

	return ch.AutoCalibrate(ctx, func() (adc.Sample, error) {
		return m.d.ADC.ReadChannel(adcChannel)
	}, n)
}

// SelfTestResult reports per-subsystem outcomes as "ok" or an error
// description.
type SelfTestResult struct {
	Channels map[string]string
	Outputs  map[int]string
	GPS      string
}

// SelfTest exercises both ADC channels, pulses every output through the
// queue, and reports the position-service state.
func (m *Monitor) SelfTest(ctx context.Context) SelfTestResult {
	res := SelfTestResult{
		Channels: make(map[string]string),
		Outputs:  make(map[int]string),
	}

	for name, ch := range map[string]int{"a": m.d.ADCChanA, "b": m.d.ADCChanB} {
		if _, err := m.d.ADC.ReadChannel(ch); err != nil {
			res.Channels[name] = err.Error()
		} else {
			res.Channels[name] = "ok"
		}
	}

	for _, pin := range m.d.Lights.Pins() {
		res.Outputs[pin] = m.testOutput(pin)
	}
	res.Outputs[m.d.Buzzer.Pin()] = m.testOutput(m.d.Buzzer.Pin())

	if m.d.GPS != nil {
		res.GPS = string(m.d.GPS.CurrentStatus().State)
	} else {
		res.GPS = "disabled"
	}

	m.log.Info("self-test complete",
		zap.Any("channels", res.Channels), zap.String("gps", res.GPS))
	return res
}

func (m *Monitor) testOutput(pin int) string {
	if err := m.d.Queue.Enqueue(pin, 1, 2*time.Second); err != nil {
		return err.Error()
	}
	if err := m.d.Queue.Enqueue(pin, 0, 2*time.Second); err != nil {
		return err.Error()
	}
	return "ok"
}

// Shutdown quiesces the actuators: buzzer silenced, lights out, every
// pin driven low synchronously, then the queue cleared.
func (m *Monitor) Shutdown() {
	m.d.Buzzer.Stop()
	m.d.Lights.Off()
	for _, pin := range append(m.d.Lights.Pins(), m.d.Buzzer.Pin()) {
		if err := m.d.Queue.Enqueue(pin, 0, time.Second); err != nil {
			m.log.Warn("shutdown pin clear", zap.Int("pin", pin), zap.Error(err))
		}
	}
	m.d.Queue.ClearAll()
	m.d.Gate.Shutdown()
}
