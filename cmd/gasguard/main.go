// Command gasguard monitors a dual-channel combustible-gas sensor,
// drives the indicator light and buzzer, and publishes alerts over MQTT
// and notification gateways.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/gasguard/internal/actuator"
	"github.com/sweeney/gasguard/internal/adc"
	"github.com/sweeney/gasguard/internal/alert"
	"github.com/sweeney/gasguard/internal/config"
	"github.com/sweeney/gasguard/internal/gpio"
	"github.com/sweeney/gasguard/internal/gps"
	"github.com/sweeney/gasguard/internal/monitor"
	"github.com/sweeney/gasguard/internal/mqtt"
	"github.com/sweeney/gasguard/internal/notify"
	"github.com/sweeney/gasguard/internal/sensor"
	"github.com/sweeney/gasguard/internal/status"
	"github.com/sweeney/gasguard/internal/store"
	"github.com/sweeney/gasguard/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/gasguard/config.yaml", "Configuration file path")
	poll := flag.Duration("poll", 0, "Polling interval (overrides config)")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	httpAddr := flag.String("http", "=config", `HTTP status address ("=config" uses config, empty disables)`)
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	logJSON := flag.Bool("log-json", false, "Emit JSON logs")
	selfTest := flag.Bool("self-test", false, "Run the hardware self-test and exit")
	calibrate := flag.String("calibrate", "", `Auto-calibrate a channel ("a" or "b") and exit`)
	samples := flag.Int("samples", 10, "Clean-air samples for -calibrate")
	flag.Parse()

	log, err := newLogger(*logJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}
	if *poll > 0 {
		cfg.Poll = *poll
	}
	if *broker != "" {
		cfg.MQTT.Broker = *broker
	}
	if *httpAddr != "=config" {
		cfg.HTTP.Addr = *httpAddr
	}

	if err := run(cfg, *heartbeat, *selfTest, *calibrate, *samples, log); err != nil {
		log.Fatal("fatal", zap.Error(err))
	}
}

func newLogger(json bool) (*zap.Logger, error) {
	if json {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(cfg *config.Config, heartbeat time.Duration, selfTest bool, calibrate string, samples int, log *zap.Logger) error {
	// Outputs first: if the pins cannot be driven there is no point
	// sampling gas.
	writer, err := gpio.NewRealWriter()
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer writer.Close()

	queue := actuator.NewQueue(writer, actuator.QueueConfig{
		Spacing:      cfg.Actuators.Spacing,
		Retries:      cfg.Actuators.Retries,
		RetryBackoff: cfg.Actuators.Spacing,
	}, log)

	lights := actuator.NewLights(queue, actuator.LightPins{
		Green:  cfg.Actuators.PinGreen,
		Yellow: cfg.Actuators.PinYellow,
		Red:    cfg.Actuators.PinRed,
	}, cfg.Actuators.WriteTimeout, log)

	buzzer := actuator.NewBuzzer(queue, cfg.Actuators.PinBuzzer, cfg.Actuators.WriteTimeout, log)
	for _, name := range []string{"critical", "warning"} {
		if err := buzzer.SetHold(name, cfg.Actuators.BuzzerHold); err != nil {
			return fmt.Errorf("buzzer pattern: %w", err)
		}
	}

	adcReader, err := adc.NewRealReader(cfg.Sensors.IIODir, cfg.Sensors.VRef)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer adcReader.Close()

	now := time.Now()
	chanA := newChannel("A", cfg.Sensors, cfg.Sensors.A, log)
	chanB := newChannel("B", cfg.Sensors, cfg.Sensors.B, log)
	chanA.Init(now)
	chanB.Init(now)

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	directory := store.NewDirectory(db)

	gpsSvc := gps.NewService(gps.ServiceConfig{
		Paths:         cfg.GPS.Paths,
		Baud:          cfg.GPS.Baud,
		StaleAfter:    cfg.GPS.StaleAfter,
		BackoffBase:   cfg.GPS.BackoffBase,
		BackoffCap:    cfg.GPS.BackoffCap,
		MaxReconnects: cfg.GPS.MaxReconnects,
		LastKnownFile: cfg.GPS.LastKnownFile,
	}, nil, log)
	gpsSvc.Start()
	defer gpsSvc.Stop()

	tracker := status.NewTracker(now, status.Config{
		PollMs:           cfg.Poll.Milliseconds(),
		Broker:           cfg.MQTT.Broker,
		HTTPAddr:         cfg.HTTP.Addr,
		WarningPPM:       cfg.Thresholds.Warning,
		DangerPPM:        cfg.Thresholds.Danger,
		LegacyWarningPPM: cfg.Thresholds.LegacyWarning,
		LegacyDangerPPM:  cfg.Thresholds.LegacyDanger,
	})

	dispatcher := notify.NewShoutrrrDispatcher(cfg.Alerting.GatewayURLs, log)
	gate := alert.NewGate(alert.GateConfig{
		PersistenceDelay: cfg.Alerting.PersistenceDelay,
		Cooldown:         cfg.Alerting.Cooldown,
		ManualAddress:    manualAddress(cfg, db),
		OnDispatched: func(alert.Level, int) {
			tracker.NoteNotification()
		},
	}, dispatcher, directory, gpsSvc, directory, log)

	machine := alert.NewMachine(alert.Thresholds{
		Warning: cfg.Thresholds.Warning,
		Danger:  cfg.Thresholds.Danger,
	}, now)

	// MQTT is best-effort: a dead broker degrades the event stream, it
	// does not stop gas monitoring.
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		real, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, log)
		if err != nil {
			log.Warn("mqtt unavailable, continuing without event stream", zap.Error(err))
		} else {
			publisher = real
			mqttStatus = real
			defer real.Close()
		}
	}

	mon := monitor.New(monitor.Deps{
		ADC:        adcReader,
		ChannelA:   chanA,
		ChannelB:   chanB,
		ADCChanA:   cfg.Sensors.A.ADCChannel,
		ADCChanB:   cfg.Sensors.B.ADCChannel,
		Machine:    machine,
		Gate:       gate,
		Queue:      queue,
		Lights:     lights,
		Buzzer:     buzzer,
		GPS:        gpsSvc,
		Publisher:  publisher,
		MQTTStatus: mqttStatus,
		Store:      db,
		Tracker:    tracker,
		Heartbeat:  heartbeat,
		Log:        log,
	})
	defer mon.Shutdown()

	if selfTest {
		res := mon.SelfTest(context.Background())
		fmt.Printf("channels: %v\noutputs: %v\ngps: %s\n", res.Channels, res.Outputs, res.GPS)
		return nil
	}
	if calibrate != "" {
		log.Info("waiting for preheat before calibration",
			zap.Duration("preheat", cfg.Sensors.Preheat))
		time.Sleep(cfg.Sensors.Preheat)
		baseline, err := mon.CalibrateChannel(context.Background(), calibrate, samples)
		if err != nil {
			return fmt.Errorf("calibrate channel %s: %w", calibrate, err)
		}
		fmt.Printf("channel %s baseline: %.0f ohm\n", calibrate, baseline)
		return nil
	}

	if publisher != nil {
		snap := tracker.Snapshot()
		startup := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startup); err != nil {
			log.Warn("publish startup event", zap.Error(err))
		}
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("http server", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http status server listening", zap.String("addr", cfg.HTTP.Addr))
	}

	// Known-good state before the first tick.
	lights.Set(actuator.ColorGreen)

	log.Info("started",
		zap.Duration("poll", cfg.Poll),
		zap.String("broker", cfg.MQTT.Broker),
		zap.Duration("preheat", cfg.Sensors.Preheat))

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(mon, publisher, mqttStatus, tracker, log, time.Now, ticker.C, sigCh)
}

// runLoop drives the monitor from the tick channel until a shutdown
// signal arrives. Tick and signal channels are injected for tests.
func runLoop(mon *monitor.Monitor, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus,
	tracker *status.Tracker, log *zap.Logger, now func() time.Time,
	tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Info("shutting down", zap.String("signal", s.String()))
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if publisher != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event := mqtt.SystemEvent{
					Timestamp:  now(),
					Event:      "SHUTDOWN",
					Reason:     signalName,
					Retained:   true,
					RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
				}
				if err := publisher.PublishSystem(event); err != nil {
					log.Warn("publish shutdown event", zap.Error(err))
				}
			}
			return nil

		case <-tick:
			mon.Tick(now())
		}
	}
}

// newChannel builds a sensor channel from the shared front-end settings
// and the per-channel curve.
func newChannel(name string, s config.SensorsConfig, c config.ChannelConfig, log *zap.Logger) *sensor.Channel {
	return sensor.NewChannel(sensor.Params{
		Name:        name,
		VRef:        s.VRef,
		Rl:          s.Rl,
		CurveA:      c.CurveA,
		CurveB:      c.CurveB,
		BaselineOhm: c.BaselineOhm,
		Sensitivity: c.Sensitivity,
		Preheat:     s.Preheat,
	}, log)
}

// manualAddress prefers the profile's stored address over the config
// fallback.
func manualAddress(cfg *config.Config, db store.Store) string {
	profile, err := db.GetProfile()
	if err == nil && profile != nil && profile.ManualAddress != "" {
		return profile.ManualAddress
	}
	return cfg.Alerting.ManualAddress
}
