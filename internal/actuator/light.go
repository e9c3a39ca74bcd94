package actuator

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Color is the indicator light state. The light is exclusive: at most one
// LED is lit at a time.
type Color string

const (
	ColorOff    Color = "OFF"
	ColorRed    Color = "RED"
	ColorGreen  Color = "GREEN"
	ColorYellow Color = "YELLOW"
)

// LightPins maps each color to its BCM pin.
type LightPins struct {
	Green  int
	Yellow int
	Red    int
}

// Lights drives the three-LED indicator through the write queue.
type Lights struct {
	queue   *Queue
	pins    LightPins
	timeout time.Duration
	log     *zap.Logger

	mu      sync.Mutex
	current Color
}

// NewLights creates a light controller. All writes go through the queue,
// so a burst of color changes serializes instead of racing on the pins.
func NewLights(queue *Queue, pins LightPins, timeout time.Duration, log *zap.Logger) *Lights {
	if log == nil {
		log = zap.NewNop()
	}
	return &Lights{
		queue:   queue,
		pins:    pins,
		timeout: timeout,
		log:     log,
		current: ColorOff,
	}
}

// Set switches the indicator to the given color. The other two LEDs are
// written low before the target goes high so two colors never overlap.
func (l *Lights) Set(color Color) {
	l.mu.Lock()
	defer l.mu.Unlock()

	target, others := l.pinsFor(color)
	for _, pin := range others {
		l.queue.EnqueueAsync(pin, 0, l.timeout)
	}
	if target >= 0 {
		l.queue.EnqueueAsync(target, 1, l.timeout)
	}

	if color != l.current {
		l.log.Info("indicator light", zap.String("color", string(color)))
	}
	l.current = color
}

// Off extinguishes all LEDs.
func (l *Lights) Off() {
	l.Set(ColorOff)
}

// Pins returns the LED pins in green, yellow, red order.
func (l *Lights) Pins() []int {
	return []int{l.pins.Green, l.pins.Yellow, l.pins.Red}
}

// Current returns the color most recently requested.
func (l *Lights) Current() Color {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// pinsFor returns the target pin for a color (-1 for off) and the pins
// that must be cleared first.
func (l *Lights) pinsFor(color Color) (target int, others []int) {
	switch color {
	case ColorGreen:
		return l.pins.Green, []int{l.pins.Yellow, l.pins.Red}
	case ColorYellow:
		return l.pins.Yellow, []int{l.pins.Green, l.pins.Red}
	case ColorRed:
		return l.pins.Red, []int{l.pins.Green, l.pins.Yellow}
	default:
		return -1, []int{l.pins.Green, l.pins.Yellow, l.pins.Red}
	}
}
