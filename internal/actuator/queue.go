// Package actuator serializes writes to physical outputs and drives the
// indicator light and buzzer through a per-pin write queue.
package actuator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/gasguard/internal/gpio"
)

var (
	// ErrBusy is returned when a pin's queue is full.
	ErrBusy = errors.New("actuator: queue busy")

	// ErrQueueClosed is returned for operations failed by ClearAll or
	// enqueued after shutdown.
	ErrQueueClosed = errors.New("actuator: queue closed")
)

// maxDepth bounds the number of queued operations per pin.
const maxDepth = 64

// QueueConfig tunes the write queue.
type QueueConfig struct {
	// Spacing is the minimum gap between the end of one write and the
	// start of the next on the same pin.
	Spacing time.Duration

	// Retries is the number of additional attempts after a failed write.
	Retries int

	// RetryBackoff is the fixed delay before each retry.
	RetryBackoff time.Duration
}

// DefaultQueueConfig matches the reference hardware tuning.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Spacing:      100 * time.Millisecond,
		Retries:      2,
		RetryBackoff: 100 * time.Millisecond,
	}
}

type op struct {
	pin     int
	value   int
	timeout time.Duration
	done    chan error
}

// pinWorker holds the FIFO for one pin. At most one operation per pin is
// in flight at any time.
type pinWorker struct {
	mu      sync.Mutex
	cond    *sync.Cond
	ops     []*op
	closed  bool
	lastEnd time.Time
}

// Queue serializes GPIO writes per pin with spacing and retry discipline.
// Construct with NewQueue, pass by reference, and Shutdown when done;
// there is no package-level instance.
type Queue struct {
	writer gpio.Writer
	cfg    QueueConfig
	log    *zap.Logger

	mu      sync.Mutex
	workers map[int]*pinWorker
	closed  bool
	wg      sync.WaitGroup
}

// NewQueue creates a write queue on top of the given GPIO writer.
func NewQueue(writer gpio.Writer, cfg QueueConfig, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Spacing <= 0 {
		cfg.Spacing = DefaultQueueConfig().Spacing
	}
	return &Queue{
		writer:  writer,
		cfg:     cfg,
		log:     log,
		workers: make(map[int]*pinWorker),
	}
}

// Enqueue queues a write and blocks until it resolves. The returned error
// is nil on success, ErrBusy/ErrQueueClosed for queue conditions, or the
// underlying write error once retries are exhausted.
func (q *Queue) Enqueue(pin, value int, timeout time.Duration) error {
	done, err := q.submit(pin, value, timeout)
	if err != nil {
		return err
	}
	return <-done
}

// EnqueueAsync queues a write without waiting for the result. Failures
// are logged when the operation eventually resolves.
func (q *Queue) EnqueueAsync(pin, value int, timeout time.Duration) {
	done, err := q.submit(pin, value, timeout)
	if err != nil {
		q.log.Warn("actuator write rejected",
			zap.Int("pin", pin), zap.Int("value", value), zap.Error(err))
		return
	}
	go func() {
		if err := <-done; err != nil {
			q.log.Warn("actuator write failed",
				zap.Int("pin", pin), zap.Int("value", value), zap.Error(err))
		}
	}()
}

func (q *Queue) submit(pin, value int, timeout time.Duration) (chan error, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	w, ok := q.workers[pin]
	if !ok {
		w = &pinWorker{}
		w.cond = sync.NewCond(&w.mu)
		q.workers[pin] = w
		q.wg.Add(1)
		go q.runWorker(w)
	}
	q.mu.Unlock()

	o := &op{pin: pin, value: value, timeout: timeout, done: make(chan error, 1)}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrQueueClosed
	}
	if len(w.ops) >= maxDepth {
		return nil, ErrBusy
	}
	w.ops = append(w.ops, o)
	w.cond.Signal()
	return o.done, nil
}

// runWorker drains one pin's FIFO sequentially.
func (q *Queue) runWorker(w *pinWorker) {
	defer q.wg.Done()
	for {
		w.mu.Lock()
		for len(w.ops) == 0 && !w.closed {
			w.cond.Wait()
		}
		if w.closed && len(w.ops) == 0 {
			w.mu.Unlock()
			return
		}
		o := w.ops[0]
		w.ops = w.ops[1:]
		lastEnd := w.lastEnd
		w.mu.Unlock()

		// Minimum spacing measured from the end of the previous op.
		if !lastEnd.IsZero() {
			if wait := q.cfg.Spacing - time.Since(lastEnd); wait > 0 {
				time.Sleep(wait)
			}
		}

		err := q.execute(o)

		w.mu.Lock()
		w.lastEnd = time.Now()
		w.mu.Unlock()

		o.done <- err
	}
}

// execute performs the hardware write with the retry budget.
func (q *Queue) execute(o *op) error {
	var err error
	for attempt := 0; attempt <= q.cfg.Retries; attempt++ {
		if attempt > 0 {
			time.Sleep(q.cfg.RetryBackoff)
			q.log.Debug("retrying actuator write",
				zap.Int("pin", o.pin), zap.Int("attempt", attempt))
		}
		err = q.writer.Write(o.pin, o.value, o.timeout)
		if err == nil {
			return nil
		}
	}
	return fmt.Errorf("write pin %d after %d attempts: %w", o.pin, q.cfg.Retries+1, err)
}

// Depth returns the total number of queued (not yet started) operations.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	total := 0
	for _, w := range q.workers {
		w.mu.Lock()
		total += len(w.ops)
		w.mu.Unlock()
	}
	return total
}

// ClearAll fails every still-queued operation immediately and rejects new
// ones. In-flight operations finish; workers then exit. Used at shutdown.
func (q *Queue) ClearAll() {
	q.mu.Lock()
	q.closed = true
	workers := make([]*pinWorker, 0, len(q.workers))
	for _, w := range q.workers {
		workers = append(workers, w)
	}
	q.mu.Unlock()

	for _, w := range workers {
		w.mu.Lock()
		for _, o := range w.ops {
			o.done <- ErrQueueClosed
		}
		w.ops = nil
		w.closed = true
		w.cond.Broadcast()
		w.mu.Unlock()
	}
	q.wg.Wait()
}
