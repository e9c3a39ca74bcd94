package actuator

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/gasguard/internal/gpio"
)

func testQueue(w gpio.Writer, spacing time.Duration, retries int) *Queue {
	return NewQueue(w, QueueConfig{
		Spacing:      spacing,
		Retries:      retries,
		RetryBackoff: time.Millisecond,
	}, nil)
}

func TestQueueFIFOPerPin(t *testing.T) {
	fake := gpio.NewFakeWriter()
	q := testQueue(fake, time.Millisecond, 0)
	defer q.ClearAll()

	values := []int{1, 0, 1, 0, 1}
	var wg sync.WaitGroup
	done := make([]error, len(values))

	// Enqueue in order from one goroutine; completion order must match.
	for i, v := range values {
		i, v := i, v
		wg.Add(1)
		ch, err := q.submit(17, v, time.Second)
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		go func() {
			defer wg.Done()
			done[i] = <-ch
		}()
	}
	wg.Wait()

	for i, err := range done {
		if err != nil {
			t.Errorf("op %d failed: %v", i, err)
		}
	}

	writes := fake.WritesFor(17)
	if len(writes) != len(values) {
		t.Fatalf("writes = %d, want %d", len(writes), len(values))
	}
	for i, w := range writes {
		if w.Value != values[i] {
			t.Errorf("write %d value = %d, want %d", i, w.Value, values[i])
		}
	}
}

func TestQueueSpacing(t *testing.T) {
	const spacing = 60 * time.Millisecond

	fake := gpio.NewFakeWriter()
	q := testQueue(fake, spacing, 0)
	defer q.ClearAll()

	for i := 0; i < 3; i++ {
		if err := q.Enqueue(18, i%2, time.Second); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	writes := fake.WritesFor(18)
	if len(writes) != 3 {
		t.Fatalf("writes = %d, want 3", len(writes))
	}
	for i := 1; i < len(writes); i++ {
		gap := writes[i].Time.Sub(writes[i-1].Time)
		if gap < spacing-5*time.Millisecond {
			t.Errorf("gap %d = %v, want >= %v", i, gap, spacing)
		}
	}
}

func TestQueuePinsRunIndependently(t *testing.T) {
	fake := gpio.NewFakeWriter()
	q := testQueue(fake, 50*time.Millisecond, 0)
	defer q.ClearAll()

	// Saturate pin 17, then write pin 27. The second pin must not wait
	// behind the first pin's spacing.
	if err := q.Enqueue(17, 1, time.Second); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	start := time.Now()
	if err := q.Enqueue(27, 1, time.Second); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Errorf("cross-pin write blocked for %v", elapsed)
	}
}

func TestQueueRetries(t *testing.T) {
	fake := gpio.NewFakeWriter()
	fake.WriteError = errors.New("line busy")
	fake.FailNext[22] = 2

	q := testQueue(fake, time.Millisecond, 2)
	defer q.ClearAll()

	if err := q.Enqueue(22, 1, time.Second); err != nil {
		t.Fatalf("write should succeed on the final retry: %v", err)
	}
	if got := fake.LastValue(22); got != 1 {
		t.Errorf("pin value = %d, want 1", got)
	}
}

func TestQueueRetriesExhausted(t *testing.T) {
	fake := gpio.NewFakeWriter()
	fake.WriteError = errors.New("line busy")
	fake.FailNext[22] = 5

	q := testQueue(fake, time.Millisecond, 2)
	defer q.ClearAll()

	err := q.Enqueue(22, 1, time.Second)
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if !errors.Is(err, fake.WriteError) {
		t.Errorf("error %v does not wrap the write error", err)
	}
}

func TestQueueClearAll(t *testing.T) {
	fake := gpio.NewFakeWriter()
	q := testQueue(fake, 30*time.Millisecond, 0)

	// Stack operations so some are still queued when ClearAll runs.
	var chans []chan error
	for i := 0; i < 5; i++ {
		ch, err := q.submit(17, 1, time.Second)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		chans = append(chans, ch)
	}

	q.ClearAll()

	var failed int
	for _, ch := range chans {
		if err := <-ch; errors.Is(err, ErrQueueClosed) {
			failed++
		}
	}
	if failed == 0 {
		t.Error("ClearAll failed no queued operations")
	}

	if err := q.Enqueue(17, 0, time.Second); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("enqueue after ClearAll = %v, want ErrQueueClosed", err)
	}
	if q.Depth() != 0 {
		t.Errorf("depth after ClearAll = %d, want 0", q.Depth())
	}
}
