package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	at    []time.Time
}

func (r *recorder) fn(clock *ManualClock) func(string) {
	return func(s string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, s)
		r.at = append(r.at, clock.Now())
	}
}

func TestDebouncer_BurstDeliversLastArgumentOnce(t *testing.T) {
	clock := NewManualClock()
	rec := &recorder{}
	d := New(300*time.Millisecond, rec.fn(clock), WithClock(clock))
	start := clock.Now()

	d.Call("t")
	clock.Advance(50 * time.Millisecond)
	d.Call("t+50")
	clock.Advance(50 * time.Millisecond)
	d.Call("t+100")

	clock.Advance(299 * time.Millisecond)
	assert.Empty(t, rec.calls, "must not fire before delay elapses after the last call")

	clock.Advance(1 * time.Millisecond)
	require.Equal(t, []string{"t+100"}, rec.calls)
	assert.Equal(t, start.Add(400*time.Millisecond), rec.at[0])

	clock.Advance(time.Second)
	assert.Len(t, rec.calls, 1)
	assert.False(t, d.Pending())
}

func TestDebouncer_SingleCallFires(t *testing.T) {
	clock := NewManualClock()
	rec := &recorder{}
	d := New(300*time.Millisecond, rec.fn(clock), WithClock(clock))

	d.Call("only")
	assert.True(t, d.Pending())
	clock.Advance(300 * time.Millisecond)
	assert.Equal(t, []string{"only"}, rec.calls)
}

func TestDebouncer_CancelSuppressesPending(t *testing.T) {
	clock := NewManualClock()
	rec := &recorder{}
	d := New(300*time.Millisecond, rec.fn(clock), WithClock(clock))

	cancel := d.Call("x")
	cancel()
	clock.Advance(time.Second)
	assert.Empty(t, rec.calls)
	assert.Zero(t, clock.Waiting())
}

func TestDebouncer_StaleCancelIsNoop(t *testing.T) {
	clock := NewManualClock()
	rec := &recorder{}
	d := New(300*time.Millisecond, rec.fn(clock), WithClock(clock))

	first := d.Call("first")
	d.Call("second")
	first()
	clock.Advance(300 * time.Millisecond)
	assert.Equal(t, []string{"second"}, rec.calls)

	// after firing the handle has nothing to cancel
	done := d.Call("third")
	clock.Advance(300 * time.Millisecond)
	done()
	assert.Equal(t, []string{"second", "third"}, rec.calls)
}

func TestDebouncer_Stop(t *testing.T) {
	clock := NewManualClock()
	rec := &recorder{}
	d := New(300*time.Millisecond, rec.fn(clock), WithClock(clock))

	d.Call("x")
	d.Stop()
	clock.Advance(time.Second)
	assert.Empty(t, rec.calls)
}

func TestDebouncer_RealClock(t *testing.T) {
	got := make(chan int, 4)
	d := New(20*time.Millisecond, func(n int) { got <- n })
	for i := 1; i <= 3; i++ {
		d.Call(i)
	}
	select {
	case n := <-got:
		assert.Equal(t, 3, n)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced call never fired")
	}
	select {
	case n := <-got:
		t.Fatalf("unexpected second delivery %d", n)
	case <-time.After(60 * time.Millisecond):
	}
}
