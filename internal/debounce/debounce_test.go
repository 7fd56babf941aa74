package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const delay = 50 * time.Millisecond

func TestByKey_CoalescesBurstToLastCall(t *testing.T) {
	debounced := ByKey[string](delay)

	var mu sync.Mutex
	var got []int
	for i := 1; i <= 3; i++ {
		debounced("k")(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(2 * delay)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{3}, got)
}

func TestKeyed_KeysAreIndependent(t *testing.T) {
	d := New[string](delay)
	var a, b atomic.Int32
	d.Schedule("a", func() { a.Add(1) })
	d.Schedule("b", func() { b.Add(1) })
	d.Schedule("a", func() { a.Add(10) })

	d.Wait()
	assert.Equal(t, int32(10), a.Load())
	assert.Equal(t, int32(1), b.Load())
}

func TestKeyed_HoldsScheduleWhileRunning(t *testing.T) {
	d := New[string](delay)

	started := make(chan struct{})
	release := make(chan struct{})
	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	d.Schedule("k", func() {
		record("first:start")
		close(started)
		<-release
		record("first:end")
	})

	<-started
	d.Schedule("k", func() { record("second") })

	// The held call must not run concurrently with the first one.
	time.Sleep(2 * delay)
	mu.Lock()
	assert.Equal(t, []string{"first:start"}, order)
	mu.Unlock()

	close(release)
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first:start", "first:end", "second"}, order)
}

func TestKeyed_ReentrantScheduleIsHeld(t *testing.T) {
	d := New[string](delay)
	var runs atomic.Int32
	var inFlight, overlap atomic.Bool

	var step func()
	step = func() {
		if !inFlight.CompareAndSwap(false, true) {
			overlap.Store(true)
		}
		if runs.Add(1) == 1 {
			d.Schedule("k", step)
		}
		inFlight.Store(false)
	}
	d.Schedule("k", step)

	d.Wait()
	assert.Equal(t, int32(2), runs.Load())
	assert.False(t, overlap.Load())
}

func TestKeyed_CancelPending(t *testing.T) {
	d := New[string](delay)
	var ran atomic.Bool
	cancel := d.Schedule("k", func() { ran.Store(true) })
	cancel()

	assert.Equal(t, 0, d.Pending())
	time.Sleep(2 * delay)
	assert.False(t, ran.Load())
}

func TestKeyed_CancelSupersededIsNoop(t *testing.T) {
	d := New[string](delay)
	var got atomic.Int32
	cancelFirst := d.Schedule("k", func() { got.Store(1) })
	d.Schedule("k", func() { got.Store(2) })
	cancelFirst()

	d.Wait()
	assert.Equal(t, int32(2), got.Load())
}

func TestKeyed_CancelAfterStartDoesNotAbort(t *testing.T) {
	d := New[string](delay)
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	cancel := d.Schedule("k", func() {
		close(started)
		<-release
		finished.Store(true)
	})
	<-started
	cancel()
	close(release)

	d.Wait()
	assert.True(t, finished.Load())
}

func TestKeyed_CancelHeld(t *testing.T) {
	d := New[string](delay)
	started := make(chan struct{})
	release := make(chan struct{})
	var heldRan atomic.Bool

	d.Schedule("k", func() {
		close(started)
		<-release
	})
	<-started
	cancel := d.Schedule("k", func() { heldRan.Store(true) })
	cancel()
	close(release)

	d.Wait()
	time.Sleep(2 * delay)
	assert.False(t, heldRan.Load())
}

func TestKeyed_Stop(t *testing.T) {
	d := New[int](delay)
	var ran atomic.Int32
	for i := range 5 {
		d.Schedule(i, func() { ran.Add(1) })
	}
	require.Equal(t, 5, d.Pending())

	d.Stop()
	assert.Equal(t, 0, d.Pending())
	time.Sleep(2 * delay)
	assert.Equal(t, int32(0), ran.Load())
}
