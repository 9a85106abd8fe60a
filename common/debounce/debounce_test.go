package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu     sync.Mutex
	values []string
}

func (r *recorder) record(v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.values...)
}

func TestDebounceCoalesces(t *testing.T) {
	var r recorder
	d := New(50*time.Millisecond, r.record)

	d.Trigger("a")
	d.Trigger("ab")
	d.Trigger("abc")
	assert.True(t, d.Pending())

	assert.Eventually(t, func() bool {
		return len(r.get()) == 1
	}, time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"abc"}, r.get())
	assert.False(t, d.Pending())
}

func TestDebounceResetsTimer(t *testing.T) {
	var r recorder
	d := New(100*time.Millisecond, r.record)

	d.Trigger("1")
	time.Sleep(60 * time.Millisecond)
	d.Trigger("2")
	time.Sleep(60 * time.Millisecond)

	// the second trigger restarted the quiet period
	assert.Empty(t, r.get())

	assert.Eventually(t, func() bool {
		return len(r.get()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"2"}, r.get())
}

func TestDebounceFlushAndStop(t *testing.T) {
	var r recorder
	d := New(time.Hour, r.record)

	d.Flush()
	assert.Empty(t, r.get())

	d.Trigger("x")
	d.Flush()
	assert.Equal(t, []string{"x"}, r.get())

	d.Trigger("y")
	d.Stop()
	d.Trigger("z")
	d.Flush()
	assert.Equal(t, []string{"x"}, r.get())
}

func TestDefaultInterval(t *testing.T) {
	d := New(0, func(int) {})
	assert.Equal(t, DefaultInterval, d.interval)
}

func TestRetriggerNeverFiresEarly(t *testing.T) {
	const interval = 5 * time.Millisecond

	type firing struct {
		value int
		at    time.Time
	}

	for i := 0; i < 50; i++ {
		fired := make(chan firing, 2)
		d := New(interval, func(v int) { fired <- firing{v, time.Now()} })

		d.Trigger(1)
		time.Sleep(interval)

		// the first timer may be expiring right now, the second trigger must still restart the quiet period
		last := time.Now()
		d.Trigger(2)

		for done := false; !done; {
			select {
			case f := <-fired:
				if f.value == 2 {
					assert.GreaterOrEqual(t, f.at.Sub(last), interval, "iteration %d", i)
					done = true
				}
			case <-time.After(time.Second):
				t.Fatal("action never fired")
			}
		}
		d.Stop()
	}
}
