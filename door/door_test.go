package door

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStrike struct {
	mu      sync.Mutex
	calls   []string
}

func (f *fakeStrike) Unlock() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "unlock")
	return nil
}

func (f *fakeStrike) Lock() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "lock")
	return nil
}

func (f *fakeStrike) Release() error { return nil }

func (f *fakeStrike) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestPulse(t *testing.T) {
	s := &fakeStrike{}
	p := NewPulser(s)

	p.Pulse(20 * time.Millisecond)
	assert.True(t, p.Unlocked())
	assert.Equal(t, []string{"unlock"}, s.history())

	p.Wait()
	assert.False(t, p.Unlocked())
	assert.Equal(t, []string{"unlock", "lock"}, s.history())
}

func TestOverlappingPulsesExtend(t *testing.T) {
	s := &fakeStrike{}
	p := NewPulser(s)

	start := time.Now()
	p.Pulse(60 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	p.Pulse(60 * time.Millisecond)
	p.Wait()

	assert.GreaterOrEqual(t, time.Since(start), 85*time.Millisecond)
	assert.Equal(t, []string{"unlock", "lock"}, s.history(), "one unlock/lock cycle")
}

func TestSequentialPulses(t *testing.T) {
	s := &fakeStrike{}
	p := NewPulser(s)

	p.Pulse(5 * time.Millisecond)
	p.Wait()
	p.Pulse(5 * time.Millisecond)
	p.Wait()

	assert.Equal(t, []string{"unlock", "lock", "unlock", "lock"}, s.history())
}

func TestNewWithoutPin(t *testing.T) {
	s, err := New(Config{Type: "gpio_low"})
	require.NoError(t, err)
	assert.IsType(t, &Noop{}, s)

	pin := 18
	s, err = New(Config{Type: "none", Pin: &pin})
	require.NoError(t, err)
	assert.IsType(t, &Noop{}, s)
	require.NoError(t, s.Unlock())
	require.NoError(t, s.Lock())
	require.NoError(t, s.Release())
}

func TestNewRejectsBadConfig(t *testing.T) {
	pin := 18
	_, err := New(Config{Type: "trapdoor", Pin: &pin})
	assert.Error(t, err)

	bad := 99
	_, err = New(Config{Type: "gpio_low", Pin: &bad})
	assert.Error(t, err)
}
