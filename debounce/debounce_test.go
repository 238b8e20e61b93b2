package debounce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gocardgate/cardid"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestFirstReadAccepted(t *testing.T) {
	f := New(0)
	assert.Equal(t, DefaultCooldown, f.Cooldown())
	assert.False(t, f.State().HasLast)

	assert.True(t, f.ShouldProcess("0xdeadbeef", t0))

	st := f.State()
	assert.True(t, st.HasLast)
	assert.Equal(t, cardid.ID("0xdeadbeef"), st.LastID)
	assert.Equal(t, t0, st.LastAccepted)
}

func TestSameCardWithinCooldownSuppressed(t *testing.T) {
	f := New(5 * time.Second)
	assert.True(t, f.ShouldProcess("0xdeadbeef", t0))
	assert.False(t, f.ShouldProcess("0xdeadbeef", t0.Add(2*time.Second)))
	assert.False(t, f.ShouldProcess("0xdeadbeef", t0.Add(4999*time.Millisecond)))

	// Suppressed reads do not move the window.
	assert.Equal(t, t0, f.State().LastAccepted)
}

func TestSameCardAfterCooldownAccepted(t *testing.T) {
	f := New(5 * time.Second)
	assert.True(t, f.ShouldProcess("0xdeadbeef", t0))
	assert.True(t, f.ShouldProcess("0xdeadbeef", t0.Add(5*time.Second)))
	assert.True(t, f.ShouldProcess("0xdeadbeef", t0.Add(10*time.Second+time.Millisecond)))
}

func TestDifferentCardNeverSuppressed(t *testing.T) {
	f := New(5 * time.Second)
	assert.True(t, f.ShouldProcess("0xaaaaaaaa", t0))
	assert.True(t, f.ShouldProcess("0xbbbbbbbb", t0))
	assert.True(t, f.ShouldProcess("0xaaaaaaaa", t0.Add(time.Millisecond)))
	assert.Equal(t, cardid.ID("0xaaaaaaaa"), f.State().LastID)
}

func TestAlternatingCardsResetWindow(t *testing.T) {
	f := New(5 * time.Second)
	assert.True(t, f.ShouldProcess("0xaaaaaaaa", t0))
	assert.True(t, f.ShouldProcess("0xbbbbbbbb", t0.Add(time.Second)))
	// Only the last accepted id is remembered, so A is fresh again.
	assert.True(t, f.ShouldProcess("0xaaaaaaaa", t0.Add(2*time.Second)))
}
