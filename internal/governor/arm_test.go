package governor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArm_FullLifecycle(t *testing.T) {
	a := NewArm(0) // zero time-lock for fast test
	assert.Equal(t, Disarmed, a.State())
	assert.False(t, a.Allow())

	a.Request()
	assert.Equal(t, ArmRequested, a.State())

	require.NoError(t, a.Confirm())
	assert.Equal(t, Armed, a.State())
	assert.False(t, a.Allow())

	require.NoError(t, a.Verify())
	assert.Equal(t, Verified, a.State())
	assert.True(t, a.Allow())
}

func TestArm_ConfirmRespectsTimeLock(t *testing.T) {
	a := NewArm(3600)
	a.Request()
	err := a.Confirm()
	assert.Error(t, err)
	assert.Equal(t, ArmRequested, a.State())
}

func TestArm_RestoreFromSnapshot_AlwaysResetsVerified(t *testing.T) {
	a := NewArm(0)
	a.RestoreFromSnapshot(true)
	assert.Equal(t, Armed, a.State())
	assert.False(t, a.Allow(), "VERIFIED must never survive a restart")

	a2 := NewArm(0)
	a2.RestoreFromSnapshot(false)
	assert.Equal(t, Disarmed, a2.State())
}

func TestArm_Disarm(t *testing.T) {
	a := NewArm(0)
	a.Request()
	require.NoError(t, a.Confirm())
	require.NoError(t, a.Verify())
	a.Disarm()
	assert.Equal(t, Disarmed, a.State())
}

func TestArm_ConfirmWithoutRequest(t *testing.T) {
	a := NewArm(0)
	assert.Error(t, a.Confirm())
}

func TestArm_TimeLockElapses(t *testing.T) {
	a := NewArm(0)
	a.Request()
	time.Sleep(time.Millisecond)
	assert.NoError(t, a.Confirm())
}
