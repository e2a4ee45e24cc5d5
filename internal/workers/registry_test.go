package workers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orpheus/pkg/errors"
)

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(newMockWorker("reaper", time.Minute, true)))

	err := registry.Register(newMockWorker("reaper", time.Minute, true))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAlreadyExists))

	assert.Equal(t, 1, registry.Count())
}

func TestRegistryServesWorkerHealth(t *testing.T) {
	registry := NewRegistry()

	worker := newMockWorker("reporter", time.Minute, true)
	require.NoError(t, registry.Register(worker))

	worker.RecordRun(100 * time.Millisecond)
	worker.RecordError(errors.New("boom"), 200*time.Millisecond)

	health := registry.GetAllHealth()
	require.Contains(t, health, "reporter")

	h := health["reporter"]
	assert.Equal(t, int64(2), h.RunCount)
	assert.Equal(t, int64(1), h.ErrorCount)
	assert.Equal(t, "boom", h.LastError)
	assert.Equal(t, 150*time.Millisecond, h.AvgDuration)
}

func TestRegistryEnableWorker(t *testing.T) {
	registry := NewRegistry()

	worker := newMockWorker("compiler", time.Minute, true)
	require.NoError(t, registry.Register(worker))

	require.NoError(t, registry.EnableWorker("compiler", false))
	assert.False(t, worker.Enabled())

	err := registry.EnableWorker("missing", true)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRegistryUnhealthy(t *testing.T) {
	registry := NewRegistry()

	healthy := newMockWorker("healthy", time.Minute, true)
	healthy.RecordRun(time.Millisecond)

	stale := newMockWorker("stale", time.Minute, true)
	stale.RecordRun(time.Millisecond)
	// Backdate the last run past the staleness threshold
	stale.healthMu.Lock()
	stale.lastRun = time.Now().Add(-time.Hour)
	stale.healthMu.Unlock()

	disabled := newMockWorker("disabled", time.Minute, false)

	require.NoError(t, registry.Register(healthy))
	require.NoError(t, registry.Register(stale))
	require.NoError(t, registry.Register(disabled))

	unhealthy := registry.Unhealthy(10 * time.Minute)
	assert.Equal(t, []string{"stale"}, unhealthy)
}
