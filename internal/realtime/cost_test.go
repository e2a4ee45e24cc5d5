package realtime

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCostTrackerAccumulates(t *testing.T) {
	ct := NewCostTracker("gpt-4o-realtime-preview")

	// 1M of each bucket makes the expected cost the price table itself
	delta := ct.AddUsage(1_000_000, 1_000_000, 1_000_000, 1_000_000)

	// 5 + 40 + 20 + 80
	assert.True(t, delta.Equal(decimal.RequireFromString("145")), "got %s", delta)
	assert.True(t, ct.Cost().Equal(delta))

	usage := ct.Usage()
	assert.Equal(t, int64(1_000_000), usage.InputTextTokens)
	assert.Equal(t, int64(4_000_000), usage.Total())
}

func TestCostTrackerDeltaPerResponse(t *testing.T) {
	ct := NewCostTracker("gpt-4o-mini-realtime-preview")

	first := ct.AddUsage(1000, 0, 500, 0)
	second := ct.AddUsage(0, 2000, 0, 1000)

	// 1000 text in at $0.60/1M + 500 text out at $2.40/1M
	expectedFirst := decimal.RequireFromString("0.0018")
	assert.True(t, first.Equal(expectedFirst), "got %s", first)

	// 2000 audio in at $10/1M + 1000 audio out at $20/1M
	expectedSecond := decimal.RequireFromString("0.04")
	assert.True(t, second.Equal(expectedSecond), "got %s", second)

	assert.True(t, ct.Cost().Equal(expectedFirst.Add(expectedSecond)))
}

func TestCostTrackerZeroAndNegativeTokens(t *testing.T) {
	ct := NewCostTracker("gpt-4o-realtime-preview")

	delta := ct.AddUsage(0, 0, 0, 0)
	assert.True(t, delta.IsZero())

	// A malformed usage payload must not drive the cost negative
	delta = ct.AddUsage(-100, 0, 0, 0)
	assert.True(t, delta.IsZero())
}

func TestPricingForUnknownModelFallsBack(t *testing.T) {
	pricing := PricingFor("some-future-model")

	require.True(t, pricing.InputAudio.Equal(decimal.RequireFromString("40")),
		"unknown models must be priced at the most expensive table")
}

func TestCostTrackerConcurrentUsage(t *testing.T) {
	ct := NewCostTracker("gpt-4o-realtime-preview")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ct.AddUsage(100, 200, 300, 400)
		}()
	}
	wg.Wait()

	usage := ct.Usage()
	assert.Equal(t, int64(50*100), usage.InputTextTokens)
	assert.Equal(t, int64(50*400), usage.OutputAudioTokens)
}
