package realtime

import (
	"sync"

	"github.com/shopspring/decimal"
)

// ModelPricing is the USD price per one million tokens, split by
// modality. Audio tokens cost an order of magnitude more than text.
type ModelPricing struct {
	InputText   decimal.Decimal
	InputAudio  decimal.Decimal
	OutputText  decimal.Decimal
	OutputAudio decimal.Decimal
}

var million = decimal.NewFromInt(1_000_000)

var modelPricing = map[string]ModelPricing{
	"gpt-4o-realtime-preview": {
		InputText:   decimal.RequireFromString("5"),
		InputAudio:  decimal.RequireFromString("40"),
		OutputText:  decimal.RequireFromString("20"),
		OutputAudio: decimal.RequireFromString("80"),
	},
	"gpt-4o-mini-realtime-preview": {
		InputText:   decimal.RequireFromString("0.60"),
		InputAudio:  decimal.RequireFromString("10"),
		OutputText:  decimal.RequireFromString("2.40"),
		OutputAudio: decimal.RequireFromString("20"),
	},
}

// PricingFor returns the price table for a model. Unknown models fall
// back to the most expensive table so cost is never underreported.
func PricingFor(model string) ModelPricing {
	for name, pricing := range modelPricing {
		if name == model {
			return pricing
		}
	}
	return modelPricing["gpt-4o-realtime-preview"]
}

// TokenUsage accumulates token counts over a call, split by direction
// and modality.
type TokenUsage struct {
	InputTextTokens   int64
	InputAudioTokens  int64
	OutputTextTokens  int64
	OutputAudioTokens int64
}

// Total returns the combined token count
func (u TokenUsage) Total() int64 {
	return u.InputTextTokens + u.InputAudioTokens + u.OutputTextTokens + u.OutputAudioTokens
}

// CostTracker accumulates model usage and cost for one call. Each
// response reports its own usage, so AddUsage sums deltas.
type CostTracker struct {
	mu      sync.Mutex
	model   string
	pricing ModelPricing
	usage   TokenUsage
	cost    decimal.Decimal
}

// NewCostTracker creates a tracker priced for the given model
func NewCostTracker(model string) *CostTracker {
	return &CostTracker{
		model:   model,
		pricing: PricingFor(model),
		cost:    decimal.Zero,
	}
}

// AddUsage records one response's token usage and returns the cost of
// that response alone.
func (ct *CostTracker) AddUsage(inputText, inputAudio, outputText, outputAudio int64) decimal.Decimal {
	delta := tokenCost(inputText, ct.pricing.InputText).
		Add(tokenCost(inputAudio, ct.pricing.InputAudio)).
		Add(tokenCost(outputText, ct.pricing.OutputText)).
		Add(tokenCost(outputAudio, ct.pricing.OutputAudio))

	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.usage.InputTextTokens += inputText
	ct.usage.InputAudioTokens += inputAudio
	ct.usage.OutputTextTokens += outputText
	ct.usage.OutputAudioTokens += outputAudio
	ct.cost = ct.cost.Add(delta)

	return delta
}

// Usage returns a snapshot of the accumulated token counts
func (ct *CostTracker) Usage() TokenUsage {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.usage
}

// Cost returns the accumulated call cost in USD
func (ct *CostTracker) Cost() decimal.Decimal {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.cost
}

// Model returns the model the tracker prices against
func (ct *CostTracker) Model() string {
	return ct.model
}

func tokenCost(tokens int64, pricePerMillion decimal.Decimal) decimal.Decimal {
	if tokens <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(tokens).Mul(pricePerMillion).Div(million)
}
