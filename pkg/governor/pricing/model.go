package pricing

import (
	"strings"
	"sync"
)

// ModelID identifies a known upstream model family.
type ModelID string

const (
	// ModelKimi is the kimi model family.
	ModelKimi ModelID = "kimi"

	// ModelQwen is the qwen model family.
	ModelQwen ModelID = "qwen"

	// ModelHuggingFace is the huggingface-hosted model family.
	ModelHuggingFace ModelID = "huggingface"

	// ModelUnknown is any model not in the closed set above.
	ModelUnknown ModelID = "unknown"
)

// ParseModel resolves a raw model string to a ModelID. Matching is
// case-insensitive on the family prefix ("kimi-k2" resolves to kimi).
// This is the single place raw model strings are interpreted; callers
// hold on to the returned ModelID.
func ParseModel(name string) ModelID {
	lower := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.HasPrefix(lower, string(ModelKimi)):
		return ModelKimi
	case strings.HasPrefix(lower, string(ModelQwen)):
		return ModelQwen
	case strings.HasPrefix(lower, string(ModelHuggingFace)):
		return ModelHuggingFace
	default:
		return ModelUnknown
	}
}

// defaultRates are the built-in USD rates per 1000 tokens.
var defaultRates = map[ModelID]float64{
	ModelKimi:        0.01,
	ModelQwen:        0.005,
	ModelHuggingFace: 0.002,
}

// Table is a per-model rate table. It is thread-safe and supports
// hot-reload of rates while in use.
type Table struct {
	mu sync.RWMutex

	// rates maps model family to USD per 1000 tokens.
	rates map[ModelID]float64

	// defaultRate prices models outside the closed set. It mirrors the
	// kimi rate, the most common caller, rather than assuming the most
	// conservative of the known set.
	defaultRate float64
}

// NewTable creates a rate table with the built-in rates.
func NewTable() *Table {
	t := &Table{}
	t.UpdateRates(defaultRates)
	return t
}

// EstimateCost returns the estimated USD cost for tokens of the given
// model. Pure lookup, no error path.
func (t *Table) EstimateCost(model ModelID, tokens int64) float64 {
	if tokens <= 0 {
		return 0
	}

	t.mu.RLock()
	rate, ok := t.rates[model]
	if !ok {
		rate = t.defaultRate
	}
	t.mu.RUnlock()

	return float64(tokens) / 1000.0 * rate
}

// Rate returns the USD-per-1000-tokens rate for a model.
func (t *Table) Rate(model ModelID) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if rate, ok := t.rates[model]; ok {
		return rate
	}
	return t.defaultRate
}

// UpdateRates replaces the rate table (hot-reload support). Models
// missing from the new map fall back to the built-in rate; the default
// rate tracks the kimi entry.
func (t *Table) UpdateRates(rates map[ModelID]float64) {
	merged := make(map[ModelID]float64, len(defaultRates))
	for model, rate := range defaultRates {
		merged[model] = rate
	}
	for model, rate := range rates {
		if rate > 0 {
			merged[model] = rate
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.rates = merged
	t.defaultRate = merged[ModelKimi]
}
