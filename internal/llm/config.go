package llm

// ModelTier selects how much reasoning capability a request gets.
type ModelTier string

// TierStandard is for structured mapping inference, the only model call
// the engine makes.
const TierStandard ModelTier = "standard"

// Provider identifies an LLM backend.
type Provider string

// ProviderGemini is the Google Gemini backend.
const ProviderGemini Provider = "gemini"

// Config selects the provider and the model used per tier.
type Config struct {
	Provider Provider
	Standard string
}

// DefaultConfig returns the Gemini defaults used for mapping inference.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Standard: "gemini-2.5-flash",
	}
}

// GetModel returns the model name for a tier. Unknown tiers fall back to
// the standard model.
func (c *Config) GetModel(tier ModelTier) string {
	return c.Standard
}
