package openai

// Config contains settings shared by every OpenAI-compatible client.
// Endpoint and credential come from the provider record.
//   - Timeout: Maps to option.WithRequestTimeout() (in seconds)
//   - MaxRetries: Maps to option.WithMaxRetries(). Keep it at 0 so rate
//     limits reach the failover loop instead of being retried in the SDK.
type Config struct {
	Timeout    int `env:"OPENAI_TIMEOUT"     envDefault:"60"`
	MaxRetries int `env:"OPENAI_MAX_RETRIES" envDefault:"0"`
}
