// Package application wires the comparison pipeline together: it loads the
// application configuration, validates incoming requests and runs the
// ComparisonService on top of the provider and unit infrastructure.
package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ahrav/go-sumbench/infrastructure/llm"
	"github.com/ahrav/go-sumbench/infrastructure/middleware"
	"github.com/ahrav/go-sumbench/infrastructure/units"
	"github.com/ahrav/go-sumbench/internal/domain"
	"github.com/ahrav/go-sumbench/internal/ports"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
// The key "summarization.samples_per_provider" is read from
// SUMBENCH_SUMMARIZATION_SAMPLES_PER_PROVIDER.
const EnvPrefix = "SUMBENCH"

// AppConfig is the complete runtime configuration of the tool and serves
// as the single entry point for the CLI and the HTTP server.
type AppConfig struct {
	// Server configures the HTTP transport started by "serve".
	Server ServerConfig `yaml:"server" mapstructure:"server" validate:"required"`
	// Log selects the logger level and encoding.
	Log LogConfig `yaml:"log" mapstructure:"log" validate:"required"`
	// Providers carries per-family credentials and endpoint overrides.
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	// LLM configures the resilience chain wrapped around every provider.
	LLM LLMConfig `yaml:"llm" mapstructure:"llm" validate:"required"`
	// Summarization holds the comparison pipeline settings.
	Summarization SummarizationConfig `yaml:"summarization" mapstructure:"summarization" validate:"required"`
	// Budget caps LLM usage per comparison. Zero values mean unlimited.
	Budget middleware.Budget `yaml:"budget" mapstructure:"budget"`
	// Tracing configures the OpenTelemetry exporter.
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
}

// ServerConfig defines the listen address and timeouts of the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	// Debug switches gin into debug mode.
	Debug        bool          `yaml:"debug" mapstructure:"debug"`
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"min=0"`
	// WriteTimeout is raised to AppConfig.ComparisonBound when shorter.
	// Zero disables it.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"min=0"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig selects the zap logger built by the CLI.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level" validate:"required,loglevel"`
	// Development enables the human-readable console encoder.
	Development bool `yaml:"development" mapstructure:"development"`
}

// ProviderCredentials holds the API key and optional endpoint of a family.
// An empty APIKey falls back to the family's own environment variable
// (OPENAI_API_KEY, ANTHROPIC_API_KEY, GOOGLE_API_KEY).
type ProviderCredentials struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
}

// ProvidersConfig groups the credentials of the three supported families.
type ProvidersConfig struct {
	OpenAI    ProviderCredentials `yaml:"openai" mapstructure:"openai"`
	Anthropic ProviderCredentials `yaml:"anthropic" mapstructure:"anthropic"`
	Google    ProviderCredentials `yaml:"google" mapstructure:"google"`
}

// byFamily returns the credentials keyed by llm family name.
func (c ProvidersConfig) byFamily() map[string]ProviderCredentials {
	return map[string]ProviderCredentials{
		llm.FamilyOpenAI:    c.OpenAI,
		llm.FamilyAnthropic: c.Anthropic,
		llm.FamilyGoogle:    c.Google,
	}
}

// LLMConfig configures the middleware chain of the capability layer.
type LLMConfig struct {
	// RequestTimeout bounds a single provider attempt.
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout" validate:"min=0"`
	// MaxRetries is the number of extra attempts after a retryable failure.
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelay time.Duration `yaml:"retry_delay" mapstructure:"retry_delay" validate:"min=0"`
	// RateLimitRPS of zero disables client-side rate limiting.
	RateLimitRPS   float64              `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps" validate:"min=0"`
	RateLimitBurst int                  `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst" validate:"min=1"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
	// MaxConcurrentRequests bounds the simultaneous attempts for one provider.
	MaxConcurrentRequests int `yaml:"max_concurrent_requests" mapstructure:"max_concurrent_requests" validate:"min=1,max=20"`
}

// CircuitBreakerConfig configures the breaker shared by a family's clients.
type CircuitBreakerConfig struct {
	// MaxFailures consecutive failures open the circuit. Zero disables it.
	MaxFailures int           `yaml:"max_failures" mapstructure:"max_failures" validate:"min=0"`
	Cooldown    time.Duration `yaml:"cooldown" mapstructure:"cooldown" validate:"min=0"`
}

// SummarizationConfig holds the comparison pipeline settings.
type SummarizationConfig struct {
	// SamplesPerProvider is K, the number of summaries requested per provider.
	SamplesPerProvider int `yaml:"samples_per_provider" mapstructure:"samples_per_provider" validate:"min=1,max=10"`
	// DefaultMaxWords applies when a request leaves MaxWords unset.
	DefaultMaxWords int `yaml:"default_max_words" mapstructure:"default_max_words" validate:"min=20,max=500"`
	// EvaluatorModel scores every provider's summaries.
	EvaluatorModel string `yaml:"evaluator_model" mapstructure:"evaluator_model" validate:"required"`
	// MaxConcurrentProviders bounds the provider pipelines run at once.
	MaxConcurrentProviders int `yaml:"max_concurrent_providers" mapstructure:"max_concurrent_providers" validate:"min=1,max=5"`
	// TieBreaker resolves equal averages: "first" or "error".
	TieBreaker string `yaml:"tie_breaker" mapstructure:"tie_breaker" validate:"oneof=first error"`
	// PromptTemplate overrides the generation prompt when set.
	PromptTemplate string `yaml:"prompt_template" mapstructure:"prompt_template"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Endpoint is the OTLP/HTTP collector host:port.
	Endpoint     string  `yaml:"endpoint" mapstructure:"endpoint" validate:"required_if=Enabled true"`
	SamplingRate float64 `yaml:"sampling_rate" mapstructure:"sampling_rate" validate:"min=0,max=1"`
	ServiceName  string  `yaml:"service_name" mapstructure:"service_name"`
	Insecure     bool    `yaml:"insecure" mapstructure:"insecure"`
}

// DefaultAppConfig returns the configuration used when nothing is set.
func DefaultAppConfig() AppConfig {
	resilience := llm.DefaultResilienceConfig()
	return AppConfig{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Log: LogConfig{Level: "info"},
		LLM: LLMConfig{
			RequestTimeout: resilience.RequestTimeout,
			MaxRetries:     resilience.MaxRetries,
			RetryDelay:     resilience.RetryDelay,
			RateLimitBurst: resilience.RateLimitBurst,
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures: resilience.BreakerMaxFailures,
				Cooldown:    resilience.BreakerCooldown,
			},
			MaxConcurrentRequests: domain.DefaultSamplesPerProvider,
		},
		Summarization: SummarizationConfig{
			SamplesPerProvider:     domain.DefaultSamplesPerProvider,
			DefaultMaxWords:        domain.DefaultMaxWords,
			EvaluatorModel:         units.DefaultEvaluatorModel,
			MaxConcurrentProviders: domain.MaxProviders,
			TieBreaker:             string(domain.TieFirst),
		},
		Tracing: TracingConfig{
			Endpoint:     "localhost:4318",
			SamplingRate: 1.0,
			ServiceName:  "sumbench",
			Insecure:     true,
		},
	}
}

// Validate checks every section against its struct tags and the budget
// limits.
func (c *AppConfig) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}
	if err := c.Budget.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}
	return nil
}

// Resilience converts the llm section into the capability layer's chain
// settings.
func (c *AppConfig) Resilience() llm.ResilienceConfig {
	r := llm.DefaultResilienceConfig()
	r.RequestTimeout = c.LLM.RequestTimeout
	r.MaxRetries = c.LLM.MaxRetries
	r.RetryDelay = c.LLM.RetryDelay
	r.RateLimitRPS = c.LLM.RateLimitRPS
	r.RateLimitBurst = c.LLM.RateLimitBurst
	r.BreakerMaxFailures = c.LLM.CircuitBreaker.MaxFailures
	r.BreakerCooldown = c.LLM.CircuitBreaker.Cooldown
	if c.Tracing.ServiceName != "" {
		r.ServiceName = c.Tracing.ServiceName
	}
	return r
}

// writeTimeoutMargin covers prompt building, parsing and response encoding
// around the provider calls of one comparison.
const writeTimeoutMargin = 30 * time.Second

// ProviderCallBound is the longest one provider call can take through the
// retry chain: every attempt hits the request timeout and every backoff
// hits its jittered ceiling. Rate limiter waits are not included.
func (c *AppConfig) ProviderCallBound() time.Duration {
	r := c.Resilience()
	bound := time.Duration(r.MaxRetries+1) * r.RequestTimeout
	for attempt := 0; attempt < r.MaxRetries; attempt++ {
		delay := r.RetryDelay * time.Duration(1<<uint(llm.ClampInt(attempt, 0, 30))) // #nosec G115 - bounded
		delay += delay / 4
		if r.MaxRetryDelay > 0 && delay > r.MaxRetryDelay {
			delay = r.MaxRetryDelay
		}
		bound += delay
	}
	return bound
}

// ComparisonBound is the longest a comparison request can keep its
// connection busy: one generation call followed by one evaluation call,
// both at ProviderCallBound, plus a fixed margin.
func (c *AppConfig) ComparisonBound() time.Duration {
	return 2*c.ProviderCallBound() + writeTimeoutMargin
}

// EffectiveServer returns the server settings with WriteTimeout raised to
// ComparisonBound so the server never cuts off a comparison the LLM
// settings still allow to finish.
func (c *AppConfig) EffectiveServer() ServerConfig {
	s := c.Server
	if s.WriteTimeout > 0 {
		s.WriteTimeout = max(s.WriteTimeout, c.ComparisonBound())
	}
	return s
}

// RegistryConfig builds the model catalog configuration. collector and
// breakerMetrics may be nil.
func (c *AppConfig) RegistryConfig(collector ports.MetricsCollector, breakerMetrics llm.CircuitBreakerMetrics) llm.RegistryConfig {
	providers := make(map[string]llm.ProviderConfig, len(llm.DefaultProviders))
	apiKeys := make(map[string]string, len(llm.DefaultProviders))
	creds := c.Providers.byFamily()

	for family, pc := range llm.DefaultProviders {
		if cred, ok := creds[family]; ok {
			if cred.BaseURL != "" {
				pc.BaseURL = cred.BaseURL
			}
			if cred.APIKey != "" {
				apiKeys[family] = cred.APIKey
			}
		}
		providers[family] = pc
	}

	resilience := c.Resilience()
	return llm.RegistryConfig{
		Providers:      providers,
		Aliases:        llm.DefaultAliases,
		APIKeys:        apiKeys,
		DefaultTimeout: c.LLM.RequestTimeout,
		Resilience:     &resilience,
		Collector:      collector,
		BreakerMetrics: breakerMetrics,
	}
}

// SummarizerConfig returns the generation unit settings.
func (c *AppConfig) SummarizerConfig() units.SummarizerConfig {
	cfg := units.DefaultSummarizerConfig()
	cfg.SamplesPerProvider = c.Summarization.SamplesPerProvider
	cfg.MaxConcurrency = c.LLM.MaxConcurrentRequests
	if c.Summarization.PromptTemplate != "" {
		cfg.PromptTemplate = c.Summarization.PromptTemplate
	}
	return cfg
}

// NewViper returns a viper instance primed with the defaults and the
// SUMBENCH_ environment mapping. Callers may bind flags before handing it
// to LoadConfigFrom.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultAppConfig())
	return v
}

// LoadConfig reads the optional YAML file at path, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*AppConfig, error) {
	return LoadConfigFrom(NewViper(), path)
}

// LoadConfigFrom is LoadConfig on a caller-provided viper instance.
func LoadConfigFrom(v *viper.Viper, path string) (*AppConfig, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper, d AppConfig) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.debug", d.Server.Debug)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)

	for _, family := range []string{llm.FamilyOpenAI, llm.FamilyAnthropic, llm.FamilyGoogle} {
		v.SetDefault("providers."+family+".api_key", "")
		v.SetDefault("providers."+family+".base_url", "")
	}

	v.SetDefault("llm.request_timeout", d.LLM.RequestTimeout)
	v.SetDefault("llm.max_retries", d.LLM.MaxRetries)
	v.SetDefault("llm.retry_delay", d.LLM.RetryDelay)
	v.SetDefault("llm.rate_limit_rps", d.LLM.RateLimitRPS)
	v.SetDefault("llm.rate_limit_burst", d.LLM.RateLimitBurst)
	v.SetDefault("llm.circuit_breaker.max_failures", d.LLM.CircuitBreaker.MaxFailures)
	v.SetDefault("llm.circuit_breaker.cooldown", d.LLM.CircuitBreaker.Cooldown)
	v.SetDefault("llm.max_concurrent_requests", d.LLM.MaxConcurrentRequests)

	v.SetDefault("summarization.samples_per_provider", d.Summarization.SamplesPerProvider)
	v.SetDefault("summarization.default_max_words", d.Summarization.DefaultMaxWords)
	v.SetDefault("summarization.evaluator_model", d.Summarization.EvaluatorModel)
	v.SetDefault("summarization.max_concurrent_providers", d.Summarization.MaxConcurrentProviders)
	v.SetDefault("summarization.tie_breaker", d.Summarization.TieBreaker)
	v.SetDefault("summarization.prompt_template", d.Summarization.PromptTemplate)

	v.SetDefault("budget.max_calls", d.Budget.MaxCalls)
	v.SetDefault("budget.max_tokens", d.Budget.MaxTokens)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.sampling_rate", d.Tracing.SamplingRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.insecure", d.Tracing.Insecure)
}
