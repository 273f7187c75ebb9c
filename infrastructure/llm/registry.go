package llm

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/ahrav/go-sumbench/internal/ports"
)

// maxSuggestionDistance bounds how far a typo may be from a known model id
// and still produce a suggestion.
const maxSuggestionDistance = 3

// Registry is the model catalog and the client resolver. Every known model
// id maps to exactly one family; clients are created on first use and
// cached per family/model.
type Registry struct {
	providers map[string]ProviderConfig
	// modelFamily maps canonical ids to their family.
	modelFamily map[string]string
	// aliases maps retired or shorthand ids to canonical ones.
	aliases map[string]string
	apiKeys map[string]string

	clients        map[string]ports.LLMClient
	defaultTimeout time.Duration
	estimators     *FamilyTokenEstimator
	mu             sync.RWMutex
}

var (
	_ ports.ModelCatalog   = (*Registry)(nil)
	_ ports.ClientResolver = (*Registry)(nil)
)

// ProviderConfig describes one provider family.
type ProviderConfig struct {
	// EnvVar names the environment variable holding the API key.
	EnvVar string
	// DefaultModel is used when a family is asked for without a model.
	DefaultModel string
	// SupportedModels lists the canonical model ids of this family.
	SupportedModels []string
	// BaseURL overrides the SDK endpoint.
	BaseURL string
	// Middleware is applied after RegistryConfig.DefaultMiddleware.
	Middleware []Middleware
}

// RegistryConfig configures NewRegistry.
type RegistryConfig struct {
	Providers map[string]ProviderConfig
	// Aliases maps extra ids onto canonical SupportedModels entries.
	Aliases map[string]string
	// APIKeys overrides the environment per family.
	APIKeys        map[string]string
	DefaultTimeout time.Duration
	// DefaultMiddleware is placed outside each family's own middleware.
	DefaultMiddleware []Middleware
	// Resilience, when set, builds one chain per family and appends it to
	// that family's middleware.
	Resilience     *ResilienceConfig
	Collector      ports.MetricsCollector
	BreakerMetrics CircuitBreakerMetrics
}

// DefaultProviders lists the families and models the tool ships with.
var DefaultProviders = map[string]ProviderConfig{
	FamilyOpenAI: {
		EnvVar:       "OPENAI_API_KEY",
		DefaultModel: "gpt-3.5-turbo",
		SupportedModels: []string{
			"gpt-4", "gpt-4-turbo", "gpt-3.5-turbo",
			"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini",
		},
	},
	FamilyAnthropic: {
		EnvVar:       "ANTHROPIC_API_KEY",
		DefaultModel: "claude-3-haiku-20240307",
		SupportedModels: []string{
			"claude-3-opus-20240229", "claude-3-sonnet-20240229", "claude-3-haiku-20240307",
			"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022",
		},
	},
	FamilyGoogle: {
		EnvVar:       "GOOGLE_API_KEY",
		DefaultModel: "gemini-1.5-flash",
		SupportedModels: []string{
			"gemini-1.5-flash", "gemini-1.5-pro",
			"gemini-2.0-flash", "gemini-2.5-flash", "gemini-2.5-pro",
		},
	},
}

// DefaultAliases maps retired Gemini ids onto their replacement.
var DefaultAliases = map[string]string{
	"gemini-pro":        "gemini-1.5-flash",
	"gemini-pro-vision": "gemini-1.5-flash",
}

// NewRegistry builds the catalog. A model listed by two families, or an
// alias pointing at an unknown model, is a configuration error.
func NewRegistry(config RegistryConfig) (*Registry, error) {
	if len(config.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider must be configured")
	}

	r := &Registry{
		providers:      make(map[string]ProviderConfig, len(config.Providers)),
		modelFamily:    make(map[string]string),
		aliases:        make(map[string]string, len(config.Aliases)),
		apiKeys:        make(map[string]string, len(config.APIKeys)),
		clients:        make(map[string]ports.LLMClient),
		defaultTimeout: config.DefaultTimeout,
		estimators:     NewFamilyTokenEstimator(),
	}

	for family, pc := range config.Providers {
		if _, ok := providerFactory(family); !ok {
			return nil, fmt.Errorf("no provider implementation for family %q", family)
		}
		for _, model := range pc.SupportedModels {
			if owner, dup := r.modelFamily[model]; dup && owner != family {
				return nil, fmt.Errorf("model %q listed by both %q and %q", model, owner, family)
			}
			r.modelFamily[model] = family
		}

		middleware := slices.Clone(config.DefaultMiddleware)
		middleware = append(middleware, pc.Middleware...)
		if config.Resilience != nil {
			middleware = append(middleware, config.Resilience.Chain(family, config.Collector, config.BreakerMetrics)...)
		}
		pc.Middleware = middleware
		r.providers[family] = pc
	}

	for alias, target := range config.Aliases {
		if _, ok := r.modelFamily[target]; !ok {
			continue
		}
		if _, shadow := r.modelFamily[alias]; shadow {
			continue
		}
		r.aliases[alias] = target
	}

	for family, key := range config.APIKeys {
		if key != "" {
			r.apiKeys[family] = key
		}
	}

	return r, nil
}

// Canonical resolves an alias. Unknown ids are returned unchanged.
func (r *Registry) Canonical(model string) string {
	if target, ok := r.aliases[model]; ok {
		return target
	}
	return model
}

// Family implements ports.ModelCatalog.
func (r *Registry) Family(model string) (string, bool) {
	family, ok := r.modelFamily[r.Canonical(model)]
	return family, ok
}

// Models implements ports.ModelCatalog. Ids are sorted within each family.
func (r *Registry) Models() map[string][]string {
	out := make(map[string][]string, len(r.providers))
	for model, family := range r.modelFamily {
		out[family] = append(out[family], model)
	}
	for alias, target := range r.aliases {
		family := r.modelFamily[target]
		out[family] = append(out[family], alias)
	}
	for family := range out {
		sort.Strings(out[family])
	}
	return out
}

// HasCredentials reports whether an API key is available for the family.
func (r *Registry) HasCredentials(family string) bool {
	return r.apiKey(family) != ""
}

// AvailableFamilies lists the configured families that have credentials.
func (r *Registry) AvailableFamilies() []string {
	families := make([]string, 0, len(r.providers))
	for family := range r.providers {
		if r.HasCredentials(family) {
			families = append(families, family)
		}
	}
	sort.Strings(families)
	return families
}

// Suggest returns the known id closest to model, if one is within
// edit distance 3.
func (r *Registry) Suggest(model string) (string, bool) {
	best, bestDist := "", maxSuggestionDistance+1
	candidates := make([]string, 0, len(r.modelFamily)+len(r.aliases))
	for id := range r.modelFamily {
		candidates = append(candidates, id)
	}
	for id := range r.aliases {
		candidates = append(candidates, id)
	}
	// Deterministic choice between equally distant ids.
	sort.Strings(candidates)

	for _, id := range candidates {
		if d := levenshtein.ComputeDistance(model, id); d < bestDist {
			best, bestDist = id, d
		}
	}
	return best, best != ""
}

// ClientFor implements ports.ClientResolver. Every failure is a
// *ports.LLMError with Operation OperationResolve.
func (r *Registry) ClientFor(model string) (ports.LLMClient, error) {
	canonical := r.Canonical(model)
	family, ok := r.modelFamily[canonical]
	if !ok {
		return nil, ports.NewLLMError(model, ports.OperationResolve, ports.ErrUnknownModel)
	}

	key := family + "/" + canonical

	r.mu.RLock()
	if client, exists := r.clients[key]; exists {
		r.mu.RUnlock()
		return client, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if client, exists := r.clients[key]; exists {
		return client, nil
	}

	client, err := r.createClient(family, canonical)
	if err != nil {
		return nil, ports.NewLLMError(model, ports.OperationResolve, err)
	}

	r.clients[key] = client
	return client, nil
}

// RegisterClient installs a prebuilt client for a catalogued model,
// replacing any cached one.
func (r *Registry) RegisterClient(model string, client ports.LLMClient) error {
	canonical := r.Canonical(model)
	family, ok := r.modelFamily[canonical]
	if !ok {
		return ports.NewLLMError(model, ports.OperationResolve, ports.ErrUnknownModel)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[family+"/"+canonical] = client
	return nil
}

func (r *Registry) createClient(family, model string) (ports.LLMClient, error) {
	pc := r.providers[family]

	apiKey := r.apiKey(family)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set %s for provider %q", ports.ErrMissingAPIKey, pc.EnvVar, family)
	}

	return NewClient(family, ClientConfig{
		APIKey:         apiKey,
		Model:          model,
		BaseURL:        pc.BaseURL,
		Timeout:        r.defaultTimeout,
		TokenEstimator: r.estimators.For(family),
		Middleware:     pc.Middleware,
	})
}

func (r *Registry) apiKey(family string) string {
	if key, ok := r.apiKeys[family]; ok {
		return key
	}
	pc, ok := r.providers[family]
	if !ok || pc.EnvVar == "" {
		return ""
	}
	return os.Getenv(pc.EnvVar)
}
