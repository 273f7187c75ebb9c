package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-sumbench/internal/ports"
)

func newTestRegistry(t *testing.T, keys map[string]string) *Registry {
	t.Helper()
	r, err := NewRegistry(RegistryConfig{
		Providers: DefaultProviders,
		Aliases:   DefaultAliases,
		APIKeys:   keys,
	})
	require.NoError(t, err)
	return r
}

func TestNewRegistry_RequiresProviders(t *testing.T) {
	_, err := NewRegistry(RegistryConfig{})
	assert.Error(t, err)
}

func TestNewRegistry_RejectsUnknownFamily(t *testing.T) {
	_, err := NewRegistry(RegistryConfig{
		Providers: map[string]ProviderConfig{"mistral": {SupportedModels: []string{"m"}}},
	})
	assert.ErrorContains(t, err, "no provider implementation")
}

func TestNewRegistry_RejectsModelInTwoFamilies(t *testing.T) {
	_, err := NewRegistry(RegistryConfig{
		Providers: map[string]ProviderConfig{
			FamilyOpenAI:    {SupportedModels: []string{"shared"}},
			FamilyAnthropic: {SupportedModels: []string{"shared"}},
		},
	})
	assert.ErrorContains(t, err, "listed by both")
}

func TestRegistry_Family(t *testing.T) {
	r := newTestRegistry(t, nil)

	tests := []struct {
		model  string
		family string
		ok     bool
	}{
		{"gpt-4", FamilyOpenAI, true},
		{"claude-3-opus-20240229", FamilyAnthropic, true},
		{"gemini-1.5-flash", FamilyGoogle, true},
		{"gemini-pro", FamilyGoogle, true},
		{"gemini-pro-vision", FamilyGoogle, true},
		{"gpt-99", "", false},
		{"llama-3", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			family, ok := r.Family(tt.model)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.family, family)
		})
	}
}

func TestRegistry_NoPrefixGuessing(t *testing.T) {
	// A gpt-looking id is still unknown unless catalogued.
	r := newTestRegistry(t, map[string]string{FamilyOpenAI: "k"})

	_, err := r.ClientFor("gpt-5-ultra")

	var llmErr *ports.LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.True(t, llmErr.IsResolution())
	assert.ErrorIs(t, err, ports.ErrUnknownModel)
}

func TestRegistry_Models(t *testing.T) {
	r := newTestRegistry(t, nil)

	models := r.Models()

	assert.Contains(t, models[FamilyOpenAI], "gpt-3.5-turbo")
	assert.Contains(t, models[FamilyAnthropic], "claude-3-haiku-20240307")
	assert.Contains(t, models[FamilyGoogle], "gemini-pro", "aliases are listed")
	assert.IsNonDecreasing(t, models[FamilyGoogle])
}

func TestRegistry_AliasToUnknownTargetIgnored(t *testing.T) {
	r, err := NewRegistry(RegistryConfig{
		Providers: DefaultProviders,
		Aliases:   map[string]string{"ghost": "does-not-exist"},
	})
	require.NoError(t, err)

	_, ok := r.Family("ghost")
	assert.False(t, ok)
}

func TestRegistry_Suggest(t *testing.T) {
	r := newTestRegistry(t, nil)

	got, ok := r.Suggest("gpt-4-trubo")
	require.True(t, ok)
	assert.Equal(t, "gpt-4-turbo", got)

	got, ok = r.Suggest("gemini-pr")
	require.True(t, ok)
	assert.Equal(t, "gemini-pro", got)

	_, ok = r.Suggest("totally-unrelated-model-name")
	assert.False(t, ok)
}

func TestRegistry_ClientForMissingKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	r := newTestRegistry(t, nil)

	_, err := r.ClientFor("claude-3-haiku-20240307")

	var llmErr *ports.LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ports.OperationResolve, llmErr.Operation)
	assert.ErrorIs(t, err, ports.ErrMissingAPIKey)
	assert.True(t, IsInfrastructureFailure(err))
}

func TestRegistry_ClientForCachesAndResolvesAliases(t *testing.T) {
	r := newTestRegistry(t, map[string]string{FamilyGoogle: "test-key"})

	a, err := r.ClientFor("gemini-pro")
	require.NoError(t, err)
	b, err := r.ClientFor("gemini-1.5-flash")
	require.NoError(t, err)

	assert.Same(t, a, b, "alias and canonical id share one client")
	assert.Equal(t, "gemini-1.5-flash", a.GetModel())
}

func TestRegistry_CredentialsFromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	r := newTestRegistry(t, map[string]string{FamilyGoogle: "cfg-key"})

	assert.True(t, r.HasCredentials(FamilyOpenAI))
	assert.False(t, r.HasCredentials(FamilyAnthropic))
	assert.Equal(t, []string{FamilyGoogle, FamilyOpenAI}, r.AvailableFamilies())

	client, err := r.ClientFor("gpt-4")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", client.GetModel())
}

type stubClient struct{ model string }

func (s stubClient) Complete(context.Context, string, map[string]any) (string, error) {
	return "stub", nil
}
func (s stubClient) EstimateTokens(string) (int, error) { return 1, nil }
func (s stubClient) GetModel() string                   { return s.model }

func TestRegistry_RegisterClient(t *testing.T) {
	r := newTestRegistry(t, nil)

	require.NoError(t, r.RegisterClient("gpt-4", stubClient{model: "gpt-4"}))
	client, err := r.ClientFor("gpt-4")
	require.NoError(t, err)
	out, err := client.Complete(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", out)

	err = r.RegisterClient("unknown", stubClient{})
	assert.ErrorIs(t, err, ports.ErrUnknownModel)
}

func TestRegistry_ResilienceChainSharedPerFamily(t *testing.T) {
	// Given a registry whose family chain trips after one failure
	r, err := NewRegistry(RegistryConfig{
		Providers: DefaultProviders,
		APIKeys:   map[string]string{FamilyOpenAI: "k"},
		Resilience: &ResilienceConfig{
			BreakerMaxFailures: 1,
			BreakerCooldown:    time.Minute,
		},
	})
	require.NoError(t, err)

	chain := r.providers[FamilyOpenAI].Middleware
	require.Len(t, chain, 1)

	failing := NewMockCoreLLM()
	failing.Error = errors.New("down")
	sibling := NewMockCoreLLM()

	// When one wrapped client fails
	_, _, _, _ = chain[0](failing).DoRequest(context.Background(), "p", nil)

	// Then another client built from the same chain sees the open circuit
	_, _, _, err = chain[0](sibling).DoRequest(context.Background(), "p", nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestResilienceConfig_Chain(t *testing.T) {
	cfg := DefaultResilienceConfig()
	cfg.RateLimitRPS = 10

	chain := cfg.Chain(FamilyOpenAI, &recordingCollector{}, nil)
	assert.Len(t, chain, 6)

	empty := ResilienceConfig{}.Chain(FamilyOpenAI, nil, nil)
	assert.Empty(t, empty)
}
