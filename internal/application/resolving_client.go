package application

import (
	"context"

	"github.com/ahrav/go-sumbench/internal/ports"
)

// resolvingClient defers client resolution to call time, so a model whose
// credentials are missing fails its calls instead of service construction.
type resolvingClient struct {
	resolver ports.ClientResolver
	model    string
}

var _ ports.LLMClient = (*resolvingClient)(nil)

func newResolvingClient(resolver ports.ClientResolver, model string) *resolvingClient {
	return &resolvingClient{resolver: resolver, model: model}
}

func (c *resolvingClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	client, err := c.resolver.ClientFor(c.model)
	if err != nil {
		return "", err
	}
	return client.Complete(ctx, prompt, options)
}

func (c *resolvingClient) EstimateTokens(text string) (int, error) {
	client, err := c.resolver.ClientFor(c.model)
	if err != nil {
		return 0, err
	}
	return client.EstimateTokens(text)
}

func (c *resolvingClient) GetModel() string { return c.model }
