package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnthropicTestProvider(t *testing.T, handler http.HandlerFunc) CoreLLM {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := newAnthropicProvider(ClientConfig{
		APIKey:  "test-key",
		Model:   "claude-3-haiku-20240307",
		BaseURL: server.URL,
	})
	require.NoError(t, err)
	return provider
}

func TestAnthropicProvider_DoRequest(t *testing.T) {
	var got map[string]any
	provider := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-haiku-20240307",
			"content": [{"type": "text", "text": "First part. "}, {"type": "text", "text": "Second part."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 30, "output_tokens": 6}
		}`)
	})

	out, in, outTokens, err := provider.DoRequest(context.Background(), "Summarize", map[string]any{
		"temperature": 1.6,
		"max_tokens":  300,
		"top_k":       50,
		"system":      "Be precise.",
	})

	require.NoError(t, err)
	assert.Equal(t, "First part. Second part.", out)
	assert.Equal(t, 30, in)
	assert.Equal(t, 6, outTokens)

	assert.Equal(t, "claude-3-haiku-20240307", got["model"])
	assert.InDelta(t, 300, got["max_tokens"], 0)
	assert.InDelta(t, 1.0, got["temperature"], 1e-9, "temperature is clamped to 1")
	assert.InDelta(t, 50, got["top_k"], 0)
	assert.NotEmpty(t, got["system"])
}

func TestAnthropicProvider_EmptyContent(t *testing.T) {
	provider := newAnthropicTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"id":"m","type":"message","role":"assistant","content":[],"usage":{"input_tokens":1,"output_tokens":0}}`)
	})

	_, _, _, err := provider.DoRequest(context.Background(), "p", nil)

	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnthropicProvider_ErrorClassificationWithoutSDKRetries(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
	}{
		{http.StatusUnauthorized, ErrorTypeAuthentication},
		{http.StatusTooManyRequests, ErrorTypeRateLimit},
		{http.StatusInternalServerError, ErrorTypeServerError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			provider := newAnthropicTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, `{"type":"error","error":{"type":"test_error","message":"nope"}}`)
			})

			_, _, _, err := provider.DoRequest(context.Background(), "p", nil)

			var provErr *ProviderError
			require.ErrorAs(t, err, &provErr)
			assert.Equal(t, tt.want, provErr.Type)
			assert.Equal(t, tt.status, provErr.StatusCode)
			assert.Equal(t, int32(1), calls.Load(), "retries belong to the middleware, not the SDK")
		})
	}
}

func TestNewAnthropicProvider_Config(t *testing.T) {
	_, err := newAnthropicProvider(ClientConfig{})
	assert.ErrorIs(t, err, ErrEmptyAPIKey)

	p, err := newAnthropicProvider(ClientConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, AnthropicDefaultModel, p.GetModel())
}
