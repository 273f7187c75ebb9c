package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func newGoogleTestProvider(t *testing.T, handler http.HandlerFunc) CoreLLM {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := newGoogleProvider(ClientConfig{
		APIKey:  "test-key",
		Model:   "gemini-1.5-flash",
		BaseURL: server.URL + "/",
	})
	require.NoError(t, err)
	return provider
}

func TestGoogleProvider_DoRequest(t *testing.T) {
	var got map[string]any
	provider := newGoogleTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-1.5-flash:generateContent"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Gemini summary."}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 17, "candidatesTokenCount": 3, "totalTokenCount": 20}
		}`)
	})

	out, in, outTokens, err := provider.DoRequest(context.Background(), "Summarize", map[string]any{
		"temperature": 0.7,
		"max_tokens":  120,
		"top_k":       90,
		"system":      "Be brief.",
	})

	require.NoError(t, err)
	assert.Equal(t, "Gemini summary.", out)
	assert.Equal(t, 17, in)
	assert.Equal(t, 3, outTokens)

	genCfg, ok := got["generationConfig"].(map[string]any)
	require.True(t, ok, "generation config should be sent")
	assert.InDelta(t, 120, genCfg["maxOutputTokens"], 0)
	assert.InDelta(t, 40, genCfg["topK"], 0, "top_k is clamped to the Gemini maximum")
	assert.InDelta(t, 0.7, genCfg["temperature"], 1e-6)

	body, _ := json.Marshal(got["contents"])
	assert.Contains(t, string(body), "System: Be brief.", "system prompt is prepended to the user text")
}

func TestGoogleProvider_ServerError(t *testing.T) {
	provider := newGoogleTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprint(w, `{"error": {"code": 503, "message": "overloaded", "status": "UNAVAILABLE"}}`)
	})

	_, _, _, err := provider.DoRequest(context.Background(), "p", nil)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ErrorTypeServerError, provErr.Type)
	assert.True(t, IsInfrastructureFailure(err))
}

func TestGoogleProvider_EmptyCandidates(t *testing.T) {
	provider := newGoogleTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"candidates": []}`)
	})

	_, _, _, err := provider.DoRequest(context.Background(), "p", nil)

	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGoogleProvider_SafetyBlock(t *testing.T) {
	p := &googleProvider{errorClassifier: &ErrorClassifier{Provider: FamilyGoogle}}

	err := p.handleError(&googleapi.Error{
		Code:    http.StatusBadRequest,
		Message: "request",
		Errors:  []googleapi.ErrorItem{{Reason: "SAFETY"}},
	})

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ErrorTypeContentPolicy, provErr.Type)
	assert.False(t, provErr.IsRetryable())
}

func TestGoogleProvider_GoogleAPIErrorStatus(t *testing.T) {
	p := &googleProvider{errorClassifier: &ErrorClassifier{Provider: FamilyGoogle}}

	err := p.handleError(&googleapi.Error{Code: http.StatusForbidden, Message: "key invalid"})

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ErrorTypeAuthentication, provErr.Type)
}
