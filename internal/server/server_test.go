package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahrav/go-sumbench/infrastructure/middleware"
	"github.com/ahrav/go-sumbench/internal/application"
	"github.com/ahrav/go-sumbench/internal/domain"
	"github.com/ahrav/go-sumbench/internal/testutils"
)

var sourceText = strings.Repeat("The city council approved a new budget for public parks and libraries. ", 4)

// stubService records the last request and returns canned results.
type stubService struct {
	compareErr error
	summaryErr error

	lastCompare domain.ComparisonRequest
	lastSummary application.SingleSummaryRequest
}

func (s *stubService) Compare(_ context.Context, req domain.ComparisonRequest) (*domain.ComparisonResult, error) {
	s.lastCompare = req
	if s.compareErr != nil {
		return nil, s.compareErr
	}
	return &domain.ComparisonResult{ID: "id-1", Winner: req.Providers[0]}, nil
}

func (s *stubService) SummarizeOnce(_ context.Context, req application.SingleSummaryRequest) (*application.SingleSummaryResult, error) {
	s.lastSummary = req
	if s.summaryErr != nil {
		return nil, s.summaryErr
	}
	return &application.SingleSummaryResult{Model: req.Model, Summary: "short"}, nil
}

func (s *stubService) Models() application.ModelsView {
	return application.ModelsView{AvailableProviders: []string{"openai"}, EvaluatorModel: "gpt-3.5-turbo"}
}

func (s *stubService) Settings() application.SettingsView {
	return application.SettingsView{SamplesPerProvider: 3, DefaultMaxWords: 100}
}

func newTestServer(svc ComparisonAPI, metrics http.Handler) *Server {
	return New(application.DefaultAppConfig().Server, svc, metrics, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(&stubService{}, nil).Handler(), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestID_Propagated(t *testing.T) {
	h := newTestServer(&stubService{}, nil).Handler()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestCompare_DefaultsGenerationConfig(t *testing.T) {
	// Given a body that only overrides the temperature
	svc := &stubService{}
	h := newTestServer(svc, nil).Handler()

	rec := do(t, h, http.MethodPost, "/summarization/compare",
		`{"text":"some text","providers":["gpt-4","gemini-pro"],"config":{"temperature":0.2}}`)

	// Then the remaining sampling parameters keep their defaults
	require.Equal(t, http.StatusOK, rec.Code)
	want := domain.DefaultGenerationConfig()
	want.Temperature = 0.2
	assert.Equal(t, want, svc.lastCompare.Config)
	assert.Equal(t, []string{"gpt-4", "gemini-pro"}, svc.lastCompare.Providers)
	assert.Equal(t, "gpt-4", decode[domain.ComparisonResult](t, rec).Winner)
}

func TestCompare_ErrorMapping(t *testing.T) {
	verr := domain.NewValidationError("ComparisonRequest")
	verr.AddError(`unknown model "gpt-5"`)

	tests := []struct {
		name    string
		err     error
		status  int
		details []string
	}{
		{"validation", verr, http.StatusBadRequest, []string{`unknown model "gpt-5"`}},
		{"unreachable", fmt.Errorf("%w: dial tcp", domain.ErrAllProvidersUnreachable), http.StatusBadGateway, nil},
		{"strict tie", domain.ErrTie, http.StatusConflict, nil},
		{"other", errors.New("boom"), http.StatusInternalServerError, []string{"boom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&stubService{compareErr: tt.err}, nil).Handler()

			rec := do(t, h, http.MethodPost, "/summarization/compare",
				map[string]any{"text": "x", "providers": []string{"a", "b"}})

			assert.Equal(t, tt.status, rec.Code)
			body := decode[ErrorResponse](t, rec)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.details, body.Details)
		})
	}
}

func TestCompare_MalformedBody(t *testing.T) {
	rec := do(t, newTestServer(&stubService{}, nil).Handler(), http.MethodPost, "/summarization/compare", `{"text":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decode[ErrorResponse](t, rec).Error)
}

func TestSummarize_DefaultTemperature(t *testing.T) {
	svc := &stubService{}
	h := newTestServer(svc, nil).Handler()

	rec := do(t, h, http.MethodPost, "/summarization/test", map[string]any{"text": "x", "model": "gpt-4"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 0.7, svc.lastSummary.Temperature, 1e-9)

	rec = do(t, h, http.MethodPost, "/summarization/test", map[string]any{"text": "x", "model": "gpt-4", "temperature": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, svc.lastSummary.Temperature, "an explicit zero is kept")
}

func TestSummarize_GenerationFailure(t *testing.T) {
	h := newTestServer(&stubService{summaryErr: errors.New("provider down")}, nil).Handler()

	rec := do(t, h, http.MethodPost, "/summarization/test", map[string]any{"text": "x", "model": "gpt-4"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestConfigAndModels(t *testing.T) {
	h := newTestServer(&stubService{}, nil).Handler()

	rec := do(t, h, http.MethodGet, "/summarization/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[application.SettingsView](t, rec).SamplesPerProvider)

	rec = do(t, h, http.MethodGet, "/summarization/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"openai"}, decode[application.ModelsView](t, rec).AvailableProviders)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := middleware.NewPrometheusMetrics()
	metrics.RecordCounter("comparisons_total", 1, map[string]string{"status": "success"})

	rec := do(t, newTestServer(&stubService{}, metrics.Handler()).Handler(), http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sumbench_comparisons_total")

	rec = do(t, newTestServer(&stubService{}, nil).Handler(), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompare_EndToEnd(t *testing.T) {
	// Given a real service backed by mock clients
	a := testutils.NewMockLLMClient("gpt-4")
	b := testutils.NewMockLLMClient("claude-3-haiku-20240307")
	eval := testutils.NewMockLLMClient("gpt-3.5-turbo")
	resolver := testutils.StaticResolver{"gpt-4": a, "claude-3-haiku-20240307": b, "gpt-3.5-turbo": eval}

	cfg := application.DefaultAppConfig()
	svc, err := application.NewComparisonService(&cfg, application.ServiceDeps{
		Catalog:  resolver,
		Resolver: resolver,
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	h := newTestServer(svc, nil).Handler()

	// When a comparison is posted
	rec := do(t, h, http.MethodPost, "/summarization/compare", map[string]any{
		"text":      sourceText,
		"providers": []string{"gpt-4", "claude-3-haiku-20240307"},
		"max_words": 50,
	})

	// Then the full report comes back with the first provider winning the tie
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[domain.ComparisonResult](t, rec)
	assert.Equal(t, "gpt-4", result.Winner)
	assert.Equal(t, 2, result.ProvidersTested)
	assert.Equal(t, 2, result.SuccessfulEvaluations)
	assert.Len(t, result.Results, 2)
	assert.NotEmpty(t, result.BestSummary)

	// And an unknown model is rejected before any call
	rec = do(t, h, http.MethodPost, "/summarization/compare", map[string]any{
		"text":      sourceText,
		"providers": []string{"gpt-4", "nope"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, `unknown model "nope"`)
}
