package llm

import (
	"fmt"
	"math"
	"net/url"
	"time"
)

// Valid ranges for request parameters shared by all families.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinTopP        = 0.0
	MaxTopP        = 1.0
	MinPenalty     = -2.0
	MaxPenalty     = 2.0
	MinTimeout     = 1 * time.Second
	MaxTimeout     = 10 * time.Minute

	// DefaultMaxTokens is used when a request carries no max_tokens option.
	DefaultMaxTokens = 1000
)

// RequestOptions is the normalized form of the option map passed to
// CoreLLM.DoRequest. Nil pointers mean "use the provider default".
type RequestOptions struct {
	MaxTokens        int
	Model            string
	Temperature      *float64
	TopP             *float64
	TopK             *int
	FrequencyPenalty *float64
	PresencePenalty  *float64
	Stream           bool
	System           string

	// Extra holds options that are not part of the normalized set.
	Extra map[string]any
}

// ParseRequestOptions extracts request parameters from an option map.
// Numeric values may arrive as any Go numeric type, since maps decoded
// from JSON or YAML carry float64 where callers wrote integers. Values
// outside their valid range fall back to the provider default.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: extractInt(opts, "max_tokens", DefaultMaxTokens, isPositiveInt),
		Model:     extractString(opts, "model", defaultModel, isNonEmptyString),
		System:    extractString(opts, "system", "", nil),
		Extra:     make(map[string]any),
	}

	options.Temperature = optionalFloat(opts, "temperature", isValidTemperature)
	options.TopP = optionalFloat(opts, "top_p", isValidTopP)
	options.FrequencyPenalty = optionalFloat(opts, "frequency_penalty", isValidPenalty)
	options.PresencePenalty = optionalFloat(opts, "presence_penalty", isValidPenalty)

	if v, ok := opts["top_k"]; ok {
		if k, ok := SafeInt(v); ok && k > 0 {
			options.TopK = &k
		}
	}
	if v, ok := opts["stream"].(bool); ok {
		options.Stream = v
	}

	for k, v := range opts {
		switch k {
		case "max_tokens", "model", "system", "temperature", "top_p", "top_k",
			"frequency_penalty", "presence_penalty", "stream":
		default:
			options.Extra[k] = v
		}
	}

	return options
}

func extractInt(opts map[string]any, key string, defaultVal int, validator func(int) bool) int {
	val, ok := opts[key]
	if !ok {
		return defaultVal
	}
	intVal, ok := SafeInt(val)
	if !ok || (validator != nil && !validator(intVal)) {
		return defaultVal
	}
	return intVal
}

func extractString(opts map[string]any, key string, defaultVal string, validator func(string) bool) string {
	strVal, ok := opts[key].(string)
	if !ok || (validator != nil && !validator(strVal)) {
		return defaultVal
	}
	return strVal
}

func optionalFloat(opts map[string]any, key string, validator func(float64) bool) *float64 {
	val, ok := opts[key]
	if !ok {
		return nil
	}
	f, ok := SafeFloat64(val)
	if !ok || !validator(f) {
		return nil
	}
	return &f
}

func isPositiveInt(val int) bool { return val > 0 }

func isNonEmptyString(val string) bool { return val != "" }

func isValidTemperature(val float64) bool { return val >= MinTemperature && val <= MaxTemperature }

func isValidTopP(val float64) bool { return val >= MinTopP && val <= MaxTopP }

func isValidPenalty(val float64) bool { return val >= MinPenalty && val <= MaxPenalty }

// ValidateBaseURL validates and normalizes a base URL string.
// An empty string is valid and selects the provider's default endpoint.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, got %q", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}

	return parsedURL.String(), nil
}

// ValidateTimeout clamps a timeout into [MinTimeout, MaxTimeout]. Zero or
// negative values return zero, meaning the SDK default.
func ValidateTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	return min(max(timeout, MinTimeout), MaxTimeout)
}

// SafeFloat64 converts any numeric value to float64.
func SafeFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) {
			return 0, false
		}
		return v, true
	case float32:
		if math.IsNaN(float64(v)) {
			return 0, false
		}
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	default:
		return 0, false
	}
}

// SafeInt converts any numeric value to int. Fractional floats are
// truncated; NaN and out-of-range values are rejected.
func SafeInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		if int64(int(v)) != v {
			return 0, false
		}
		return int(v), true
	case float32:
		return SafeInt(float64(v))
	case float64:
		if math.IsNaN(v) || v >= math.MaxInt || v < math.MinInt {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

// ClampFloat64 clamps val into [lo, hi].
func ClampFloat64(val, lo, hi float64) float64 { return min(max(val, lo), hi) }

// ClampInt clamps val into [lo, hi].
func ClampInt(val, lo, hi int) int { return min(max(val, lo), hi) }
