package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDefaultModel is used when a client is created without a model.
const OpenAIDefaultModel = "gpt-3.5-turbo"

func init() {
	RegisterProviderFactory(FamilyOpenAI, newOpenAIProvider)
}

// openAIProvider implements CoreLLM for the OpenAI chat completions API.
type openAIProvider struct {
	BaseProvider
	client          *openai.Client
	estimator       TokenEstimator
	errorClassifier *ErrorClassifier
}

func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)

	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.BaseURL = validatedURL
	}

	if timeout := ValidateTimeout(config.Timeout); timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: timeout}
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = NewCharacterBasedTokenEstimator(4.0)
	}

	return &openAIProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          openai.NewClientWithConfig(clientConfig),
		estimator:       estimator,
		errorClassifier: &ErrorClassifier{Provider: FamilyOpenAI},
	}, nil
}

// DoRequest sends one chat completion. When the stream option is set the
// response is consumed as a server-sent event stream and concatenated.
func (p *openAIProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())
	req := p.buildChatCompletionRequest(prompt, options)

	if options.Stream {
		return p.doStream(ctx, prompt, req)
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	if len(resp.Choices) == 0 {
		return "", 0, 0, NewProviderError(FamilyOpenAI, ErrorTypeUnknown, 0, "", ErrNoResponseChoice)
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", 0, 0, NewProviderError(FamilyOpenAI, ErrorTypeUnknown, 0, "", ErrEmptyResponse)
	}

	tokensIn := tokenCount(int64(resp.Usage.PromptTokens), prompt, p.estimator)
	tokensOut := tokenCount(int64(resp.Usage.CompletionTokens), content, p.estimator)

	return content, tokensIn, tokensOut, nil
}

func (p *openAIProvider) doStream(ctx context.Context, prompt string, req openai.ChatCompletionRequest) (string, int, int, error) {
	req.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}
	defer stream.Close()

	var content strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", 0, 0, p.handleError(err)
		}
		if len(chunk.Choices) > 0 {
			content.WriteString(chunk.Choices[0].Delta.Content)
		}
	}

	text := content.String()
	if strings.TrimSpace(text) == "" {
		return "", 0, 0, NewProviderError(FamilyOpenAI, ErrorTypeUnknown, 0, "", ErrEmptyResponse)
	}

	// Streamed responses carry no usage block.
	return text, p.estimator.EstimateTokens(prompt), p.estimator.EstimateTokens(text), nil
}

func (p *openAIProvider) buildChatCompletionRequest(prompt string, options RequestOptions) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if options.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: options.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:     options.Model,
		Messages:  messages,
		MaxTokens: options.MaxTokens,
	}

	if options.Temperature != nil {
		req.Temperature = float32(ClampFloat64(*options.Temperature, MinTemperature, MaxTemperature))
	}
	if options.TopP != nil {
		req.TopP = float32(ClampFloat64(*options.TopP, MinTopP, MaxTopP))
	}
	if options.FrequencyPenalty != nil {
		req.FrequencyPenalty = float32(*options.FrequencyPenalty)
	}
	if options.PresencePenalty != nil {
		req.PresencePenalty = float32(*options.PresencePenalty)
	}
	// The chat completions API has no top_k parameter.

	return req
}

func (p *openAIProvider) handleError(err error) error {
	if isContextError(err) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return p.errorClassifier.ClassifyHTTPError(reqErr.HTTPStatusCode, http.StatusText(reqErr.HTTPStatusCode), err)
	}

	return p.errorClassifier.ClassifyTransportError(err)
}
