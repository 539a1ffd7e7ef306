package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient implements the Client interface for OpenAI-compatible chat
// completion endpoints
type OpenAIClient struct {
	model  string
	client *openai.Client
}

// NewOpenAIClient creates a client. baseURL, when set, must include the
// API version path (e.g. http://localhost:8080/v1).
func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	if model == "" {
		model = openai.GPT4o
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{model: model, client: openai.NewClientWithConfig(cfg)}
}

// Complete sends the conversation as one chat completion request
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt string, messages []Message, opts *RequestOptions) (*Response, error) {
	start := time.Now()

	req := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: 8192,
	}
	if opts != nil {
		if opts.MaxTokens > 0 {
			req.MaxTokens = opts.MaxTokens
		}
		if opts.Temperature != nil {
			req.Temperature = float32(*opts.Temperature)
			// the request field is omitempty, so zero would fall back to
			// the server default
			if req.Temperature == 0 {
				req.Temperature = math.SmallestNonzeroFloat32
			}
		}
	}

	if systemPrompt != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, m := range messages {
		parts := make([]openai.ChatMessagePart, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch p.Type {
			case PartImage:
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    "data:" + p.MediaType + ";base64," + p.Data,
						Detail: openai.ImageURLDetailAuto,
					},
				})
			default:
				parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: p.Text})
			}
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, MultiContent: parts})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("API error (%d): %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("response has no choices")
	}

	choice := resp.Choices[0]
	stop := string(choice.FinishReason)
	switch choice.FinishReason {
	case openai.FinishReasonLength:
		stop = "max_tokens"
	case openai.FinishReasonStop:
		stop = "end_turn"
	}

	return &Response{
		Content:      choice.Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Duration:     time.Since(start),
		Model:        resp.Model,
		StopReason:   stop,
	}, nil
}
