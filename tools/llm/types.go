package llm

import (
	"context"
	"fmt"
	"time"
)

// Client is the interface for LLM providers
type Client interface {
	Complete(ctx context.Context, systemPrompt string, messages []Message, opts *RequestOptions) (*Response, error)
}

// PartType distinguishes the content parts of a message
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// Part is one piece of message content. Image data is base64 encoded.
type Part struct {
	Type      PartType
	Text      string
	MediaType string
	Data      string
}

// Text returns a text part
func Text(s string) Part {
	return Part{Type: PartText, Text: s}
}

// Image returns an image part from base64 data
func Image(mediaType, data string) Part {
	return Part{Type: PartImage, MediaType: mediaType, Data: data}
}

// Message represents a conversation message
type Message struct {
	Role  string
	Parts []Part
}

// UserMessage builds a user message from parts
func UserMessage(parts ...Part) Message {
	return Message{Role: "user", Parts: parts}
}

// RequestOptions configures an LLM request
type RequestOptions struct {
	MaxTokens   int
	Temperature *float64
}

// Response from an LLM completion
type Response struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
	Model        string
	StopReason   string // "end_turn", "max_tokens", "stop_sequence"
}

// WasTruncated returns true if the response hit the token limit
func (r *Response) WasTruncated() bool {
	return r.StopReason == "max_tokens"
}

// Provider names accepted by New
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// New creates a client for the named provider. An empty baseURL selects the
// provider's public endpoint.
func New(provider, apiKey, model, baseURL string) (Client, error) {
	switch provider {
	case ProviderAnthropic, "":
		return NewAnthropicClient(apiKey, model, baseURL), nil
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey, model, baseURL), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", provider)
	}
}
