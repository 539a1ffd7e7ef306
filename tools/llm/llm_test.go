package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conversation() []Message {
	return []Message{UserMessage(Text("right view"), Image("image/jpeg", "AAAA"), Text("program"))}
}

func TestAnthropicComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "claude-test",
			"stop_reason": "end_turn",
			"content": [{"type": "text", "text": "package "}, {"type": "text", "text": "main"}],
			"usage": {"input_tokens": 10, "output_tokens": 3}
		}`))
	}))
	defer srv.Close()

	temp := 0.2
	c := NewAnthropicClient("secret", "claude-test", srv.URL)
	resp, err := c.Complete(context.Background(), "system", conversation(), &RequestOptions{MaxTokens: 100, Temperature: &temp})
	require.NoError(t, err)

	assert.Equal(t, "package main", resp.Content)
	assert.Equal(t, 10, resp.InputTokens)
	assert.Equal(t, 3, resp.OutputTokens)
	assert.False(t, resp.WasTruncated())

	assert.Equal(t, "system", got["system"])
	assert.EqualValues(t, 100, got["max_tokens"])
	assert.InDelta(t, 0.2, got["temperature"], 1e-9)
	msgs := got["messages"].([]any)
	blocks := msgs[0].(map[string]any)["content"].([]any)
	require.Len(t, blocks, 3)
	image := blocks[1].(map[string]any)
	assert.Equal(t, "image", image["type"])
	source := image["source"].(map[string]any)
	assert.Equal(t, "base64", source["type"])
	assert.Equal(t, "image/jpeg", source["media_type"])
	assert.Equal(t, "AAAA", source["data"])
}

func TestAnthropicAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	_, err := NewAnthropicClient("bad", "", srv.URL).Complete(context.Background(), "", conversation(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid x-api-key")
}

func TestAnthropicTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"stop_reason":"max_tokens","content":[{"type":"text","text":"package"}]}`))
	}))
	defer srv.Close()

	resp, err := NewAnthropicClient("k", "", srv.URL).Complete(context.Background(), "", conversation(), nil)
	require.NoError(t, err)
	assert.True(t, resp.WasTruncated())
}

func TestOpenAIComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "gpt-test",
			"choices": [{"index": 0, "finish_reason": "length", "message": {"role": "assistant", "content": "package main"}}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 2, "total_tokens": 9}
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("secret", "gpt-test", srv.URL+"/v1")
	resp, err := c.Complete(context.Background(), "system", conversation(), &RequestOptions{MaxTokens: 50})
	require.NoError(t, err)

	assert.Equal(t, "package main", resp.Content)
	assert.Equal(t, "gpt-test", resp.Model)
	assert.Equal(t, 7, resp.InputTokens)
	assert.True(t, resp.WasTruncated())

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	parts := msgs[1].(map[string]any)["content"].([]any)
	require.Len(t, parts, 3)
	image := parts[1].(map[string]any)
	assert.Equal(t, "image_url", image["type"])
	assert.Equal(t, "data:image/jpeg;base64,AAAA", image["image_url"].(map[string]any)["url"])
}

func TestOpenAISendsZeroTemperature(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer srv.Close()

	zero := 0.0
	c := NewOpenAIClient("secret", "gpt-test", srv.URL+"/v1")
	_, err := c.Complete(context.Background(), "", conversation(), &RequestOptions{Temperature: &zero})
	require.NoError(t, err)

	require.Contains(t, got, "temperature")
	assert.InDelta(t, 0, got["temperature"].(float64), 1e-30)
}

func TestNewProvider(t *testing.T) {
	c, err := New(ProviderOpenAI, "k", "", "")
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = New("", "k", "", "")
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c)

	_, err = New("llama", "k", "", "")
	assert.Error(t, err)
}
