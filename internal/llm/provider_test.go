package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/sells-group/lead-engine/internal/resilience"
)

func TestAnthropicProvider_Generate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-haiku-4-5-20251001", body["model"])
		assert.NotNil(t, body["system"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_test_001",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": `{"score_fit": 12}`},
			},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage": map[string]any{
				"input_tokens":                10,
				"output_tokens":               5,
				"cache_creation_input_tokens": 0,
				"cache_read_input_tokens":     2,
			},
		})
	}))
	defer ts.Close()

	p := NewAnthropicProvider("test-key", option.WithBaseURL(ts.URL))
	resp, err := p.Generate(context.Background(), Request{
		Model:       "claude-haiku-4-5-20251001",
		System:      "be terse",
		Prompt:      "classify this",
		MaxTokens:   256,
		Temperature: 0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"score_fit": 12}`, resp.Text)
	assert.Equal(t, "claude-haiku-4-5-20251001", resp.Model)
	assert.Equal(t, int64(10), resp.Usage.InputTokens)
	assert.Equal(t, int64(5), resp.Usage.OutputTokens)
	assert.Equal(t, int64(2), resp.Usage.CacheReadTokens)
}

func TestAnthropicProvider_TransientStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(529)
		w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)) //nolint:errcheck
	}))
	defer ts.Close()

	p := NewAnthropicProvider("test-key", option.WithBaseURL(ts.URL))
	_, err := p.Generate(context.Background(), Request{Model: "m", Prompt: "x", MaxTokens: 10})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestAnthropicProvider_ClientErrorNotTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)) //nolint:errcheck
	}))
	defer ts.Close()

	p := NewAnthropicProvider("test-key", option.WithBaseURL(ts.URL))
	_, err := p.Generate(context.Background(), Request{Model: "m", Prompt: "x", MaxTokens: 10})
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

type fakeModels struct {
	resp   *genai.GenerateContentResponse
	err    error
	model  string
	config *genai.GenerateContentConfig
	prompt string
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func TestGeminiProvider_Generate(t *testing.T) {
	t.Parallel()
	fake := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: `{"snapshot":`}, {Text: ` "ok"}`}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 40, CandidatesTokenCount: 12},
	}}
	p := &GeminiProvider{models: fake}

	resp, err := p.Generate(context.Background(), Request{Model: "gemini-2.5-flash", Prompt: "hello", MaxTokens: 100, Temperature: 0.3})
	require.NoError(t, err)
	assert.Equal(t, `{"snapshot": "ok"}`, resp.Text)
	assert.Equal(t, int64(40), resp.Usage.InputTokens)
	assert.Equal(t, int64(12), resp.Usage.OutputTokens)

	assert.Equal(t, "gemini-2.5-flash", fake.model)
	assert.Equal(t, "hello", fake.prompt)
	assert.Equal(t, int32(100), fake.config.MaxOutputTokens)
	assert.Equal(t, "application/json", fake.config.ResponseMIMEType)
	assert.Nil(t, fake.config.SystemInstruction)
}

func TestGeminiProvider_Errors(t *testing.T) {
	t.Parallel()

	p := &GeminiProvider{models: &fakeModels{err: genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}}}
	_, err := p.Generate(context.Background(), Request{Model: "m", Prompt: "x"})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	p = &GeminiProvider{models: &fakeModels{err: genai.APIError{Code: http.StatusForbidden, Status: "PERMISSION_DENIED"}}}
	_, err = p.Generate(context.Background(), Request{Model: "m", Prompt: "x"})
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))

	p = &GeminiProvider{models: &fakeModels{err: errors.New("boom")}}
	_, err = p.Generate(context.Background(), Request{Model: "m", Prompt: "x"})
	assert.Error(t, err)
}

func TestNewGeminiProvider_RequiresKey(t *testing.T) {
	t.Parallel()
	_, err := NewGeminiProvider(context.Background(), "  ")
	assert.Error(t, err)
}
