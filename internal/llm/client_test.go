package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/cost"
	"github.com/sells-group/lead-engine/internal/resilience"
)

// MockProvider implements Provider for testing.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Response), args.Error(1)
}

const validClassification = `{
  "icp_match": true,
  "size_bucket": "2-5",
  "region": "india",
  "role_type": "first_marketer",
  "pain_tags": ["no marketing team"],
  "score_fit": 45,
  "score_pain": 35,
  "score_data_quality": 9,
  "reason_short": "founder hiring first marketer",
  "economic_buyer_guess": "founder"
}`

func testModelConfig() config.ModelConfig {
	return config.ModelConfig{
		Provider:            "anthropic",
		ClassifyModel:       "classify-model",
		DossierModel:        "dossier-model",
		MaxTokens:           512,
		TemperatureClassify: 0.1,
		TemperatureDossier:  0.3,
	}
}

func fastRetry() config.RetryConfig {
	return config.RetryConfig{MaxAttempts: 3, InitialBackoffMs: 1, MaxBackoffMs: 2, Multiplier: 2}
}

func newTestClient(p Provider) *Client {
	return NewClient(p, testModelConfig(), fastRetry(), config.CircuitConfig{FailureThreshold: 5, ResetTimeoutSecs: 60})
}

func textResponse(s string) *Response {
	return &Response{Text: s, Model: "classify-model", Usage: cost.Usage{InputTokens: 100, OutputTokens: 50}}
}

func TestClassify_Success(t *testing.T) {
	t.Parallel()
	p := new(MockProvider)
	p.On("Generate", mock.Anything, mock.MatchedBy(func(r Request) bool {
		return r.Model == "classify-model" && r.Temperature == 0.1 && r.MaxTokens == 512 && r.Prompt == "prompt"
	})).Return(textResponse("```json\n"+validClassification+"\n```"), nil).Once()

	c := newTestClient(p)
	res, err := c.Classify(context.Background(), "prompt")
	require.NoError(t, err)
	assert.True(t, res.ICPMatch)
	assert.Equal(t, 45.0, res.ScoreFit)
	assert.Equal(t, "first_marketer", res.RoleType)
	p.AssertExpectations(t)

	st := c.Stats()
	assert.Equal(t, int64(1), st.Calls)
	assert.Zero(t, st.Unavailable)
	assert.Equal(t, "closed", st.Breaker)
}

func TestClassify_InvalidJSONNotRetried(t *testing.T) {
	t.Parallel()
	p := new(MockProvider)
	p.On("Generate", mock.Anything, mock.Anything).Return(textResponse("I cannot help with that."), nil).Once()

	c := newTestClient(p)
	_, err := c.Classify(context.Background(), "prompt")
	require.Error(t, err)

	var outErr *ModelOutputError
	require.ErrorAs(t, err, &outErr)
	assert.Equal(t, StageClassify, outErr.Stage)
	assert.Equal(t, "I cannot help with that.", outErr.Raw)
	assert.True(t, IsModelOutput(err))
	assert.False(t, IsModelUnavailable(err))
	p.AssertNumberOfCalls(t, "Generate", 1)
	assert.Equal(t, int64(1), c.Stats().InvalidOutput)
}

func TestClassify_SchemaViolation(t *testing.T) {
	t.Parallel()
	p := new(MockProvider)
	p.On("Generate", mock.Anything, mock.Anything).
		Return(textResponse(`{"role_type": "astronaut", "score_fit": 10}`), nil).Once()

	_, err := newTestClient(p).Classify(context.Background(), "prompt")
	var outErr *ModelOutputError
	require.ErrorAs(t, err, &outErr)
	assert.Contains(t, outErr.Error(), "schema validation")
}

func TestClassify_MissingSubScores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		field   string
	}{
		{"empty object", `{}`, "score_fit"},
		{"unrelated object", `{"weather": "sunny", "temperature": 21}`, "score_fit"},
		{"missing pain", `{"score_fit": 40, "score_data_quality": 5}`, "score_pain"},
		{"null quality", `{"score_fit": 40, "score_pain": 20, "score_data_quality": null}`, "score_data_quality"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := new(MockProvider)
			p.On("Generate", mock.Anything, mock.Anything).Return(textResponse(tt.payload), nil).Once()

			c := newTestClient(p)
			res, err := c.Classify(context.Background(), "prompt")
			assert.Nil(t, res)
			var outErr *ModelOutputError
			require.ErrorAs(t, err, &outErr)
			assert.Equal(t, tt.payload, outErr.Raw)
			assert.Contains(t, outErr.Error(), tt.field)
			assert.Equal(t, int64(1), c.Stats().InvalidOutput)
		})
	}
}

func TestClassify_ZeroSubScoresAccepted(t *testing.T) {
	t.Parallel()
	p := new(MockProvider)
	p.On("Generate", mock.Anything, mock.Anything).
		Return(textResponse(`{"score_fit": 0, "score_pain": 0, "score_data_quality": 0}`), nil).Once()

	res, err := newTestClient(p).Classify(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Zero(t, res.ScoreFit)
}

func TestClassify_WrongTypes(t *testing.T) {
	t.Parallel()
	p := new(MockProvider)
	p.On("Generate", mock.Anything, mock.Anything).
		Return(textResponse(`{"score_fit": "high"}`), nil).Once()

	_, err := newTestClient(p).Classify(context.Background(), "prompt")
	assert.True(t, IsModelOutput(err))
}

func TestClassify_RetriesTransient(t *testing.T) {
	t.Parallel()
	p := new(MockProvider)
	p.On("Generate", mock.Anything, mock.Anything).
		Return(nil, resilience.Transient(errors.New("overloaded"), 529)).Twice()
	p.On("Generate", mock.Anything, mock.Anything).
		Return(textResponse(validClassification), nil).Once()

	c := newTestClient(p)
	res, err := c.Classify(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, 35.0, res.ScorePain)
	p.AssertNumberOfCalls(t, "Generate", 3)
}

func TestClassify_UnavailableAfterRetries(t *testing.T) {
	t.Parallel()
	p := new(MockProvider)
	p.On("Generate", mock.Anything, mock.Anything).
		Return(nil, resilience.Transient(errors.New("bad gateway"), 502))

	c := newTestClient(p)
	_, err := c.Classify(context.Background(), "prompt")
	require.Error(t, err)

	var unavail *ModelUnavailableError
	require.ErrorAs(t, err, &unavail)
	assert.Equal(t, StageClassify, unavail.Stage)
	p.AssertNumberOfCalls(t, "Generate", 3)
	assert.Equal(t, int64(1), c.Stats().Unavailable)
}

func TestClassify_PermanentErrorNotRetried(t *testing.T) {
	t.Parallel()
	p := new(MockProvider)
	p.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("invalid api key")).Once()

	c := newTestClient(p)
	_, err := c.Classify(context.Background(), "prompt")

	var rejected *ModelRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, StageClassify, rejected.Stage)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.False(t, IsModelUnavailable(err))
	p.AssertNumberOfCalls(t, "Generate", 1)

	st := c.Stats()
	assert.Equal(t, int64(1), st.Rejected)
	assert.Zero(t, st.Unavailable)
	assert.Equal(t, "closed", st.Breaker)
}

func TestGenerateDossier_RejectedRequest(t *testing.T) {
	t.Parallel()
	p := new(MockProvider)
	p.On("Generate", mock.Anything, mock.Anything).
		Return(nil, errors.New(`400 Bad Request: model "claude-nope" not found`)).Once()

	c := newTestClient(p)
	_, err := c.GenerateDossier(context.Background(), "prompt")

	assert.True(t, IsModelRejected(err))
	var rejected *ModelRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, StageDossier, rejected.Stage)
	p.AssertNumberOfCalls(t, "Generate", 1)
	assert.Equal(t, int64(1), c.Stats().Rejected)
}

func TestClassify_BreakerOpens(t *testing.T) {
	t.Parallel()
	p := new(MockProvider)
	p.On("Generate", mock.Anything, mock.Anything).
		Return(nil, resilience.Transient(errors.New("unavailable"), 503))

	c := NewClient(p, testModelConfig(), config.RetryConfig{MaxAttempts: 1},
		config.CircuitConfig{FailureThreshold: 2, ResetTimeoutSecs: 60})

	for range 2 {
		_, err := c.Classify(context.Background(), "prompt")
		require.Error(t, err)
	}
	p.AssertNumberOfCalls(t, "Generate", 2)

	_, err := c.Classify(context.Background(), "prompt")
	assert.ErrorIs(t, err, resilience.ErrBreakerOpen)
	assert.True(t, IsModelUnavailable(err))
	p.AssertNumberOfCalls(t, "Generate", 2)
	assert.Equal(t, "open", c.Stats().Breaker)
}

func TestClassify_ContextCanceled(t *testing.T) {
	t.Parallel()
	p := new(MockProvider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(p).Classify(ctx, "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	p.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGenerateDossier(t *testing.T) {
	t.Parallel()
	p := new(MockProvider)
	p.On("Generate", mock.Anything, mock.MatchedBy(func(r Request) bool {
		return r.Model == "dossier-model" && r.Temperature == 0.3
	})).Return(textResponse(`Here you go: {"snapshot": "Seed-stage D2C brand", "why_pain_bullets": ["no marketer"]}`), nil).Once()

	d, err := newTestClient(p).GenerateDossier(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Seed-stage D2C brand", d.Snapshot)
	assert.Equal(t, []string{"no marketer"}, d.WhyPainBullets)
}

func TestGenerateDossier_MissingSnapshot(t *testing.T) {
	t.Parallel()
	p := new(MockProvider)
	p.On("Generate", mock.Anything, mock.Anything).Return(textResponse(`{"why_pain_bullets": []}`), nil).Once()

	_, err := newTestClient(p).GenerateDossier(context.Background(), "prompt")
	var outErr *ModelOutputError
	require.ErrorAs(t, err, &outErr)
	assert.Equal(t, StageDossier, outErr.Stage)
}

func TestModelID(t *testing.T) {
	t.Parallel()
	c := newTestClient(new(MockProvider))
	assert.Equal(t, "mock/classify-model", c.ModelID())
}

func TestNew_UnknownProvider(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Model: config.ModelConfig{Provider: "ollama"}}
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNew_Anthropic(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Model: testModelConfig(), Anthropic: config.AnthropicConfig{Key: "k"}}
	c, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "anthropic/classify-model", c.ModelID())
}

func TestCleanJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`Sure! {"a":{"b":2}} Hope this helps.`, `{"a":{"b":2}}`},
		{"no json here", "no json here"},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanJSON(tt.in))
	}
}
