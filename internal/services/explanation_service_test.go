package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lexiboost/internal/config"
	"lexiboost/internal/models"
	"lexiboost/internal/observability"
	contextutils "lexiboost/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExplainerConfig(url string) *config.ExplainerConfig {
	return &config.ExplainerConfig{
		URL:          url,
		Timeout:      2 * time.Second,
		DefaultLevel: "k12",
	}
}

func testLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{})
}

func TestExplanationService_MockMode(t *testing.T) {
	cfg := testExplainerConfig("")
	cfg.MockMode = true
	svc := NewExplanationService(cfg, testLogger())

	exp, err := svc.Explain(context.Background(), "apple", "k12")
	require.NoError(t, err)
	assert.Equal(t, "苹果", exp.WordZH)
	assert.Equal(t, "A round red or green fruit that grows on trees", exp.DefinitionEN)
	assert.Len(t, exp.DistractorsEN, 3)
	assert.Len(t, exp.DistractorsZH, 3)
	assert.NotEmpty(t, exp.Examples)

	// Unknown words still get a complete payload.
	exp, err = svc.Explain(context.Background(), "zephyr", "")
	require.NoError(t, err)
	assert.Equal(t, "zephyr", exp.Word)
	assert.NotEmpty(t, exp.DefinitionEN)
	assert.NotEmpty(t, exp.DefinitionZH)
}

func TestExplanationService_MockModeDeterministic(t *testing.T) {
	cfg := testExplainerConfig("")
	cfg.MockMode = true
	svc := NewExplanationService(cfg, testLogger())

	first, err := svc.Explain(context.Background(), "tree", "k12")
	require.NoError(t, err)
	second, err := svc.Explain(context.Background(), "tree", "k12")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExplanationService_HTTPSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cat", req["word"])
		assert.Equal(t, "k12", req["level"])

		_ = json.NewEncoder(w).Encode(models.Explanation{
			Word:          "cat",
			WordZH:        "猫",
			POS:           []string{"noun"},
			DefinitionEN:  "A small domesticated carnivorous mammal",
			DefinitionZH:  "一种小型家养食肉哺乳动物",
			DistractorsEN: []string{"a kind of plant"},
			DistractorsZH: []string{"一种植物"},
			Examples:      []models.BilingualPair{{EN: "The cat sleeps.", ZH: "猫在睡觉。"}},
		})
	}))
	defer server.Close()

	svc := NewExplanationService(testExplainerConfig(server.URL), testLogger())

	exp, err := svc.Explain(context.Background(), "cat", "k12")
	require.NoError(t, err)
	assert.Equal(t, "猫", exp.WordZH)
	assert.Equal(t, []string{"a kind of plant"}, exp.DistractorsEN)
}

func TestExplanationService_HTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	svc := NewExplanationService(testExplainerConfig(server.URL), testLogger())

	_, err := svc.Explain(context.Background(), "cat", "k12")
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeExplainerUnavailable, contextutils.GetErrorCode(err))
}

func TestExplanationService_SchemaRejection(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing definitions", `{"word": "cat"}`},
		{"empty definition", `{"definition_en": "", "definition_zh": "x"}`},
		{"wrong distractor type", `{"definition_en": "a", "definition_zh": "b", "distractors_en": "not-an-array"}`},
		{"malformed example", `{"definition_en": "a", "definition_zh": "b", "examples": [{"en": "only english"}]}`},
		{"not json", `plain text`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			svc := NewExplanationService(testExplainerConfig(server.URL), testLogger())

			_, err := svc.Explain(context.Background(), "cat", "k12")
			require.Error(t, err)
			assert.Equal(t, contextutils.ErrorCodeExplainerResponseInvalid, contextutils.GetErrorCode(err))
		})
	}
}

func TestExplanationService_Unreachable(t *testing.T) {
	cfg := testExplainerConfig("http://127.0.0.1:1/explain")
	cfg.Timeout = 500 * time.Millisecond
	svc := NewExplanationService(cfg, testLogger())

	_, err := svc.Explain(context.Background(), "cat", "k12")
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeExplainerUnavailable, contextutils.GetErrorCode(err))
}
