package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"lexiboost/internal/config"
	"lexiboost/internal/models"
	"lexiboost/internal/observability"
	contextutils "lexiboost/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ExplanationServiceInterface produces the enrichment payload for one word.
// Any error means "unavailable now"; callers must not persist failures.
type ExplanationServiceInterface interface {
	Explain(ctx context.Context, word, level string) (*models.Explanation, error)
}

// explanationResponseSchema validates the explainer's JSON payload before
// it is trusted anywhere downstream.
const explanationResponseSchema = `{
	"type": "object",
	"required": ["definition_en", "definition_zh"],
	"properties": {
		"word": {"type": "string"},
		"word_zh": {"type": "string"},
		"pos": {"type": "array", "items": {"type": "string"}},
		"definition_en": {"type": "string", "minLength": 1},
		"definition_zh": {"type": "string", "minLength": 1},
		"distractors_en": {"type": "array", "items": {"type": "string"}},
		"distractors_zh": {"type": "array", "items": {"type": "string"}},
		"examples": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["en", "zh"],
				"properties": {
					"en": {"type": "string"},
					"zh": {"type": "string"}
				}
			}
		}
	}
}`

// ExplanationService calls an external explainer over HTTP. When MockMode
// is set it serves canned deterministic explanations instead.
type ExplanationService struct {
	cfg        *config.ExplainerConfig
	logger     *observability.Logger
	httpClient *http.Client
	schema     *gojsonschema.Schema
}

// NewExplanationService creates a new explanation service instance
func NewExplanationService(cfg *config.ExplainerConfig, logger *observability.Logger) *ExplanationService {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(explanationResponseSchema))
	if err != nil {
		logger.Error(context.Background(), "Failed to compile explanation schema", err)
		panic(err) // Use panic for fatal errors in initialization
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
		),
	}

	return &ExplanationService{
		cfg:        cfg,
		logger:     logger,
		httpClient: httpClient,
		schema:     schema,
	}
}

// Explain fetches an explanation for (word, level) from the configured
// provider and validates it.
func (s *ExplanationService) Explain(ctx context.Context, word, level string) (result0 *models.Explanation, err error) {
	ctx, span := observability.TraceExplainerFunction(ctx, "explain",
		observability.AttributeWord(word),
		observability.AttributeLevel(level),
	)
	defer observability.FinishSpan(span, &err)

	if level == "" {
		level = s.cfg.DefaultLevel
	}

	if s.cfg.MockMode {
		span.SetAttributes(attribute.String("explainer.source", "mock"))
		return mockExplanation(word, level), nil
	}

	payload, err := json.Marshal(map[string]string{
		"word":  word,
		"level": level,
		"model": s.cfg.Model,
	})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to marshal explainer request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to build explainer request")
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, contextutils.WrapError(contextutils.ErrExplainerUnavailable, err.Error())
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close explainer response body", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	span.SetAttributes(attribute.Int("explainer.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		return nil, contextutils.WrapError(contextutils.ErrExplainerUnavailable,
			fmt.Sprintf("explainer returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, contextutils.WrapError(contextutils.ErrExplainerUnavailable, "failed to read explainer response")
	}

	if err := s.validateResponse(body); err != nil {
		return nil, err
	}

	var explanation models.Explanation
	if err := json.Unmarshal(body, &explanation); err != nil {
		return nil, contextutils.WrapError(contextutils.ErrExplainerResponseInvalid, err.Error())
	}
	if explanation.Word == "" {
		explanation.Word = word
	}

	return &explanation, nil
}

// validateResponse checks the raw payload against the response schema.
func (s *ExplanationService) validateResponse(body []byte) error {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return contextutils.WrapError(contextutils.ErrExplainerResponseInvalid, err.Error())
	}

	if !result.Valid() {
		var errorMessages []string
		for _, e := range result.Errors() {
			errorMessages = append(errorMessages, e.String())
		}
		return contextutils.WrapError(contextutils.ErrExplainerResponseInvalid, strings.Join(errorMessages, "; "))
	}

	return nil
}

// mockDefinitions backs mock mode with a handful of real entries; anything
// else gets a synthesized definition.
var mockDefinitions = map[string]models.Explanation{
	"apple": {
		WordZH:       "苹果",
		POS:          []string{"noun"},
		DefinitionEN: "A round red or green fruit that grows on trees",
		DefinitionZH: "一种生长在树上的红色或绿色圆形水果",
	},
	"book": {
		WordZH:       "书",
		POS:          []string{"noun"},
		DefinitionEN: "A written work with pages that you can read",
		DefinitionZH: "有页面可以阅读的书面作品",
	},
	"happy": {
		WordZH:       "快乐",
		POS:          []string{"adjective"},
		DefinitionEN: "Feeling pleased, joyful, or content",
		DefinitionZH: "感到高兴、快乐或满足",
	},
	"run": {
		WordZH:       "跑",
		POS:          []string{"verb"},
		DefinitionEN: "To move quickly on foot",
		DefinitionZH: "用脚快速移动",
	},
	"house": {
		WordZH:       "房子",
		POS:          []string{"noun"},
		DefinitionEN: "A building where people live",
		DefinitionZH: "人们居住的建筑物",
	},
}

var mockDistractorsEN = []string{
	"Something completely unrelated to this word",
	"A different concept that is not correct",
	"An incorrect meaning for this term",
}

var mockDistractorsZH = []string{
	"与这个词完全无关的东西",
	"不正确的不同概念",
	"这个词的错误含义",
}

// mockExplanation returns a deterministic canned explanation for the word.
func mockExplanation(word, _ string) *models.Explanation {
	exp := models.Explanation{
		Word:          word,
		WordZH:        word,
		POS:           []string{"noun"},
		DefinitionEN:  fmt.Sprintf("A word related to %s", word),
		DefinitionZH:  fmt.Sprintf("与%s相关的词", word),
		DistractorsEN: mockDistractorsEN,
		DistractorsZH: mockDistractorsZH,
		Examples: []models.BilingualPair{
			{EN: fmt.Sprintf("I like the %s.", word), ZH: fmt.Sprintf("我喜欢%s。", word)},
		},
	}

	if known, ok := mockDefinitions[strings.ToLower(word)]; ok {
		exp.WordZH = known.WordZH
		exp.POS = known.POS
		exp.DefinitionEN = known.DefinitionEN
		exp.DefinitionZH = known.DefinitionZH
	}

	return &exp
}
