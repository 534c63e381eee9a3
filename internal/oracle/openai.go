// Package oracle provides the optional OpenAI-backed refinement capability
// consulted by the specialist evaluators.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bizmatters/maker-orchestrator/internal/specialists"
)

// Config configures the OpenAI oracle.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIOracle asks a chat model for a JSON object refining an evaluator baseline.
type OpenAIOracle struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	tracer  trace.Tracer
	logger  *zap.Logger
}

var errEmptyCompletion = errors.New("completion returned no choices")

// NewOpenAIOracle returns nil when no API key is configured. Callers must not
// wrap a nil result in a specialists.Oracle interface value.
func NewOpenAIOracle(cfg Config, logger *zap.Logger) *OpenAIOracle {
	if cfg.APIKey == "" {
		return nil
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-5-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}

	logger = logger.With(zap.String("component", "oracle"))
	settings := gobreaker.Settings{
		Name:        "openai-oracle",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &OpenAIOracle{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		breaker: gobreaker.NewCircuitBreaker(settings),
		tracer:  otel.Tracer("oracle"),
		logger:  logger,
	}
}

// Suggest implements specialists.Oracle. Every failure is logged at debug and
// reported as no suggestion.
func (o *OpenAIOracle) Suggest(ctx context.Context, req specialists.Request) (map[string]any, bool) {
	ctx, span := o.tracer.Start(ctx, "oracle.suggest")
	defer span.End()
	span.SetAttributes(attribute.String("agent", req.Agent), attribute.String("model", o.model))

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	result, err := o.breaker.Execute(func() (interface{}, error) {
		return o.complete(ctx, req)
	})
	if err != nil {
		span.RecordError(err)
		o.logger.Debug("oracle suggestion discarded", zap.String("agent", req.Agent), zap.Error(err))
		return nil, false
	}
	return result.(map[string]any), true
}

func (o *OpenAIOracle) complete(ctx context.Context, req specialists.Request) (map[string]any, error) {
	user, err := json.Marshal(map[string]any{
		"prompt":          req.Prompt,
		"seed":            req.Seed,
		"expected_schema": req.Schema,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal oracle request: %w", err)
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf("You are %s for a 3D-print assistant. "+
					"Respond in strict JSON only. Use British English where text is present.", req.Agent),
			},
			{Role: openai.ChatMessageRoleUser, Content: string(user)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errEmptyCompletion
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		content = "{}"
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode completion payload: %w", err)
	}
	if payload == nil {
		return nil, fmt.Errorf("completion payload is not an object")
	}
	return payload, nil
}
