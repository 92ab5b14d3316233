package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/simmer-app/backend/internal/apperror"
	"github.com/simmer-app/backend/internal/model"
)

const (
	defaultLLMBaseURL = "https://openrouter.ai/api"
	defaultLLMModel   = "openai/gpt-4o-mini"
	defaultLLMTimeout = 15 * time.Second
	defaultMaxRetries = 3

	llmCacheTTL = 24 * time.Hour
)

// ChatMessage is one role-tagged message in a provider conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SendOptions carries optional per-call parameters. Streaming is requested
// through Stream and is rejected up front: this client never consumes
// streamed responses.
type SendOptions struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	Stream      bool
}

// ChatCompletion is the provider payload returned by SendMessage.
type ChatCompletion struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// LLMHealth is the result of a provider health check.
type LLMHealth struct {
	OK        bool  `json:"ok"`
	LatencyMs int64 `json:"latency_ms"`
}

// Substitution is one ingredient replacement proposed for a health condition.
type Substitution struct {
	Ingredient  string `json:"ingredient"`
	Replacement string `json:"replacement"`
	Reason      string `json:"reason"`
}

// LLMConfig configures the enrichment client. Only APIKey is mandatory.
// MaxRetries is the number of retries after the first attempt; zero disables
// retrying and a negative value selects the default.
type LLMConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	MaxRetries   int
	SystemPrompt string
}

// LLMService wraps outbound calls to an OpenRouter-compatible chat-completion
// provider with timeout, retry with jittered exponential backoff, error
// classification and structured-response validation.
type LLMService struct {
	apiKey       string
	baseURL      string
	model        string
	timeout      time.Duration
	maxRetries   int
	systemPrompt string

	client  *http.Client
	redis   *redis.Client
	schemas *SchemaRegistry
	logger  *zap.Logger

	// overridable in tests to keep the retry loop fast
	backoff func(attempt int) time.Duration
}

// NewLLMService creates a new enrichment client. redisClient is optional; when
// present, structured results are cached by content hash.
func NewLLMService(cfg LLMConfig, redisClient *redis.Client, logger *zap.Logger) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("enrichment provider API key must be set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultLLMBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultLLMModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultLLMTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	schemas, err := NewSchemaRegistry()
	if err != nil {
		return nil, err
	}

	logger.Info("enrichment client initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model),
		zap.String("api_key", maskSecret(cfg.APIKey)),
	)

	return &LLMService{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		model:        cfg.Model,
		timeout:      cfg.Timeout,
		maxRetries:   cfg.MaxRetries,
		systemPrompt: cfg.SystemPrompt,
		client:       &http.Client{},
		redis:        redisClient,
		schemas:      schemas,
		logger:       logger,
		backoff:      defaultBackoff,
	}, nil
}

// Schemas exposes the structured-response registry so callers can register
// additional contracts.
func (s *LLMService) Schemas() *SchemaRegistry {
	return s.schemas
}

// maskSecret hides a credential for log output.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "********"
}

// defaultBackoff computes the wait before retry attempt+1:
// min(2s, 300ms * 2^attempt) plus up to 100ms of jitter.
func defaultBackoff(attempt int) time.Duration {
	wait := 300 * time.Millisecond << uint(attempt)
	if wait > 2*time.Second {
		wait = 2 * time.Second
	}
	return wait + time.Duration(rand.Intn(100))*time.Millisecond
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat json.RawMessage `json:"response_format,omitempty"`
}

// SendMessage sends a chat request and returns the raw provider response.
// Network failures and rate limits are retried with backoff up to the
// configured attempt limit; everything else surfaces immediately.
func (s *LLMService) SendMessage(ctx context.Context, messages []ChatMessage, opts *SendOptions) (*ChatCompletion, error) {
	return s.send(ctx, messages, opts, nil)
}

func (s *LLMService) send(ctx context.Context, messages []ChatMessage, opts *SendOptions, responseFormat json.RawMessage) (*ChatCompletion, error) {
	if opts != nil && opts.Stream {
		return nil, apperror.New(apperror.KindUnsupported, "streaming responses are not supported")
	}

	req := chatRequest{
		Model:          s.model,
		Messages:       messages,
		ResponseFormat: responseFormat,
	}
	if s.systemPrompt != "" {
		req.Messages = append([]ChatMessage{{Role: "system", Content: s.systemPrompt}}, messages...)
	}
	if opts != nil {
		if opts.Model != "" {
			req.Model = opts.Model
		}
		req.Temperature = opts.Temperature
		req.MaxTokens = opts.MaxTokens
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			wait := s.backoff(attempt - 1)
			s.logger.Debug("retrying enrichment request",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, apperror.Wrap(apperror.KindNetwork, "request cancelled", ctx.Err())
			}
		}

		completion, err := s.doRequest(ctx, body)
		if err == nil {
			return completion, nil
		}
		lastErr = err
		if !apperror.Retriable(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

func (s *LLMService) doRequest(ctx context.Context, body []byte) (*ChatCompletion, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindNetwork, "provider request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindNetwork, "failed to read provider response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, apperror.New(apperror.KindAuthentication, "provider rejected credentials")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperror.RateLimit("provider rate limit exceeded", parseRetryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, apperror.Provider(resp.StatusCode, string(respBody))
	}

	var completion ChatCompletion
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, apperror.Wrap(apperror.KindResponseFormat, "failed to decode provider response", err)
	}
	if len(completion.Choices) == 0 {
		return nil, apperror.New(apperror.KindResponseFormat, "provider returned no choices")
	}

	return &completion, nil
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}

// SendStructuredMessage sends a chat request with a named structured-response
// contract and validates the provider's output against it before returning.
// A schema mismatch is deterministic and is never retried.
func (s *LLMService) SendStructuredMessage(ctx context.Context, messages []ChatMessage, schemaName string) (json.RawMessage, error) {
	raw, ok := s.schemas.Raw(schemaName)
	if !ok {
		return nil, fmt.Errorf("unknown response schema %q", schemaName)
	}

	format, err := json.Marshal(map[string]interface{}{
		"type": "json_schema",
		"json_schema": map[string]interface{}{
			"name":   schemaName,
			"strict": true,
			"schema": raw,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response format: %w", err)
	}

	completion, err := s.send(ctx, messages, nil, format)
	if err != nil {
		return nil, err
	}

	content := []byte(completion.Choices[0].Message.Content)
	violations, err := s.schemas.Validate(schemaName, content)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, &apperror.Error{
			Kind:    apperror.KindResponseFormat,
			Message: fmt.Sprintf("provider response does not conform to schema %q", schemaName),
			Details: violations,
		}
	}

	return json.RawMessage(content), nil
}

// HealthCheck verifies the provider is reachable and reports round-trip
// latency.
func (s *LLMService) HealthCheck(ctx context.Context) (*LLMHealth, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return &LLMHealth{OK: false, LatencyMs: latency}, apperror.Wrap(apperror.KindNetwork, "provider unreachable", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return &LLMHealth{
		OK:        resp.StatusCode >= 200 && resp.StatusCode < 300,
		LatencyMs: latency,
	}, nil
}

// EstimateNutrition asks the provider for a macronutrient estimate for the
// given ingredient list, optionally adjusted for a health condition. Results
// are cached in Redis by content hash.
func (s *LLMService) EstimateNutrition(ctx context.Context, ingredients []model.IngredientEntry, condition string) (*model.NutritionSummary, error) {
	key := s.cacheKey("nutrition", ingredients, condition)
	if cached, ok := s.cacheGet(ctx, key); ok {
		var summary model.NutritionSummary
		if err := json.Unmarshal(cached, &summary); err == nil {
			return &summary, nil
		}
	}

	prompt := "Estimate the total macronutrients for a dish with these ingredients:\n" + formatIngredients(ingredients)
	if condition != "" {
		prompt += "\nThe estimate is for a person with: " + condition + "."
	}

	messages := []ChatMessage{
		{Role: "system", Content: "You are a nutrition expert. Respond only with JSON matching the requested schema."},
		{Role: "user", Content: prompt},
	}

	payload, err := s.SendStructuredMessage(ctx, messages, SchemaNutritionEstimate)
	if err != nil {
		return nil, err
	}

	var summary model.NutritionSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, apperror.Wrap(apperror.KindResponseFormat, "failed to parse nutrition estimate", err)
	}

	s.cacheSet(ctx, key, payload)
	return &summary, nil
}

// SuggestSubstitutions asks the provider for ingredient replacements suitable
// for a health condition (diabetes, celiac, lactose intolerance, ...).
func (s *LLMService) SuggestSubstitutions(ctx context.Context, ingredients []model.IngredientEntry, condition string) ([]Substitution, error) {
	if condition == "" {
		return nil, apperror.Validation(map[string]string{"condition": "must not be empty"})
	}

	key := s.cacheKey("substitutions", ingredients, condition)
	if cached, ok := s.cacheGet(ctx, key); ok {
		var wrapper struct {
			Substitutions []Substitution `json:"substitutions"`
		}
		if err := json.Unmarshal(cached, &wrapper); err == nil {
			return wrapper.Substitutions, nil
		}
	}

	prompt := fmt.Sprintf(
		"Propose ingredient substitutions suitable for a person with %s. Keep the dish recognizable.\nIngredients:\n%s",
		condition, formatIngredients(ingredients),
	)

	messages := []ChatMessage{
		{Role: "system", Content: "You are a dietitian. Respond only with JSON matching the requested schema."},
		{Role: "user", Content: prompt},
	}

	payload, err := s.SendStructuredMessage(ctx, messages, SchemaIngredientSubstitutions)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Substitutions []Substitution `json:"substitutions"`
	}
	if err := json.Unmarshal(payload, &wrapper); err != nil {
		return nil, apperror.Wrap(apperror.KindResponseFormat, "failed to parse substitutions", err)
	}

	s.cacheSet(ctx, key, payload)
	return wrapper.Substitutions, nil
}

func formatIngredients(ingredients []model.IngredientEntry) string {
	lines := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		unit := ing.UnitText
		name := ing.Name
		if ing.NormalizedName != "" {
			name = ing.NormalizedName
		}
		lines = append(lines, strings.TrimSpace(fmt.Sprintf("%g %s %s", ing.Quantity, unit, name)))
	}
	return strings.Join(lines, "\n")
}

func (s *LLMService) cacheKey(kind string, ingredients []model.IngredientEntry, condition string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte(s.model))
	h.Write([]byte(condition))
	h.Write([]byte(formatIngredients(ingredients)))
	return "llm:" + kind + ":" + hex.EncodeToString(h.Sum(nil))
}

func (s *LLMService) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.redis == nil {
		return nil, false
	}
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *LLMService) cacheSet(ctx context.Context, key string, data []byte) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, llmCacheTTL).Err(); err != nil {
		s.logger.Warn("failed to cache enrichment result", zap.Error(err))
	}
}
