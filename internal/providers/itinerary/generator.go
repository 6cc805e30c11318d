// Package itinerary generates structured travel itineraries through an
// OpenAI-style chat completion API, enforcing the output contract with a
// parse-then-validate pipeline.
package itinerary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
)

// ErrorKind classifies generation failures for the job record.
type ErrorKind string

const (
	KindMalformedOutput     ErrorKind = "malformed_output"
	KindSchemaViolation     ErrorKind = "schema_violation"
	KindProviderUnavailable ErrorKind = "provider_unavailable"
)

// GenerationError carries the failure class alongside the diagnostic.
type GenerationError struct {
	Kind ErrorKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Generator produces a validated itinerary for a destination and day count.
type Generator interface {
	Generate(ctx context.Context, destination string, durationDays int) ([]domain.Day, error)
}

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second

	// Itineraries benefit from some variety while still needing
	// structural compliance.
	samplingTemperature = 0.7

	maxAttempts = 3
)

// Base delays before the 2nd and 3rd attempts; each is perturbed by jitter
// so concurrent jobs do not retry in lockstep.
var defaultBackoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Options configures the OpenAI-backed planner.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
	// Backoff overrides the retry delays; tests inject short ones.
	Backoff []time.Duration
}

// OpenAIPlanner calls the chat-completions endpoint in structured-JSON mode.
type OpenAIPlanner struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  *infra.Logger
	backoff []time.Duration
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAIPlanner constructs a planner with sane defaults.
func NewOpenAIPlanner(opts Options) (*OpenAIPlanner, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("itinerary: openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	backoff := opts.Backoff
	if len(backoff) == 0 {
		backoff = defaultBackoff
	}
	return &OpenAIPlanner{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: baseURL,
		client:  client,
		logger:  logger,
		backoff: backoff,
	}, nil
}

// Generate invokes the completion API under the retry policy, then runs the
// validation pipeline over the returned text. Validation failures are never
// retried; only transient provider failures are.
func (p *OpenAIPlanner) Generate(ctx context.Context, destination string, durationDays int) ([]domain.Day, error) {
	text, err := p.completeWithRetry(ctx, destination, durationDays)
	if err != nil {
		return nil, err
	}
	days, err := parseItinerary(text, durationDays)
	if err != nil {
		p.logger.Warn().Err(err).Str("destination", destination).Msg("itinerary: completion failed validation")
		return nil, err
	}
	return days, nil
}

type attemptError struct {
	err       error
	transient bool
}

func (p *OpenAIPlanner) completeWithRetry(ctx context.Context, destination string, durationDays int) (string, error) {
	var last attemptError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := jitter(p.backoff[min(attempt-2, len(p.backoff)-1)])
			p.logger.Debug().
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("itinerary: retrying completion")
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", &GenerationError{Kind: KindProviderUnavailable, Err: ctx.Err()}
			case <-timer.C:
			}
		}

		text, attErr := p.complete(ctx, destination, durationDays)
		if attErr == nil {
			return text, nil
		}
		last = *attErr
		if !attErr.transient {
			return "", fmt.Errorf("%w: %w", domain.ErrProviderFailure, attErr.err)
		}
		p.logger.Warn().Err(attErr.err).Int("attempt", attempt).Msg("itinerary: transient provider failure")
	}
	return "", &GenerationError{Kind: KindProviderUnavailable, Err: last.err}
}

// complete performs a single completion call. Rate-limit and server-error
// responses, plus transport failures, are classified transient.
func (p *OpenAIPlanner) complete(ctx context.Context, destination string, durationDays int) (string, *attemptError) {
	payload := chatRequest{
		Model:          p.model,
		Temperature:    samplingTemperature,
		ResponseFormat: &chatFormat{Type: "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(destination, durationDays)},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", &attemptError{err: fmt.Errorf("encode request: %w", err)}
	}
	endpoint := fmt.Sprintf("%s/chat/completions", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", &attemptError{err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &attemptError{err: fmt.Errorf("http request: %w", err), transient: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", &attemptError{
			err:       fmt.Errorf("openai status %d: %s", resp.StatusCode, msg),
			transient: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &attemptError{err: fmt.Errorf("decode response: %w", err)}
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", &attemptError{err: errors.New(decoded.Error.Message)}
	}
	if len(decoded.Choices) == 0 {
		return "", &attemptError{err: errors.New("no choices in completion")}
	}
	return decoded.Choices[0].Message.Content, nil
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	return d + rand.N(d/2)
}

var _ Generator = (*OpenAIPlanner)(nil)
