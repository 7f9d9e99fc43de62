// Package llm talks to OpenAI-compatible chat completion and speech endpoints.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/eslsoft/tafsirnet/internal/entity"
	"github.com/eslsoft/tafsirnet/internal/usecase"
)

var (
	_ usecase.Generator   = (*Client)(nil)
	_ usecase.Synthesizer = (*Client)(nil)
)

const (
	defaultTemperature = 0.3
	maxRetryInterval   = 10 * time.Second
)

// Options configures a Client.
type Options struct {
	BaseURL       string
	APIKey        string
	Model         string
	MaxTokens     int
	MaxRetries    int
	RatePerSecond float64
	Timeout       time.Duration
	SpeechModel   string
	Voice         string

	// InitialBackoff is the first retry delay; zero uses one second.
	InitialBackoff time.Duration
	HTTPClient     *http.Client
}

// Client implements usecase.Generator and usecase.Synthesizer.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	model          string
	maxTokens      int
	maxRetries     int
	initialBackoff time.Duration
	speechModel    string
	voice          string
	limiter        *rate.Limiter
	log            *logrus.Logger
}

func NewClient(opts Options, log *logrus.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	initial := opts.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		apiKey:         opts.APIKey,
		model:          opts.Model,
		maxTokens:      opts.MaxTokens,
		maxRetries:     opts.MaxRetries,
		initialBackoff: initial,
		speechModel:    opts.SpeechModel,
		voice:          opts.Voice,
		limiter:        rate.NewLimiter(limit, 1),
		log:            log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Generate sends prompt as the user message of a chat completion.
func (c *Client) Generate(ctx context.Context, prompt string, language entity.Language, style entity.StyleLevel) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemMessage(language, style)},
			{Role: "user", Content: prompt},
		},
		Temperature: defaultTemperature,
		MaxTokens:   c.maxTokens,
	}
	raw, err := c.do(ctx, "/chat/completions", req)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: decode completion: %v", entity.ErrProviderFailure, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty completion", entity.ErrProviderFailure)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Synthesize returns mp3 audio for text.
func (c *Client) Synthesize(ctx context.Context, text string, language entity.Language) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: nothing to synthesize", entity.ErrProviderFailure)
	}
	req := speechRequest{
		Model:          c.speechModel,
		Input:          text,
		Voice:          c.voice,
		ResponseFormat: "mp3",
	}
	raw, err := c.do(ctx, "/audio/speech", req)
	if err != nil {
		return nil, fmt.Errorf("speech (%s): %w", language.CodeOrDefault(), err)
	}
	return raw, nil
}

func systemMessage(language entity.Language, style entity.StyleLevel) string {
	return fmt.Sprintf(
		"You are a knowledgeable and respectful Islamic scholar. Always answer in %s, at a %s level, and never fabricate Quran or hadith citations.",
		language.DisplayName(), entity.ParseStyleLevel(string(style)),
	)
}

// do posts body to path, retrying rate limits, server errors and transport
// failures with exponential backoff.
func (c *Client) do(ctx context.Context, path string, body any) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialBackoff
	policy.MaxInterval = maxRetryInterval
	retries := c.maxRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx)

	var raw []byte
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		out, err := c.doOnce(ctx, path, body)
		if err != nil {
			if !isRetryable(ctx, err) {
				return backoff.Permanent(err)
			}
			return err
		}
		raw = out
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.log.WithFields(logrus.Fields{
			"path":  path,
			"sleep": wait.String(),
			"error": err.Error(),
		}).Warn("llm request retrying")
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", entity.ErrProviderFailure, err)
	}
	return raw, nil
}

func (c *Client) doOnce(ctx context.Context, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("llm http %d: %s", e.StatusCode, e.Body)
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var he *httpError
	if errors.As(err, &he) {
		return he.StatusCode == http.StatusTooManyRequests || he.StatusCode >= 500
	}
	return true
}
