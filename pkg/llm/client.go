// pkg/llm/client.go
//
// Chat-completions client for commit message drafting. One request per
// call, guarded by a circuit breaker and an optional client-side rate limit.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/config"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxErrorBody caps how much of a failed response is kept for the error.
const maxErrorBody = 2048

var (
	// ErrBreakerOpen marks calls refused because the endpoint kept failing.
	ErrBreakerOpen = cerr.New("language model endpoint unavailable (circuit open)")
	// ErrEmptyResponse marks a 2xx body without choices[0].message.content.
	ErrEmptyResponse = cerr.New("response has no message content")
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StatusError is a non-2xx response from the endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("endpoint returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("endpoint returned HTTP %d: %s", e.Code, e.Body)
}

type request struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client talks to one chat-completions endpoint.
type Client struct {
	cfg     config.LLMConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	metrics *telemetry.Metrics
}

// NewClient builds a client from validated configuration. A nil httpClient
// gets one with cfg.Timeout.
func NewClient(cfg config.LLMConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 3
	}

	c := &Client{cfg: cfg, http: httpClient, metrics: telemetry.DefaultMetrics()}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// a cancelled run says nothing about the endpoint
			return err == nil || cerr.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("Circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), 1)
	}
	return c
}

// BreakerOpen reports whether calls are currently refused without a request.
func (c *Client) BreakerOpen() bool {
	return c.breaker.State() == gobreaker.StateOpen
}

// Complete sends messages and returns the first choice's content. Every
// failure is a GenerationError.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	requestID := uuid.New().String()
	ctx, span := telemetry.Start(ctx, "llm.Complete",
		attribute.String("request_id", requestID),
		attribute.Int("messages", len(messages)))
	defer span.End()
	logger := otelzap.Ctx(ctx)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", eos_err.NewGenerationError("rate limiter wait aborted", err)
		}
	}

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, requestID, messages)
	})
	if err != nil {
		span.RecordError(err)
		if cerr.Is(err, gobreaker.ErrOpenState) || cerr.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.RecordLLMRequest(ctx, "breaker_open", time.Since(start))
			return "", eos_err.NewGenerationError("skipped language model request", cerr.Mark(err, ErrBreakerOpen),
				fmt.Sprintf("The endpoint failed %d times in a row; it is retried after %s", c.cfg.BreakerFailures, c.cfg.BreakerCooldown))
		}
		c.metrics.RecordLLMRequest(ctx, "error", time.Since(start))
		logger.Warn("Language model request failed",
			zap.String("request_id", requestID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", eos_err.NewGenerationError("language model request failed", err, remediation(err)...)
	}

	content := out.(string)
	c.metrics.RecordLLMRequest(ctx, "ok", time.Since(start))
	logger.Debug("Language model responded",
		zap.String("request_id", requestID),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("content_bytes", len(content)))
	return content, nil
}

func (c *Client) do(ctx context.Context, requestID string, messages []Message) (string, error) {
	body, err := json.Marshal(request{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", cerr.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", cerr.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.cfg.AuthScheme == config.AuthSchemeBearer {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	} else {
		req.Header.Set("api-key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", cerr.Wrap(err, "send request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var data response
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", cerr.Wrap(err, "decode response")
	}
	if len(data.Choices) == 0 || strings.TrimSpace(data.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return data.Choices[0].Message.Content, nil
}

func remediation(err error) []string {
	var status *StatusError
	if cerr.As(err, &status) {
		switch {
		case status.Code == http.StatusUnauthorized || status.Code == http.StatusForbidden:
			return []string{"Check OPENAI_API_KEY and llm.auth_scheme (api-key or bearer)"}
		case status.Code == http.StatusNotFound:
			return []string{"Check OPENAI_ENDPOINT points at a chat/completions URL"}
		case status.Code == http.StatusTooManyRequests:
			return []string{"Lower llm.requests_per_minute or wait before rerunning"}
		}
	}
	return nil
}
