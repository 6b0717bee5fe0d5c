package oracle

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

	"github.com/sony/gobreaker"

	"github.com/teemow/inboxtriage/internal/instrumentation"
	"github.com/teemow/inboxtriage/internal/logging"
	"github.com/teemow/inboxtriage/internal/triage"
)

const (
	DefaultURL          = "http://localhost:11434"
	DefaultModel        = "qwen2.5-coder:14b"
	DefaultTimeout      = 120 * time.Second
	DefaultSnippetLimit = 200

	availabilityTimeout = 5 * time.Second
	maxResponseBytes    = 1 << 20
)

// Config describes the Ollama endpoint and model.
type Config struct {
	URL          string
	Model        string
	Timeout      time.Duration
	SnippetLimit int
	// BreakerFailures is the number of consecutive transport failures after
	// which calls are short-circuited for BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// DefaultConfig returns the settings of a stock local Ollama install.
func DefaultConfig() Config {
	return Config{
		URL:             DefaultURL,
		Model:           DefaultModel,
		Timeout:         DefaultTimeout,
		SnippetLimit:    DefaultSnippetLimit,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

// Client talks to the Ollama chat API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	metrics    *instrumentation.Metrics
	logger     logging.Logger
}

// Option customizes a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a client for cfg. Zero fields take DefaultConfig values.
func NewClient(cfg Config, opts ...Option) *Client {
	d := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = d.URL
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Model == "" {
		cfg.Model = d.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.SnippetLimit <= 0 {
		cfg.SnippetLimit = d.SnippetLimit
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = d.BreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = d.BreakerCooldown
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDefault(c.logger)

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "oracle",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// A run being stopped is not a backend failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("oracle circuit breaker changed state",
				"from", from.String(), "to", to.String())
		},
	})
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// URL returns the configured base URL.
func (c *Client) URL() string {
	return c.cfg.URL
}

// Classify returns the classification of d. It never fails; see Decide.
func (c *Client) Classify(ctx context.Context, d triage.MessageDetail) triage.Classification {
	ctx, span := instrumentation.StartOracleSpan(ctx, c.cfg.Model)
	start := time.Now()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.chat(ctx, d)
	})

	status := instrumentation.StatusSuccess
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		status = instrumentation.StatusRejected
	case err != nil:
		status = instrumentation.StatusError
	}
	c.metrics.RecordOracleRequest(ctx, status, time.Since(start))
	instrumentation.EndSpan(span, err)

	if err != nil {
		c.logger.Warn("oracle error, defaulting to important",
			logging.Message(d.ID), logging.Status(status), logging.Err(err))
		return Decide(false, "")
	}
	answer, _ := result.(string)
	return Decide(true, answer)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

func (c *Client) chat(ctx context.Context, d triage.MessageDetail) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage(d, c.cfg.SnippetLimit)},
		},
		Stream:  false,
		Options: chatOptions{Temperature: 0.1, NumPredict: 10},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("chat request returned %s", resp.Status)
	}

	var out chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	return strings.TrimSpace(out.Message.Content), nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// CheckAvailability reports whether Ollama is reachable and serves the
// configured model. The message explains a negative result.
func (c *Client) CheckAvailability(ctx context.Context) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, availabilityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"/api/tags", nil)
	if err != nil {
		return false, err.Error()
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Sprintf("Cannot connect to Ollama at %s", c.cfg.URL)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return false, fmt.Sprintf("Ollama at %s returned %s", c.cfg.URL, resp.Status)
	}

	var tags tagsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&tags); err != nil {
		return false, fmt.Sprintf("Unexpected response from Ollama: %v", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		if strings.Contains(m.Name, c.cfg.Model) {
			return true, "OK"
		}
		names = append(names, m.Name)
	}
	return false, fmt.Sprintf("Model '%s' not found. Available: [%s]", c.cfg.Model, strings.Join(names, ", "))
}
