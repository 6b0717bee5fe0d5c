package gmail

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/inboxtriage/internal/instrumentation"
	"github.com/teemow/inboxtriage/internal/logging"
)

const me = "me"

// Config tunes request shaping. Zero fields take the DefaultConfig values.
type Config struct {
	// BatchSize is the number of ids fetched per FetchDetails round.
	BatchSize int
	// FetchConcurrency bounds parallel messages.get calls within a round.
	FetchConcurrency int
	// RequestsPerSecond paces all calls. Zero or less disables pacing.
	RequestsPerSecond float64
	// PageSize is maxResults for messages.list.
	PageSize int64
	// RequestTimeout applies to every single API call.
	RequestTimeout time.Duration
	// MaxRetries bounds attempts per listing page.
	MaxRetries uint
	// RetryInitialInterval is the first backoff delay.
	RetryInitialInterval time.Duration
}

// DefaultConfig matches Gmail's documented quotas with some headroom.
func DefaultConfig() Config {
	return Config{
		BatchSize:            25,
		FetchConcurrency:     10,
		RequestsPerSecond:    40,
		PageSize:             500,
		RequestTimeout:       30 * time.Second,
		MaxRetries:           5,
		RetryInitialInterval: 500 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = d.FetchConcurrency
	}
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryInitialInterval <= 0 {
		c.RetryInitialInterval = d.RetryInitialInterval
	}
	return c
}

// Client is the Gmail gateway. It is safe for concurrent use.
type Client struct {
	svc     *gmail.UsersService
	cfg     Config
	limiter *rate.Limiter
	metrics *instrumentation.Metrics
	logger  logging.Logger

	mu       sync.RWMutex
	labelIDs map[string]string
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	metrics    *instrumentation.Metrics
	logger     logging.Logger
	apiOptions []option.ClientOption
}

func WithMetrics(m *instrumentation.Metrics) Option {
	return func(o *clientOptions) { o.metrics = m }
}

func WithLogger(l logging.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithClientOptions passes extra options to the generated Gmail service,
// for example option.WithEndpoint.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *clientOptions) { o.apiOptions = append(o.apiOptions, opts...) }
}

// NewClient creates a gateway that sends requests through httpClient, which
// must already carry OAuth credentials.
func NewClient(ctx context.Context, httpClient *http.Client, cfg Config, opts ...Option) (*Client, error) {
	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	apiOpts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, o.apiOptions...)
	svc, err := gmail.NewService(ctx, apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	cfg = cfg.withDefaults()
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		svc:      svc.Users,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, cfg.FetchConcurrency),
		metrics:  o.metrics,
		logger:   logging.OrDefault(o.logger),
		labelIDs: make(map[string]string),
	}, nil
}

// call runs one API request under the rate limiter, the per-request timeout,
// a client span and the google_api_* metrics.
func (c *Client) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, operation)
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	err := fn(reqCtx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, operation, status, time.Since(start))
	instrumentation.EndSpan(span, err)
	return err
}

// HeaderValue returns the first header of m named header, compared
// case-insensitively.
func HeaderValue(m *gmail.Message, header string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, header) {
			return h.Value
		}
	}
	return ""
}
