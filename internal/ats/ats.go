package ats

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spigell/atsctl/internal/cache"
	"github.com/spigell/atsctl/internal/inflight"
)

const (
	apiURL    = "http://localhost:8000"
	userAgent = "spigell/atsctl"

	// DefaultTimeout applies to every call except ingestion.
	DefaultTimeout = 30 * time.Second
	// IngestTimeout leaves room for slow OCR and LLM stages on the server.
	IngestTimeout = 120 * time.Second
	// DefaultCacheTTL is how long a cached read stays valid when nothing invalidates it.
	DefaultCacheTTL = time.Minute

	searchKey = "search"
)

type Client struct {
	token    string
	logger   *zap.Logger
	validate *validator.Validate

	searches  *inflight.Tracker
	bootstrap *inflight.Guard

	HTTPClient    *http.Client
	UserAgent     string
	APIURL        string
	Timeout       time.Duration
	IngestTimeout time.Duration
	// Cache is optional. Reads of listings, documents and job offers go through it.
	Cache    cache.Store
	CacheTTL time.Duration
}

// New returns a client for the API at APIURL. Timeouts are applied per call
// through the request context, so HTTPClient carries none of its own.
func New(logger *zap.Logger, token string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:         token,
		logger:        logger,
		validate:      newValidator(),
		searches:      inflight.NewTracker(),
		bootstrap:     inflight.NewGuard(),
		HTTPClient:    &http.Client{},
		UserAgent:     userAgent,
		APIURL:        apiURL,
		Timeout:       DefaultTimeout,
		IngestTimeout: IngestTimeout,
		CacheTTL:      DefaultCacheTTL,
	}
}

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c *Client) ingestTimeout() time.Duration {
	if c.IngestTimeout <= 0 {
		return IngestTimeout
	}
	// Never shorter than an ordinary call.
	return max(c.IngestTimeout, c.timeout())
}
