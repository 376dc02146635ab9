package coupang

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/nyanglife/catshop/pkg/errors"
	"github.com/nyanglife/catshop/pkg/logger"
	"github.com/nyanglife/catshop/pkg/resilience"
	"github.com/nyanglife/catshop/pkg/tracing"
)

const (
	maxResponseBytes = 10 << 20
	maxDetailBytes   = 512
)

// Client-facing error messages.
const (
	MsgKeywordRequired = "Keyword is required"
	MsgConfiguration   = "Server configuration error"
	MsgFetchFailed     = "Failed to fetch data from Coupang API"
	MsgTimeout         = "Coupang API request timed out"
	MsgUnavailable     = "Coupang API temporarily unavailable"
)

// Source returns the raw JSON search result for a keyword. Implementations
// must return *apperrors.AppError values so handlers can map them to a status.
type Source interface {
	Search(ctx context.Context, keyword string) (json.RawMessage, error)
}

// ClientConfig configures a live Client.
type ClientConfig struct {
	BaseURL     string
	Credentials Credentials
	Timeout     time.Duration
	HTTPClient  *http.Client
	Breaker     *resilience.CircuitBreaker
	// Observe, if set, is called after every outbound call with the upstream
	// status ("timeout" or "error" for transport failures) and its latency.
	Observe func(status string, latency time.Duration)
}

// Client signs and sends searches to the live upstream.
type Client struct {
	baseURL string
	creds   Credentials
	timeout time.Duration
	http    *http.Client
	breaker *resilience.CircuitBreaker
	observe func(string, time.Duration)
	now     func() time.Time
	logger  *slog.Logger
}

// NewClient creates a Client. A zero Timeout defaults to 10s.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		creds:   cfg.Credentials,
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
		breaker: cfg.Breaker,
		observe: cfg.Observe,
		now:     time.Now,
		logger:  slog.Default().With("component", "coupang-client"),
	}
}

// Search validates input and credentials before any signing or network work,
// then performs one signed call. No retries are attempted.
func (c *Client) Search(ctx context.Context, keyword string) (json.RawMessage, error) {
	if keyword == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, MsgKeywordRequired)
	}
	if !c.creds.Valid() {
		logger.FromContext(ctx).Error("coupang credentials are not configured")
		return nil, apperrors.New(apperrors.ErrConfiguration, http.StatusInternalServerError, MsgConfiguration)
	}

	if c.breaker == nil {
		return c.do(ctx, keyword)
	}

	var body json.RawMessage
	err := c.breaker.Execute(func() error {
		var err error
		body, err = c.do(ctx, keyword)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, apperrors.New(apperrors.ErrCircuitOpen, http.StatusServiceUnavailable, MsgUnavailable)
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, keyword string) (json.RawMessage, error) {
	log := logger.FromContext(ctx)
	ctx, span := tracing.StartChild(ctx, "coupang.search")
	defer span.End()
	env := Sign(c.creds, c.now())

	payload, err := json.Marshal(SearchRequest{Keyword: keyword, Limit: SearchLimit})
	if err != nil {
		return nil, c.transportError(ctx, "encoding request", err)
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, env.Method, c.baseURL+env.Path, bytes.NewReader(payload))
	if err != nil {
		return nil, c.transportError(ctx, "building request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", env.Authorization)
	req.Header.Set(DateHeader, env.Timestamp)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if parent.Err() != nil {
			return nil, c.callerGone(parent, keyword, start)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			c.record("timeout", start)
			log.Warn("coupang request timed out", "keyword", keyword, "timeout", c.timeout)
			return nil, apperrors.New(apperrors.ErrTimeout, http.StatusGatewayTimeout, MsgTimeout)
		}
		c.record("error", start)
		return nil, c.transportError(ctx, "sending request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil && parent.Err() != nil {
		return nil, c.callerGone(parent, keyword, start)
	}
	c.record(fmt.Sprintf("%d", resp.StatusCode), start)
	span.SetAttr("status", resp.StatusCode)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.New(apperrors.ErrTimeout, http.StatusGatewayTimeout, MsgTimeout)
		}
		return nil, c.transportError(ctx, "reading response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error("coupang api error",
			"status", resp.StatusCode,
			"keyword", keyword,
			"body", string(body),
		)
		return nil, apperrors.Newf(apperrors.ErrUpstream, resp.StatusCode,
			"Coupang API request failed with status: %d", resp.StatusCode,
		).WithDetail(excerpt(body))
	}

	if !json.Valid(body) {
		return nil, c.transportError(ctx, "decoding response", errors.New("response body is not valid JSON"))
	}

	log.Debug("coupang search completed",
		"keyword", keyword,
		"status", resp.StatusCode,
		"bytes", len(body),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return body, nil
}

// callerGone reports a call abandoned because the caller's context ended,
// as opposed to the upstream missing the client's own deadline.
func (c *Client) callerGone(parent context.Context, keyword string, start time.Time) error {
	c.record("canceled", start)
	logger.FromContext(parent).Info("coupang request abandoned by caller",
		"keyword", keyword,
		"cause", parent.Err(),
	)
	return apperrors.Canceled(parent.Err())
}

func (c *Client) transportError(ctx context.Context, stage string, err error) error {
	logger.FromContext(ctx).Error("error fetching from coupang api", "stage", stage, "error", err)
	return apperrors.New(apperrors.ErrTransport, http.StatusInternalServerError, MsgFetchFailed)
}

func (c *Client) record(status string, start time.Time) {
	if c.observe != nil {
		c.observe(status, time.Since(start))
	}
}

// TripsBreaker reports whether err indicates the upstream itself is
// unhealthy. Client-side rejections (4xx) and abandoned calls do not count.
// Use it as the breaker's IsFailure.
func TripsBreaker(err error) bool {
	if err == nil || CallerGone(err) {
		return false
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && errors.Is(err, apperrors.ErrUpstream) {
		return appErr.StatusCode >= 500
	}
	return true
}

// CallerGone reports whether err means the caller stopped waiting. Use it as
// the breaker's Ignore so an abandoned half-open trial frees its slot.
func CallerGone(err error) bool {
	return errors.Is(err, apperrors.ErrCanceled)
}

// excerpt trims an upstream body for inclusion in an error response.
func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= maxDetailBytes {
		return s
	}
	s = s[:maxDetailBytes]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s + "..."
}
