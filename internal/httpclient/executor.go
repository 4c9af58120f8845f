package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/metaswap-labs/swap-aggregator/internal/metrics"
	"github.com/metaswap-labs/swap-aggregator/internal/rate"
	"github.com/metaswap-labs/swap-aggregator/pkg/model"
)

// Backoff returns the retry sleep duration for the given attempt number.
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 100 * time.Millisecond
	case 1:
		return 250 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// Executor handles rate-limited, retrying HTTP execution with JSON decoding.
// Upstream failures surface as *model.RequestError carrying the upstream
// status code and payload so orchestrators can route on them.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	retryMax     int
	venueTag     string
	errorHandler func(status int, body []byte) error
}

// New creates an Executor. errorHandler is called on 4xx responses to produce
// a venue-specific error; if nil, the raw status and body are propagated.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	retryMax int,
	venueTag string,
	errorHandler func(status int, body []byte) error,
) *Executor {
	return &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		retryMax:     retryMax,
		venueTag:     venueTag,
		errorHandler: errorHandler,
	}
}

// DoJSON executes req with rate limiting and bounded retries on transport and
// 5xx failures, then JSON-decodes the response into out. rateLimitKey scopes
// the rate limiter per upstream venue.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, rateLimitKey string, out any) error {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= e.retryMax; attempt++ {
		attemptReq, err := cloneRequest(ctx, req)
		if err != nil {
			return model.NewRequestError(http.StatusInternalServerError,
				"%s request body not replayable: %v", e.venueTag, err)
		}

		start := time.Now()
		resp, err := e.http.Do(attemptReq)
		if err != nil {
			lastErr = err
			e.logger.Warn(e.venueTag+".http_failed",
				zap.String("url", req.URL.String()),
				zap.Error(err),
				zap.Int("attempt", attempt))
			metrics.UpstreamRequestsTotal.WithLabelValues(e.venueTag, "transport_error").Inc()
			time.Sleep(Backoff(attempt))
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		elapsed := time.Since(start)

		metrics.UpstreamRequestDuration.WithLabelValues(e.venueTag).Observe(elapsed.Seconds())

		if resp.StatusCode >= 500 {
			e.logger.Warn(e.venueTag+".server_error",
				zap.Int("status", resp.StatusCode),
				zap.String("url", req.URL.String()),
				zap.Duration("latency", elapsed))
			metrics.UpstreamRequestsTotal.WithLabelValues(e.venueTag, "server_error").Inc()
			lastErr = model.NewRequestError(resp.StatusCode, "%s", string(body))
			time.Sleep(Backoff(attempt))
			continue
		}

		if resp.StatusCode >= 400 {
			metrics.UpstreamRequestsTotal.WithLabelValues(e.venueTag, "client_error").Inc()
			if e.errorHandler != nil {
				return e.errorHandler(resp.StatusCode, body)
			}
			return model.NewRequestError(resp.StatusCode, "%s", string(body))
		}

		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				e.logger.Warn(e.venueTag+".decode_failed",
					zap.Error(err),
					zap.String("url", req.URL.String()),
					zap.String("body", string(body)))
				metrics.UpstreamRequestsTotal.WithLabelValues(e.venueTag, "decode_error").Inc()
				return model.NewRequestError(http.StatusInternalServerError, "%s decode failed: %v", e.venueTag, err)
			}
		}

		e.logger.Debug(e.venueTag+".http_success",
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed))
		metrics.UpstreamRequestsTotal.WithLabelValues(e.venueTag, "ok").Inc()

		return nil
	}

	if reqErr, ok := lastErr.(*model.RequestError); ok {
		return reqErr
	}
	return model.NewRequestError(http.StatusInternalServerError,
		"%s request failed after %d attempts: %v", e.venueTag, e.retryMax+1, lastErr)
}

// cloneRequest produces a fresh request per attempt. The body reader is
// consumed by each send, so retries rebuild it from GetBody.
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	clone := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}
