// Package vendors implements the source side of the migration pipeline:
// REST clients for each supported SaaS vendor, plus a registry the CLI
// uses to list and construct them.
package vendors

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/flowport/flowport/pkg/migrate"
	"github.com/flowport/flowport/pkg/telemetry"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultRetryCount = 0 // retry is owned by the orchestrator, not the transport
)

// ClientConfig holds the settings shared by every vendor client.
type ClientConfig struct {
	// BaseURL is the vendor API root, e.g. https://app.asana.com/api/1.0.
	BaseURL string

	// Token is the bearer token used for authentication.
	Token string

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// UserAgent overrides the default User-Agent header.
	UserAgent string
}

// NewRestClient builds a resty client with auth, timeout, and JSON
// defaults applied. Vendor packages layer their own paths on top.
func NewRestClient(cfg ClientConfig, log *telemetry.Logger) *resty.Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "flowport"
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(defaultRetryCount).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", ua)

	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	if log != nil {
		client.SetLogger(&restyLogger{zl: log.Zerolog()})
	}
	return client
}

// ClassifyResponse maps an HTTP response to a classified migration error.
// A nil return means the response is a success.
func ClassifyResponse(vendor string, resp *resty.Response, err error) error {
	if err != nil {
		return migrate.NewTransientError(
			fmt.Sprintf("%s request failed", vendor), err).
			WithVendor(vendor).WithCode(migrate.ErrCodeVendorFailed)
	}
	if resp == nil || !resp.IsError() {
		return nil
	}

	status := resp.StatusCode()
	msg := fmt.Sprintf("%s returned %d: %s", vendor, status, snippet(resp.String()))

	switch {
	case status == http.StatusTooManyRequests:
		e := migrate.NewThrottledError(msg, nil).
			WithVendor(vendor).WithCode(migrate.ErrCodeRateLimited)
		if d := retryAfter(resp); d > 0 {
			e = e.WithRetryAfter(d)
		}
		return e
	case status == http.StatusConflict:
		return migrate.NewConflictError(msg, nil).
			WithVendor(vendor).WithCode(migrate.ErrCodeVendorFailed)
	case status >= 500:
		return migrate.NewTransientError(msg, nil).
			WithVendor(vendor).WithCode(migrate.ErrCodeVendorFailed)
	default:
		return migrate.NewPermanentError(msg, nil).
			WithVendor(vendor).WithCode(migrate.ErrCodeVendorFailed)
	}
}

// retryAfter parses the Retry-After header, accepting both delay-seconds
// and HTTP-date forms.
func retryAfter(resp *resty.Response) time.Duration {
	raw := resp.Header().Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(raw); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func snippet(body string) string {
	const max = 200
	if len(body) > max {
		return body[:max] + "..."
	}
	return body
}

// restyLogger adapts zerolog to resty's logger interface.
type restyLogger struct {
	zl zerolog.Logger
}

func (l *restyLogger) Errorf(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}

func (l *restyLogger) Warnf(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

func (l *restyLogger) Debugf(format string, v ...interface{}) {
	l.zl.Debug().Msgf(format, v...)
}
