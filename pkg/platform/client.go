// Package platform is the client for the workflow platform the
// migration pushes into.
package platform

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/flowport/flowport/pkg/migrate"
	"github.com/flowport/flowport/pkg/target"
	"github.com/flowport/flowport/pkg/telemetry"
)

// ClientConfig holds the workflow platform connection settings.
type ClientConfig struct {
	// BaseURL is the platform API root.
	BaseURL string

	// Token is the bearer token used for authentication.
	Token string

	// Timeout bounds a single HTTP request.
	Timeout time.Duration
}

// Client pushes workflows to the platform. Push is idempotent: an
// existing workflow with the same external ref is updated in place.
type Client struct {
	rest *resty.Client
	log  *telemetry.Logger
}

// NewClient builds a platform client.
func NewClient(cfg ClientConfig, log *telemetry.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "flowport")
	if cfg.Token != "" {
		rest.SetAuthToken(cfg.Token)
	}
	return &Client{rest: rest, log: log.NewComponentLogger("target")}
}

// Push creates or updates the workflow and returns its platform ID.
func (c *Client) Push(ctx context.Context, result *migrate.TransformResult) (string, error) {
	w := result.Workflow
	if w == nil {
		return "", migrate.NewPermanentError("transform result has no workflow", nil).
			WithCode(migrate.ErrCodeValidation)
	}
	if err := w.Validate(); err != nil {
		return "", migrate.NewPermanentError("refusing to push invalid workflow", err).
			WithCode(migrate.ErrCodeValidation)
	}

	existing, err := c.findByExternalRef(ctx, w.ExternalRef)
	if err != nil {
		return "", err
	}

	var created target.Workflow
	if existing != "" {
		resp, reqErr := c.rest.R().SetContext(ctx).
			SetBody(w).
			SetResult(&created).
			Put("/workflows/" + existing)
		if cerr := c.classify(resp, reqErr, "update"); cerr != nil {
			return "", cerr
		}
		c.log.WithEntity(w.ExternalRef).Debugf("updated workflow %s", existing)
	} else {
		resp, reqErr := c.rest.R().SetContext(ctx).
			SetBody(w).
			SetResult(&created).
			Post("/workflows")
		if cerr := c.classify(resp, reqErr, "create"); cerr != nil {
			return "", cerr
		}
		c.log.WithEntity(w.ExternalRef).Debugf("created workflow %s", created.ID)
	}

	if created.ID == "" {
		created.ID = existing
	}
	if created.ID == "" {
		return "", migrate.NewPermanentError("platform returned no workflow ID", nil).
			WithCode(migrate.ErrCodeTargetFailed)
	}
	return created.ID, nil
}

// findByExternalRef looks up an existing workflow by external ref. An
// empty return means none exists.
func (c *Client) findByExternalRef(ctx context.Context, ref string) (string, error) {
	var result struct {
		Workflows []target.Workflow `json:"workflows"`
	}
	resp, err := c.rest.R().SetContext(ctx).
		SetResult(&result).
		SetQueryParam("external_ref", ref).
		SetQueryParam("limit", "1").
		Get("/workflows")
	if cerr := c.classify(resp, err, "lookup"); cerr != nil {
		return "", cerr
	}
	if len(result.Workflows) == 0 {
		return "", nil
	}
	return result.Workflows[0].ID, nil
}

func (c *Client) classify(resp *resty.Response, err error, op string) error {
	if err != nil {
		return migrate.NewTransientError(
			fmt.Sprintf("platform %s request failed", op), err).
			WithOperation(op).WithCode(migrate.ErrCodeTargetFailed)
	}
	if resp == nil || !resp.IsError() {
		return nil
	}

	status := resp.StatusCode()
	body := resp.String()
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	msg := fmt.Sprintf("platform %s returned %d: %s", op, status, body)

	switch {
	case status == http.StatusTooManyRequests:
		e := migrate.NewThrottledError(msg, nil).
			WithOperation(op).WithCode(migrate.ErrCodeRateLimited)
		if raw := resp.Header().Get("Retry-After"); raw != "" {
			if secs, perr := strconv.Atoi(raw); perr == nil && secs > 0 {
				e = e.WithRetryAfter(time.Duration(secs) * time.Second)
			}
		}
		return e
	case status == http.StatusConflict:
		return migrate.NewConflictError(msg, nil).
			WithOperation(op).WithCode(migrate.ErrCodeTargetFailed)
	case status >= 500:
		return migrate.NewTransientError(msg, nil).
			WithOperation(op).WithCode(migrate.ErrCodeTargetFailed)
	default:
		return migrate.NewPermanentError(msg, nil).
			WithOperation(op).WithCode(migrate.ErrCodeTargetFailed)
	}
}
