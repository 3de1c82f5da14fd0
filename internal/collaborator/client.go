// Package collaborator is the HTTP transport shared by the issuance and
// custody service clients.
package collaborator

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Aidin1998/stablecoin/internal/credential"
	"github.com/Aidin1998/stablecoin/pkg/errors"
)

// IdempotencyHeader carries a per-call key so that retried requests apply once
const IdempotencyHeader = "Idempotency-Key"

// Options configures a Client
type Options struct {
	BaseURL  string
	Audience string
	Timeout  time.Duration
	Retries  int
}

// Client calls one collaborator service authenticated as the core
type Client struct {
	client   *resty.Client
	tokens   credential.TokenSource
	audience string
	logger   *zap.Logger
}

// NewClient creates a collaborator client
func NewClient(opts Options, tokens credential.TokenSource, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && r.StatusCode() >= 500)
		}).
		SetHeader("Accept", "application/json")

	return &Client{client: client, tokens: tokens, audience: opts.Audience, logger: logger}
}

func (c *Client) newRequest(ctx context.Context) (*resty.Request, error) {
	token, err := c.tokens.Token(c.audience)
	if err != nil {
		return nil, errors.ErrCollaboratorFailure.Explain("failed to obtain %s credential", c.audience).Wrap(err)
	}
	return c.client.R().SetContext(ctx).SetAuthToken(token), nil
}

// Post sends body and decodes the response into out when non-nil
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	r, err := c.newRequest(ctx)
	if err != nil {
		return err
	}
	r.SetHeader(IdempotencyHeader, uuid.NewString()).SetBody(body)
	if out != nil {
		r.SetResult(out)
	}
	resp, err := r.Post(path)
	return c.check(path, resp, err)
}

// Get decodes the response of path into out
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	r, err := c.newRequest(ctx)
	if err != nil {
		return err
	}
	resp, err := r.SetResult(out).Get(path)
	return c.check(path, resp, err)
}

func (c *Client) check(path string, resp *resty.Response, err error) error {
	if err != nil {
		c.logger.Warn("Collaborator request failed", zap.String("service", c.audience), zap.String("path", path), zap.Error(err))
		return errors.ErrCollaboratorFailure.Explain("%s request %s failed", c.audience, path).Wrap(err)
	}
	if resp.IsError() {
		c.logger.Warn("Collaborator returned error status",
			zap.String("service", c.audience),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode()),
			zap.ByteString("body", resp.Body()))
		return errors.ErrCollaboratorFailure.Explain("%s request %s returned status %d", c.audience, path, resp.StatusCode())
	}
	return nil
}
