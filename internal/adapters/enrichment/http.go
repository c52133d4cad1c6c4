package enrichment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"tripmind/internal/adapters/ratelimit"
	"tripmind/internal/adapters/retry"
	"tripmind/pkg/errors"
)

const maxErrorBody = 512

// ClientConfig is shared by the enrichment API clients
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Limiter *ratelimit.Limiter
	Retry   *retry.Middleware
}

// apiClient runs rate limited, retried JSON requests against one API
type apiClient struct {
	service string
	http    *http.Client
	limiter *ratelimit.Limiter
	retry   *retry.Middleware
}

func newAPIClient(service string, cfg ClientConfig) apiClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	r := cfg.Retry
	if r == nil {
		r = retry.New(retry.DefaultConfig())
	}
	return apiClient{
		service: service,
		http:    &http.Client{Timeout: timeout},
		limiter: cfg.Limiter,
		retry:   r,
	}
}

// do sends the request built by newReq and decodes a 2xx JSON body into out.
// newReq is called once per attempt so bodies can be replayed.
func (c apiClient) do(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error), out any) error {
	return c.retry.Do(ctx, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		req, err := newReq(ctx)
		if err != nil {
			return errors.Wrapf(err, "create %s request", c.service)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return errors.Wrapf(err, "%s request failed", c.service)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &retry.StatusError{Service: c.service, Code: resp.StatusCode, Body: string(body)}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrapf(err, "decode %s response", c.service)
		}
		return nil
	})
}
