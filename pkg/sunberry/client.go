package sunberry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sunbridge/sunbridge/pkg/common"
	"github.com/sunbridge/sunbridge/pkg/log"
	"github.com/sunbridge/sunbridge/pkg/types"
)

const (
	requestTimeout  = 10 * time.Second
	requestAttempts = 3
)

// retryBackoffStep is a var so tests do not sleep through real backoff.
var retryBackoffStep = time.Second

// Client talks to one Sunberry inverter. It is constructed once and handed
// to both the poller and the command dispatcher so the single session it
// owns keeps every control request authorized.
type Client struct {
	client  *http.Client
	session *session

	mu      sync.Mutex
	baseURL string
}

// NewClient builds a client for the given host. An invalid address is the
// one fatal setup error: the device must not start against it.
func NewClient(address string) (*Client, error) {
	if err := types.ValidateAddress(address); err != nil {
		return nil, err
	}
	hc := common.HTTPClient(requestTimeout)
	return &Client{
		client:  hc,
		session: newSession(hc),
		baseURL: "http://" + address,
	}, nil
}

// SetAddress installs a new host without a restart. The old session is
// useless against a different host and is dropped.
func (c *Client) SetAddress(address string) error {
	if err := types.ValidateAddress(address); err != nil {
		return err
	}
	c.mu.Lock()
	c.baseURL = "http://" + address
	c.mu.Unlock()
	c.session.Invalidate()
	return nil
}

func (c *Client) base() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseURL
}

// do performs one exchange with the device. A response is accepted only when
// its status is exactly 200 or 302: the device answers a successful control
// post with a redirect to its confirmation page, so the redirect itself is
// the success signal and is never followed. Failed attempts are retried with
// linear backoff; a 5xx means the device considers our auth state broken and
// invalidates the session before the next attempt. After the final attempt
// the error wraps ErrTransportFailure so callers can treat it as a skipped
// cycle instead of a crash.
func (c *Client) do(ctx context.Context, method, endpoint string, form url.Values) (string, error) {
	base := c.base()
	u := base + endpoint

	var body string
	policy := common.RetryPolicy{
		Attempts: requestAttempts,
		Delay:    common.LinearBackoff(retryBackoffStep),
	}
	err := policy.Run(ctx, func(ctx context.Context, attempt int) error {
		b, err := c.attempt(ctx, method, base, u, form)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "device request failed",
				slog.String("method", method),
				slog.String("url", u),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			return err
		}
		log.Ctx(ctx).DebugContext(ctx, "device request ok",
			slog.String("method", method),
			slog.String("url", u),
			slog.Int("attempt", attempt),
			slog.Int("bodyLength", len(b)),
		)
		body = b
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s %s: %w", types.ErrTransportFailure, method, endpoint, err)
	}
	return body, nil
}

func (c *Client) attempt(ctx context.Context, method, base, u string, form url.Values) (string, error) {
	token, err := c.session.Token(ctx, base)
	if err != nil {
		return "", err
	}

	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return "", err
	}
	req.Header.Set("Cookie", sessionCookieName+"="+token)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusFound {
		if resp.StatusCode >= http.StatusInternalServerError {
			// the device's auth state, not just the link, is assumed broken
			c.session.Invalidate()
		}
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	return string(b), nil
}
