package sunberry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sunbridge/sunbridge/pkg/log"
	"github.com/sunbridge/sunbridge/pkg/types"
)

const (
	sessionTTL        = time.Hour
	sessionPath       = "/battery_management/settings"
	sessionCookieName = "session"
)

// session owns the device's authentication cookie. The cookie is acquired
// lazily, trusted for an hour, and dropped wholesale on any
// authentication-class failure.
type session struct {
	client *http.Client

	mu         sync.Mutex
	token      string
	acquiredAt time.Time
}

func newSession(client *http.Client) *session {
	return &session{client: client}
}

// Token returns a session cookie for the given base URL, refreshing when the
// cached one is older than the TTL. Refreshes are serialized: concurrent
// callers block on the one in-flight acquisition instead of racing the
// device. Acquisition is never retried here; retry is the transport's job,
// layered on top.
func (s *session) Token(ctx context.Context, baseURL string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Since(s.acquiredAt) < sessionTTL {
		return s.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+sessionPath, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrAuthUnavailable, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrAuthUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusFound {
		return "", fmt.Errorf("%w: status %d from %s", types.ErrAuthUnavailable, resp.StatusCode, sessionPath)
	}

	var token string
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName {
			token = c.Value
			break
		}
	}
	if token == "" {
		return "", fmt.Errorf("%w: no %s cookie in response", types.ErrAuthUnavailable, sessionCookieName)
	}

	s.token = token
	s.acquiredAt = time.Now()
	log.Ctx(ctx).DebugContext(ctx, "acquired new session cookie")
	return token, nil
}

// Invalidate clears the cookie and its timestamp unconditionally. Safe to
// call repeatedly.
func (s *session) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.acquiredAt = time.Time{}
	s.mu.Unlock()
}
