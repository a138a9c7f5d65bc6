// Package refresh performs the refresh-token exchange with the console
// backend, guaranteeing at most one exchange in flight at a time.
package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gradcert/console-client/credstore"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Endpoint is the refresh exchange route on the console backend.
const Endpoint = "/api/auth/token/refresh/"

const singleflightKey = "refresh"

const defaultTimeout = 30 * time.Second

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
	// Refresh is set when the backend rotates refresh tokens.
	Refresh string `json:"refresh"`
}

// Coordinator exchanges the stored refresh token for a new access token.
//
// Concurrent Refresh calls collapse into one network exchange whose boolean
// outcome every caller receives. Many backends invalidate a refresh token on
// first use, so a second concurrent exchange would fail and tear down a
// session that is actually fine.
type Coordinator struct {
	store      credstore.Store
	refreshURL string
	httpClient *http.Client
	group      singleflight.Group
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithHTTPClient sets the HTTP client used for the exchange.
func WithHTTPClient(client *http.Client) CoordinatorOption {
	return func(c *Coordinator) {
		c.httpClient = client
	}
}

// NewCoordinator creates a Coordinator talking to the backend at baseURL.
func NewCoordinator(store credstore.Store, baseURL string, options ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:      store,
		refreshURL: strings.TrimRight(baseURL, "/") + Endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Refresh obtains a new access token, returning true when one was persisted.
// If an exchange is already in flight the call joins it and receives the
// shared outcome instead of starting a second exchange.
//
// A failed exchange clears the credential store: the session is treated as
// unrecoverable rather than retried later. An absent refresh token fails
// fast without clearing anything.
func (c *Coordinator) Refresh(ctx context.Context) bool {
	result, _, shared := c.group.Do(singleflightKey, func() (interface{}, error) {
		return c.exchange(ctx), nil
	})
	if shared {
		log.Debug().Msg("joined in-flight token refresh")
	}
	ok, _ := result.(bool)
	return ok
}

// Reset discards any in-flight exchange state. Called on logout.
func (c *Coordinator) Reset() {
	c.group.Forget(singleflightKey)
}

func (c *Coordinator) exchange(ctx context.Context) bool {
	refreshToken := c.store.RefreshToken()
	if refreshToken == "" {
		log.Debug().Msg("no refresh token available")
		return false
	}

	payload, err := json.Marshal(refreshRequest{Refresh: refreshToken})
	if err != nil {
		c.store.Remove()
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.refreshURL, bytes.NewReader(payload))
	if err != nil {
		log.Warn().Err(err).Msg("failed to build refresh request")
		c.store.Remove()
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("token refresh failed")
		c.store.Remove()
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Warn().Int("status", resp.StatusCode).Msg("token refresh rejected")
		c.store.Remove()
		return false
	}

	var out refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Access == "" {
		log.Warn().Err(err).Msg("token refresh returned an unusable response")
		c.store.Remove()
		return false
	}

	next := refreshToken
	if out.Refresh != "" {
		next = out.Refresh
	}
	c.store.UpdateTokens(out.Access, next)
	log.Debug().Msg("access token refreshed")
	return true
}
