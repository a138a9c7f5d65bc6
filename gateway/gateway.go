// Package gateway issues authenticated calls to the console backend:
// obtain a usable access token, send with the bearer attached, and retry
// exactly once behind a successful refresh on an authentication failure.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gradcert/console-client/broadcast"
	"github.com/gradcert/console-client/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultTimeout = 30 * time.Second

// Gateway wraps outbound API calls with the token pipeline.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	tokens     *token.Manager
	logout     *broadcast.LogoutBroadcast
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient sets the HTTP client used for all calls.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = client
	}
}

// New creates a Gateway for the backend at baseURL. The logout broadcast is
// fired whenever a call discovers the session is unrecoverable.
func New(baseURL string, tokens *token.Manager, logout *broadcast.LogoutBroadcast, options ...Option) (*Gateway, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[gateway.New] baseURL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errors.Wrap(err, "[gateway.New] invalid baseURL")
	}
	if tokens == nil {
		return nil, errors.New("[gateway.New] token manager is required")
	}
	if logout == nil {
		return nil, errors.New("[gateway.New] logout broadcast is required")
	}
	g := &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		tokens:     tokens,
		logout:     logout,
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// Response is a successful (2xx) backend response.
type Response struct {
	Status int
	Body   []byte
}

// Decode unmarshals the JSON response body into v.
func (r *Response) Decode(v interface{}) error {
	if len(r.Body) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(r.Body, v), "[Response.Decode]")
}

type request struct {
	method      string
	endpoint    string
	query       url.Values
	body        []byte
	contentType string
}

// RequestOption configures a single call.
type RequestOption func(*request) error

// WithJSONBody attaches v, JSON-encoded.
func WithJSONBody(v interface{}) RequestOption {
	return func(r *request) error {
		data, err := json.Marshal(v)
		if err != nil {
			return errors.Wrap(err, "[WithJSONBody] marshal")
		}
		r.body = data
		r.contentType = "application/json"
		return nil
	}
}

// WithForm attaches form as a multipart payload.
func WithForm(form *Form) RequestOption {
	return func(r *request) error {
		body, contentType, err := form.encode()
		if err != nil {
			return err
		}
		r.body = body
		r.contentType = contentType
		return nil
	}
}

// WithQuery adds a query parameter.
func WithQuery(key, value string) RequestOption {
	return func(r *request) error {
		if r.query == nil {
			r.query = url.Values{}
		}
		r.query.Set(key, value)
		return nil
	}
}

// Do issues one logical call against endpoint.
//
// Authenticated endpoints go through ensure-valid-token first: an
// unrecoverable session fires the logout broadcast and fails with
// ErrAuthRequired before any network traffic; a refresh failure fails with
// ErrSessionExpired. A 401 response triggers at most one refresh-and-retry
// cycle, whose outcome is final. Other non-2xx responses become *APIError,
// transport failures become ErrNetwork.
func (g *Gateway) Do(ctx context.Context, method, endpoint string, options ...RequestOption) (*Response, error) {
	req := &request{method: method, endpoint: endpoint}
	for _, opt := range options {
		if err := opt(req); err != nil {
			return nil, err
		}
	}

	public := IsPublicEndpoint(endpoint)
	var bearer string
	if !public {
		access, err := g.tokens.EnsureValidToken(ctx)
		switch {
		case errors.Is(err, token.ErrNoSession):
			g.forceLogout()
			return nil, errors.Wrap(ErrAuthRequired, "[Gateway.Do] no usable session")
		case errors.Is(err, token.ErrRefreshFailed):
			g.forceLogout()
			return nil, errors.Wrap(ErrSessionExpired, "[Gateway.Do] token refresh failed")
		case err != nil:
			return nil, errors.Wrap(err, "[Gateway.Do] ensure valid token")
		}
		bearer = access
	}

	requestID := uuid.NewString()
	resp, err := g.send(ctx, req, bearer, requestID)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !public {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if !g.tokens.Refresh(ctx) {
			g.forceLogout()
			return nil, errors.Wrap(ErrSessionExpired, "[Gateway.Do] refresh after 401 failed")
		}
		log.Debug().Str("request_id", requestID).Str("endpoint", req.endpoint).Msg("retrying request with refreshed token")

		resp, err = g.send(ctx, req, g.tokens.AccessToken(), requestID)
		if err != nil {
			return nil, err
		}
		// The retry outcome is final. A second 401 is terminal: the
		// session is torn down instead of looping on refresh attempts.
		if resp.StatusCode == http.StatusUnauthorized {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			g.forceLogout()
			return nil, errors.Wrap(ErrSessionExpired, "[Gateway.Do] request rejected after retry")
		}
	}

	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, errors.Wrap(ErrNetwork, readErr.Error())
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return &Response{Status: resp.StatusCode, Body: body}, nil
	}

	apiErr := newAPIError(resp.StatusCode, resp.Header.Get("Content-Type"), body)
	log.Debug().
		Str("request_id", requestID).
		Str("endpoint", req.endpoint).
		Int("status", resp.StatusCode).
		Msg("request failed")
	return nil, apiErr
}

func (g *Gateway) send(ctx context.Context, r *request, bearer, requestID string) (*http.Response, error) {
	target := g.baseURL + r.endpoint
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var body io.Reader
	if len(r.body) > 0 {
		body = bytes.NewReader(r.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, "[Gateway.send] build request")
	}
	if r.contentType != "" {
		httpReq.Header.Set("Content-Type", r.contentType)
	}
	httpReq.Header.Set("X-Request-ID", requestID)
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		log.Debug().Err(err).Str("request_id", requestID).Str("endpoint", r.endpoint).Msg("transport failure")
		return nil, errors.Wrap(ErrNetwork, err.Error())
	}
	return resp, nil
}

func (g *Gateway) forceLogout() {
	g.tokens.SecureLogout()
	g.logout.Trigger()
}
