package token

import (
	"context"

	"github.com/gradcert/console-client/credstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Sentinel outcomes of EnsureValidToken.
var (
	// ErrNoSession means no stored token or a malformed one: unrecoverable
	// without a fresh login, so no refresh is attempted.
	ErrNoSession = errors.New("no usable session")
	// ErrRefreshFailed means a refresh was required and did not succeed.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// Refresher exchanges the stored refresh token for a new access token.
// Implementations must coalesce concurrent calls into a single exchange.
type Refresher interface {
	Refresh(ctx context.Context) bool
	Reset()
}

// Manager ties the credential store, validator, and refresher together and
// exposes the "give me a usable access token" operation the gateway and
// session controller build on.
type Manager struct {
	store     credstore.Store
	validator *Validator
	refresher Refresher
}

// NewManager creates a Manager. All dependencies are required.
func NewManager(store credstore.Store, validator *Validator, refresher Refresher) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[NewManager] store is required")
	}
	if validator == nil {
		return nil, errors.New("[NewManager] validator is required")
	}
	if refresher == nil {
		return nil, errors.New("[NewManager] refresher is required")
	}
	return &Manager{store: store, validator: validator, refresher: refresher}, nil
}

// Validate classifies the stored access token without side effects.
func (m *Manager) Validate() ValidationResult {
	return m.validator.Validate()
}

// AccessToken returns the stored access token, or "".
func (m *Manager) AccessToken() string {
	return m.store.AccessToken()
}

// Refresh exchanges the refresh token for a new access token, joining any
// exchange already in flight.
func (m *Manager) Refresh(ctx context.Context) bool {
	return m.refresher.Refresh(ctx)
}

// EnsureValidToken returns an access token fit for an authenticated call,
// refreshing first when the stored one is expired or near expiry. Concurrent
// callers share a single refresh exchange.
func (m *Manager) EnsureValidToken(ctx context.Context) (string, error) {
	validation := m.validator.Validate()

	if !validation.Valid && !validation.NeedsRefresh {
		return "", ErrNoSession
	}

	if validation.NeedsRefresh {
		if !m.refresher.Refresh(ctx) {
			return "", ErrRefreshFailed
		}
		access := m.store.AccessToken()
		if access == "" {
			return "", ErrRefreshFailed
		}
		return access, nil
	}

	return m.store.AccessToken(), nil
}

// SecureLogout clears the stored session and any in-flight refresh state.
func (m *Manager) SecureLogout() {
	m.store.Remove()
	m.refresher.Reset()
	log.Debug().Msg("secure logout performed")
}
