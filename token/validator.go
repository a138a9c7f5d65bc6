// Package token classifies and maintains the stored access token: advisory
// expiry validation, the ensure-valid-token pipeline, and secure logout.
//
// Validation is advisory only. The client never verifies signatures; it
// reads the expiry claim to decide whether a refresh is worthwhile before
// spending a round trip. The backend remains the authority on every request.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gradcert/console-client/credstore"
	"github.com/rs/zerolog/log"
)

// RefreshThreshold is how close to expiry a token may get before a refresh
// is requested ahead of use.
const RefreshThreshold = 5 * time.Minute

// ValidationResult classifies the stored access token.
//
// Valid=false, NeedsRefresh=false means unrecoverable: no token, or one
// whose expiry cannot be read. Valid=false, NeedsRefresh=true is an expired
// token with a refresh worth attempting. Valid=true, NeedsRefresh=true is a
// token inside the refresh threshold that is still usable.
type ValidationResult struct {
	Valid           bool
	NeedsRefresh    bool
	TimeUntilExpiry time.Duration
}

// Validator inspects the stored access token's expiry claim.
type Validator struct {
	store   credstore.Store
	nowFunc func() time.Time
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(nowFunc func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if nowFunc != nil {
			v.nowFunc = nowFunc
		}
	}
}

// NewValidator creates a Validator reading tokens from store.
func NewValidator(store credstore.Store, options ...ValidatorOption) *Validator {
	v := &Validator{store: store, nowFunc: time.Now}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// Validate classifies the stored access token. It never touches the network
// and has no side effects.
func (v *Validator) Validate() ValidationResult {
	access := v.store.AccessToken()
	if access == "" {
		return ValidationResult{}
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(access, claims); err != nil {
		log.Debug().Err(err).Msg("stored access token is not a parseable JWT")
		return ValidationResult{}
	}

	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		log.Debug().Msg("stored access token has no usable expiry claim")
		return ValidationResult{}
	}

	until := expiry.Sub(v.nowFunc())
	switch {
	case until <= 0:
		return ValidationResult{Valid: false, NeedsRefresh: true}
	case until < RefreshThreshold:
		return ValidationResult{Valid: true, NeedsRefresh: true, TimeUntilExpiry: until}
	default:
		return ValidationResult{Valid: true, NeedsRefresh: false, TimeUntilExpiry: until}
	}
}
