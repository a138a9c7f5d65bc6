package token

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// TokenSource adapts the Manager to oauth2.TokenSource so the managed
// session can back any oauth2-aware HTTP client.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, manager: m}
}

type tokenSource struct {
	ctx     context.Context
	manager *Manager
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	access, err := s.manager.EnsureValidToken(s.ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[TokenSource] no valid access token")
	}
	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if validation := s.manager.Validate(); validation.Valid {
		tok.Expiry = s.manager.validator.nowFunc().Add(validation.TimeUntilExpiry)
	}
	return tok, nil
}
