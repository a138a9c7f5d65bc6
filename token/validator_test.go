package token_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gradcert/console-client/credstore"
	"github.com/gradcert/console-client/credstore/storefakes"
	"github.com/gradcert/console-client/token"
	"github.com/stretchr/testify/require"
)

var testNow = time.Unix(1700000000, 0)

func fixedNow() time.Time { return testNow }

func mintToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": "1",
		"exp": expiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return signed
}

func storeWithAccess(access string) *storefakes.FakeStore {
	store := storefakes.NewFakeStore()
	store.Set(credstore.Record{
		AccessToken:  access,
		RefreshToken: "refresh-token",
		User:         credstore.User{ID: 1, Username: "jdoe"},
	})
	return store
}

func TestValidateWithoutTokenIsUnrecoverable(t *testing.T) {
	validator := token.NewValidator(storefakes.NewFakeStore(), token.WithNowFunc(fixedNow))

	result := validator.Validate()
	require.False(t, result.Valid)
	require.False(t, result.NeedsRefresh)
	require.Zero(t, result.TimeUntilExpiry)
}

func TestValidateMalformedTokenIsUnrecoverable(t *testing.T) {
	store := storeWithAccess("definitely-not-a-jwt")
	validator := token.NewValidator(store, token.WithNowFunc(fixedNow))

	result := validator.Validate()
	require.False(t, result.Valid)
	require.False(t, result.NeedsRefresh)
}

func TestValidateTokenWithoutExpiryIsUnrecoverable(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"}).
		SignedString([]byte("test-key"))
	require.NoError(t, err)
	validator := token.NewValidator(storeWithAccess(signed), token.WithNowFunc(fixedNow))

	result := validator.Validate()
	require.False(t, result.Valid)
	require.False(t, result.NeedsRefresh)
}

func TestValidateExpiredTokenNeedsRefresh(t *testing.T) {
	access := mintToken(t, testNow.Add(-time.Second))
	validator := token.NewValidator(storeWithAccess(access), token.WithNowFunc(fixedNow))

	result := validator.Validate()
	require.False(t, result.Valid)
	require.True(t, result.NeedsRefresh)
	require.Zero(t, result.TimeUntilExpiry)
}

func TestValidateNearExpiryNeedsRefresh(t *testing.T) {
	access := mintToken(t, testNow.Add(299*time.Second))
	validator := token.NewValidator(storeWithAccess(access), token.WithNowFunc(fixedNow))

	result := validator.Validate()
	require.True(t, result.Valid)
	require.True(t, result.NeedsRefresh)
	require.Equal(t, 299*time.Second, result.TimeUntilExpiry)
}

func TestValidateHealthyToken(t *testing.T) {
	access := mintToken(t, testNow.Add(301*time.Second))
	validator := token.NewValidator(storeWithAccess(access), token.WithNowFunc(fixedNow))

	result := validator.Validate()
	require.True(t, result.Valid)
	require.False(t, result.NeedsRefresh)
	require.Equal(t, 301*time.Second, result.TimeUntilExpiry)
}

func TestValidateThresholdBoundaryIsHealthy(t *testing.T) {
	access := mintToken(t, testNow.Add(token.RefreshThreshold))
	validator := token.NewValidator(storeWithAccess(access), token.WithNowFunc(fixedNow))

	result := validator.Validate()
	require.True(t, result.Valid)
	require.False(t, result.NeedsRefresh)
}
