// Package credstore persists the session record (token pair plus user
// profile) in a single client-local entry. The on-disk encoding is a
// reversible obfuscation against casual inspection, not encryption.
package credstore

import (
	"encoding/base64"
	"net/url"
	"strings"
)

// User is the cached profile of the authenticated account.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PhoneNumber  string `json:"phone_number"`
	ProfileImage string `json:"profile_image"`
}

// Record is the persisted session: the token pair and the user it belongs to.
type Record struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
	User         User   `json:"user"`
}

// Store holds at most one session Record. Implementations never surface
// storage or decode errors to callers: failures degrade to "no session"
// (Get returns nil, writes become no-ops) and are logged instead.
type Store interface {
	// Set replaces the stored record. Readers never observe a partially
	// written record.
	Set(record Record)
	// Get returns the stored record, or nil if absent or corrupt.
	Get() *Record
	// Remove deletes the stored record. Idempotent.
	Remove()
	// UpdateTokens replaces the token pair, preserving the user profile.
	// No-op when no record exists.
	UpdateTokens(access, refresh string)
	// UpdateUser replaces the user profile, preserving the token pair.
	// No-op when no record exists.
	UpdateUser(user User)
	// AccessToken returns the stored access token, or "".
	AccessToken() string
	// RefreshToken returns the stored refresh token, or "".
	RefreshToken() string
}

// Encode obfuscates data for local persistence: percent-encoding followed by
// base64. Reversible by anyone who looks; the backend remains the only
// security boundary.
func Encode(data string) string {
	return base64.StdEncoding.EncodeToString([]byte(url.QueryEscape(data)))
}

// Decode reverses Encode. Malformed input yields "".
func Decode(encoded string) string {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return ""
	}
	decoded, err := url.QueryUnescape(string(raw))
	if err != nil {
		return ""
	}
	return decoded
}
