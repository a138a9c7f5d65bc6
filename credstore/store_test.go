package credstore_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gradcert/console-client/credstore"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*credstore.FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session")
	return credstore.NewFileStore(path), path
}

func testRecord() credstore.Record {
	return credstore.Record{
		AccessToken:  "access-token-1",
		RefreshToken: "refresh-token-1",
		User: credstore.User{
			ID:           42,
			Username:     "jdoe",
			Email:        "jdoe@example.com",
			Name:         "John Doe",
			PhoneNumber:  "+15550100",
			ProfileImage: "https://cdn.example.com/jdoe.png",
		},
	}
}

func TestSetThenGetRoundTrips(t *testing.T) {
	store, _ := newTestStore(t)

	record := testRecord()
	store.Set(record)

	got := store.Get()
	require.NotNil(t, got)
	require.Equal(t, record, *got)
	require.Equal(t, record.AccessToken, store.AccessToken())
	require.Equal(t, record.RefreshToken, store.RefreshToken())
}

func TestGetWithoutRecordReturnsNil(t *testing.T) {
	store, _ := newTestStore(t)

	require.Nil(t, store.Get())
	require.Empty(t, store.AccessToken())
	require.Empty(t, store.RefreshToken())
}

func TestRemoveDeletesRecord(t *testing.T) {
	store, _ := newTestStore(t)

	store.Set(testRecord())
	store.Remove()

	require.Nil(t, store.Get())

	// Removing again must not panic or log-fail loudly.
	store.Remove()
	require.Nil(t, store.Get())
}

func TestGetOnCorruptFileReturnsNil(t *testing.T) {
	store, path := newTestStore(t)

	store.Set(testRecord())
	require.NoError(t, os.WriteFile(path, []byte("!!! not base64 !!!"), 0o600))

	require.Nil(t, store.Get())
}

func TestGetOnValidEncodingInvalidJSONReturnsNil(t *testing.T) {
	store, path := newTestStore(t)

	require.NoError(t, os.WriteFile(path, []byte(credstore.Encode("{broken json")), 0o600))
	require.Nil(t, store.Get())
}

func TestUpdateTokensPreservesUser(t *testing.T) {
	store, _ := newTestStore(t)

	record := testRecord()
	store.Set(record)
	store.UpdateTokens("access-token-2", "refresh-token-2")

	got := store.Get()
	require.NotNil(t, got)
	require.Equal(t, "access-token-2", got.AccessToken)
	require.Equal(t, "refresh-token-2", got.RefreshToken)
	require.Equal(t, record.User, got.User)
}

func TestUpdateTokensWithoutRecordIsNoOp(t *testing.T) {
	store, _ := newTestStore(t)

	store.UpdateTokens("access", "refresh")
	require.Nil(t, store.Get())
}

func TestUpdateUserPreservesTokens(t *testing.T) {
	store, _ := newTestStore(t)

	record := testRecord()
	store.Set(record)

	updated := record.User
	updated.Name = "Jane Doe"
	store.UpdateUser(updated)

	got := store.Get()
	require.NotNil(t, got)
	require.Equal(t, "Jane Doe", got.User.Name)
	require.Equal(t, record.AccessToken, got.AccessToken)
	require.Equal(t, record.RefreshToken, got.RefreshToken)
}

func TestStoredFileIsObfuscated(t *testing.T) {
	store, path := newTestStore(t)

	store.Set(testRecord())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "access-token-1")
	require.NotContains(t, string(raw), "jdoe@example.com")
}

func TestEncodeDecode(t *testing.T) {
	for _, data := range []string{
		"",
		"plain",
		`{"access":"a","refresh":"b"}`,
		"unicode ✓ and spaces % &",
	} {
		require.Equal(t, data, credstore.Decode(credstore.Encode(data)))
	}

	require.Empty(t, credstore.Decode("not-base64!"))
	require.Empty(t, credstore.Decode(strings.Repeat("%", 8)))
}
