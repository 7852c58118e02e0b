package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaview/internal/core/appctx"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	s := openStore(t)

	_, ok := s.Current()
	assert.False(t, ok)

	sess := &appctx.Session{Username: "ops", Token: "opaque-token", IssuedAt: time.Now().UTC()}
	require.NoError(t, s.Save(sess))

	got, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "ops", got.Username)
	assert.Equal(t, "opaque-token", got.Token)

	require.NoError(t, s.Clear())
	_, ok = s.Current()
	assert.False(t, ok)
}

func TestSessionSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(&appctx.Session{Username: "ops", Token: "tok"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "ops", got.Username)
}

func TestCachedSchemasSurviveClear(t *testing.T) {
	s := openStore(t)

	assert.Empty(t, s.ETag("ui/portal"))
	require.NoError(t, s.SetCachedSchema("ui/portal", `"abc"`, []byte(`[{"label":"Sales"}]`)))
	assert.Equal(t, `"abc"`, s.ETag("ui/portal"))

	require.NoError(t, s.Save(&appctx.Session{Token: "tok"}))
	require.NoError(t, s.Clear())

	etag, body := s.CachedSchema("ui/portal")
	assert.Equal(t, `"abc"`, etag)
	assert.JSONEq(t, `[{"label":"Sales"}]`, string(body))
}

func TestCachedSchemasSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SetCachedSchema("ui/dashboard/Main", `"d1"`, []byte(`{"name":"Main"}`)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	etag, body := s.CachedSchema("ui/dashboard/Main")
	assert.Equal(t, `"d1"`, etag)
	assert.JSONEq(t, `{"name":"Main"}`, string(body))
}

func signedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops",
		"exp": exp.Unix(),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestTokenExpired(t *testing.T) {
	assert.False(t, TokenExpired(""), "empty token")
	assert.False(t, TokenExpired("opaque-uuid-token"), "opaque token never expires client-side")
	assert.False(t, TokenExpired(signedJWT(t, time.Now().Add(time.Hour))))
	assert.True(t, TokenExpired(signedJWT(t, time.Now().Add(-time.Hour))))
}

func TestExpiredJWTSessionDropped(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Save(&appctx.Session{Username: "ops", Token: signedJWT(t, time.Now().Add(-time.Minute))}))

	_, ok := s.Current()
	assert.False(t, ok)

	// The drop is persistent, not just filtered.
	_, ok = s.Current()
	assert.False(t, ok)
}
