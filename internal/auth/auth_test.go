package auth

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	t.Setenv(EnvKey, "")
	s := Store{Dir: t.TempDir()}

	ki, err := s.Get()
	require.NoError(t, err)
	require.Nil(t, ki)
	_, err = s.Require()
	require.ErrorIs(t, err, ErrNoKey)

	require.NoError(t, s.Set("Bearer abc123"))
	st, err := os.Stat(filepath.Join(s.Dir, credFileName))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	ki, err = s.Require()
	require.NoError(t, err)
	require.Equal(t, "abc123", ki.Key)
	require.Equal(t, "file", ki.Source)

	require.NoError(t, s.Delete())
	require.NoError(t, s.Delete())
}

func TestEnvOverridesFile(t *testing.T) {
	s := Store{Dir: t.TempDir()}
	require.NoError(t, s.Set("from-file"))
	t.Setenv(EnvKey, "bearer from-env")

	ki, err := s.Get()
	require.NoError(t, err)
	require.Equal(t, "from-env", ki.Key)
	require.Equal(t, "env", ki.Source)
}

func TestSetRejectsEmpty(t *testing.T) {
	require.Error(t, Store{Dir: t.TempDir()}.Set("  "))
}

func TestJWTPayloadAndExpiry(t *testing.T) {
	enc := base64.RawURLEncoding.EncodeToString
	key := enc([]byte(`{"alg":"none","typ":"JWT"}`)) + "." + enc([]byte(`{"sub":"ci","exp":1900000000}`)) + ".sig"

	p, err := JWTPayload(key)
	require.NoError(t, err)
	require.Contains(t, p, `"sub":"ci"`)

	exp := JWTExpiry(key)
	require.NotNil(t, exp)
	require.Equal(t, int64(1900000000), exp.Unix())

	_, err = JWTPayload("opaque")
	require.Error(t, err)
	require.Nil(t, JWTExpiry("opaque"))
	require.Nil(t, JWTExpiry(enc([]byte(`{"alg":"none"}`))+"."+enc([]byte(`{"sub":"ci"}`))+".sig"))
}
