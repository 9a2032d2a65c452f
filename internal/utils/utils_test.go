package utils

import (
	"crypto/tls"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiny-explorers/internal/config"
)

func TestBuildPostgresDSNFromEnv(t *testing.T) {
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_USER", "kid")
	t.Setenv("PG_PASSWORD", "secret")
	t.Setenv("PG_PORT", "")
	t.Setenv("PG_DB", "")
	t.Setenv("PG_SSLMODE", "")
	t.Setenv("PG_DSN", "")
	assert.Equal(t, "postgres://kid:secret@db:5432/tiny_explorers?sslmode=disable", BuildPostgresDSNFromEnv())

	t.Setenv("PG_PASSWORD", "p@ss/word")
	dsn := BuildPostgresDSNFromEnv()
	u, err := url.Parse(dsn)
	require.NoError(t, err)
	pass, _ := u.User.Password()
	assert.Equal(t, "p@ss/word", pass)
	assert.Equal(t, "db:5432", u.Host)

	t.Setenv("PG_DSN", "postgres://override/x")
	assert.Equal(t, "postgres://override/x", BuildPostgresDSNFromEnv())
}

func TestOpenRedisDisabled(t *testing.T) {
	assert.Nil(t, OpenRedis(config.Redis{Addr: "127.0.0.1:6379"}))
	rc := OpenRedis(config.Redis{Enabled: true, Addr: "127.0.0.1:6379", DB: 2})
	require.NotNil(t, rc)
	assert.Equal(t, 2, rc.Options().DB)
	_ = rc.Close()
}

func TestEnsureSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "certs", "server.crt")
	key := filepath.Join(dir, "certs", "server.key")
	require.NoError(t, EnsureSelfSignedCert(cert, key, "tiny-explorers.local"))
	_, err := tls.LoadX509KeyPair(cert, key)
	require.NoError(t, err)
	assert.NoError(t, EnsureSelfSignedCert(cert, key, "ignored"), "existing pair is kept")
}
