package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrefix(t *testing.T) {
	require.Equal(t, "", Prefix(""))
	require.Equal(t, "", Prefix("development"))
	require.Equal(t, "TEST_", Prefix("test"))
	require.Equal(t, "TEST_", Prefix("TEST"))
	require.Equal(t, "PROD_", Prefix("prod"))
	require.Equal(t, "PROD_", Prefix("Prod"))
}

func TestLoadConfigUsesEnvironmentPrefix(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("TEST_SECRET_KEY", "prefixed-secret")
	t.Setenv("SECRET_KEY", "plain-secret")
	t.Setenv("TEST_DB_URI", "postgres://test")
	t.Setenv("TEST_ACCESS_TOKEN_EXPIRE_MINUTES", "5")
	t.Setenv("TEST_REDIS_HOST", "localhost")
	t.Setenv("TEST_REDIS_PORT", "6379")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "prefixed-secret", cfg.SECRET_KEY)
	require.Equal(t, "postgres://test", cfg.DB_URI)
	require.Equal(t, 5, cfg.ACCESS_TOKEN_MINUTES)
	require.Equal(t, "localhost:6379", cfg.RedisAddr())
}

func TestLoadConfigDefaultsAndRequired(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("SECRET_KEY", "secret")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 60, cfg.ACCESS_TOKEN_MINUTES)

	t.Setenv("SECRET_KEY", "")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigBadMinutesFallsBack(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("SECRET_KEY", "secret")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 60, cfg.ACCESS_TOKEN_MINUTES)
}
