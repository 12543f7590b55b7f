package core

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setenv(t *testing.T, key, value string) {
	prev, had := os.LookupEnv(key)
	require.NoError(t, os.Setenv(key, value))
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, prev)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetLater(t *testing.T, keys ...string) {
	t.Cleanup(func() {
		for _, k := range keys {
			_ = os.Unsetenv(k)
		}
	})
}

func TestNewConfig_defaults(t *testing.T) {
	setenv(t, "ENV", "test")
	setenv(t, "WORKDIR", t.TempDir())

	conf, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "TEST", conf.Env)
	assert.True(t, conf.TestMode)
	assert.True(t, conf.IsDev())
	assert.Equal(t, 12, conf.BcryptCost)
	assert.NotEmpty(t, conf.SecretKey)
	assert.Equal(t, 30*24*time.Hour, conf.Server.JWTExpirationDelta)
	assert.Equal(t, "session", conf.Server.SessionCookie)
	assert.Equal(t, "/login", conf.Server.LoginPath)
	assert.Equal(t, "admin@ib-dp-assistant.com", conf.Admin.Email)
	assert.Equal(t, "admin-001", conf.Admin.ID)
	assert.Equal(t, "localhost:5432", conf.DatabaseAddress())
}

func TestNewConfig_envOverrides(t *testing.T) {
	wd := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(wd, "config"), 0o755))
	dotEnv := "TEST_ADMIN_EMAIL=root@school.test\nTEST_BCRYPTCOST=4\n"
	require.NoError(t, ioutil.WriteFile(filepath.Join(wd, "config", ".env.test"), []byte(dotEnv), 0o600))
	unsetLater(t, "TEST_ADMIN_EMAIL", "TEST_BCRYPTCOST")

	setenv(t, "ENV", "TEST")
	setenv(t, "WORKDIR", wd)
	setenv(t, "TEST_SERVER_JWTEXPIRATIONDELTA", "2h")

	conf, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "root@school.test", conf.Admin.Email)
	assert.Equal(t, 4, conf.BcryptCost, "low cost is accepted in test mode")
	assert.Equal(t, 2*time.Hour, conf.Server.JWTExpirationDelta)
}

func TestNewConfig_prod(t *testing.T) {
	setenv(t, "ENV", "PROD")
	setenv(t, "WORKDIR", t.TempDir())

	_, err := NewConfig()
	assert.EqualError(t, err, "config: secretKey is required")

	setenv(t, "PROD_SECRETKEY", "s3cret")
	conf, err := NewConfig()
	require.NoError(t, err)
	assert.False(t, conf.Debug)
	assert.False(t, conf.TestMode)
	assert.Empty(t, conf.Admin.Password, "no default admin password outside DEV")

	setenv(t, "PROD_BCRYPTCOST", "10")
	_, err = NewConfig()
	assert.EqualError(t, err, "config: bcryptCost must be at least 12 (got 10)")
}
