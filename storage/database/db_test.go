package database

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ibdp/core"
	appfs "github.com/trezcool/ibdp/fs"
)

func TestDSN(t *testing.T) {
	conf := &core.Config{}
	conf.Database.Engine = "postgres"
	conf.Database.Host = "db"
	conf.Database.Port = "5432"
	conf.Database.User = "ibdp"
	conf.Database.Password = "p@ss word"
	conf.Database.AdminUser = "postgres"
	conf.Database.AdminPassword = "root"

	assert.Equal(t, "postgres://ibdp:p%40ss%20word@db:5432/ibdp?sslmode=require&timezone=utc", dsn("ibdp", false, conf))
	assert.Equal(t, "postgres://postgres:root@db:5432/postgres?sslmode=require&timezone=utc", dsn("postgres", true, conf))

	conf.Database.DisableTLS = true
	conf.Database.AdminUser = ""
	assert.Equal(t, "postgres://ibdp:p%40ss%20word@db:5432/postgres?sslmode=disable&timezone=utc", dsn("postgres", true, conf))
}

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(appfs.FS, MigrationsDir()+"/*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"migrations/00001_create_users.sql",
		"migrations/00002_create_assessments.sql",
	}, files)
}
