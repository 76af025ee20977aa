package migrations

import (
	"context"
	"io/fs"
	"path"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestFS_DialectsShareVersions(t *testing.T) {
	pg, err := fs.Glob(FS, "postgres/*.sql")
	require.NoError(t, err)
	lite, err := fs.Glob(FS, "sqlite/*.sql")
	require.NoError(t, err)

	require.NotEmpty(t, pg)
	require.Len(t, lite, len(pg))
	for i := range pg {
		assert.Equal(t, path.Base(pg[i]), path.Base(lite[i]))
	}
}

func TestFS_MigrationsAreCollectable(t *testing.T) {
	goose.SetBaseFS(FS)
	t.Cleanup(func() { goose.SetBaseFS(nil) })

	for _, dialect := range []string{"postgres", "sqlite3"} {
		dir, err := Dir(dialect)
		require.NoError(t, err)

		collected, err := goose.CollectMigrations(dir, 0, goose.MaxVersion)
		require.NoError(t, err)
		require.NotEmpty(t, collected)
		assert.Equal(t, int64(1), collected[0].Version)
	}
}

func TestDir_UnknownDialect(t *testing.T) {
	_, err := Dir("mysql")
	assert.ErrorContains(t, err, "mysql")
}

func TestUp(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ctx := context.Background()
	require.NoError(t, Up(ctx, sqlDB, "sqlite3", zaptest.NewLogger(t)))

	assert.True(t, db.Migrator().HasTable("users"))
	assert.True(t, db.Migrator().HasIndex("users", "idx_users_email"))
	assert.True(t, db.Migrator().HasTable(TableName))

	// Re-running is a no-op.
	require.NoError(t, Up(ctx, sqlDB, "sqlite3", zaptest.NewLogger(t)))

	// The primary key is generated by the database
	_, err = sqlDB.ExecContext(ctx, "INSERT INTO users (name, email) VALUES ('a', 'a@example.com')")
	require.NoError(t, err)
	var id int64
	require.NoError(t, sqlDB.QueryRowContext(ctx, "SELECT id FROM users WHERE email = 'a@example.com'").Scan(&id))
	assert.Equal(t, int64(1), id)
}
