// Package migrations embeds the goose SQL migrations for the users schema and
// applies them. Each supported dialect has its own directory with the same
// versions; sqlite is used by the repository tests.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// FS holds every migration, named <dialect dir>/<version>_<description>.sql.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// TableName is the goose version table.
const TableName = "schema_migrations"

var dirs = map[string]string{
	"postgres": "postgres",
	"sqlite3":  "sqlite",
}

// Dir returns the directory in FS holding the migrations for a goose dialect.
func Dir(dialect string) (string, error) {
	dir, ok := dirs[dialect]
	if !ok {
		return "", fmt.Errorf("no migrations for dialect %q", dialect)
	}
	return dir, nil
}

// gooseLogger forwards goose output to zap. Fatalf does not exit; the
// error is returned by goose and handled by the caller.
type gooseLogger struct {
	log *zap.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Up applies every pending migration for dialect ("postgres" or "sqlite3") to db.
func Up(ctx context.Context, db *sql.DB, dialect string, l *zap.Logger) error {
	dir, err := Dir(dialect)
	if err != nil {
		return err
	}

	goose.SetBaseFS(FS)
	goose.SetLogger(gooseLogger{log: l.Named("migrations")})
	goose.SetTableName(TableName)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	l.Info("database migrations applied", zap.Int64("version", version))
	return nil
}
