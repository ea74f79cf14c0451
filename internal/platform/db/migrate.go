package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies the embedded schema migrations using goose, bridging
// the pgx pool to database/sql the way goose requires (grounded on
// saaskit's pkg/pg/migrate.go).
func Migrate(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) error {
	conn := stdlib.OpenDBFromPool(pool)
	defer func(conn *sql.DB) { _ = conn.Close() }(conn)

	goose.SetLogger(gooseLogAdapter{log: log})
	goose.SetBaseFS(migrationFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, conn, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// gooseLogAdapter routes goose's Printf-style logging through zerolog.
type gooseLogAdapter struct{ log zerolog.Logger }

func (a gooseLogAdapter) Fatalf(format string, v ...interface{}) {
	a.log.Error().Msgf(format, v...)
}

func (a gooseLogAdapter) Printf(format string, v ...interface{}) {
	a.log.Info().Msgf(format, v...)
}
