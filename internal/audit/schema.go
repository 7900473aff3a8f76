package audit

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
)

const PostgresSchemaName = "schema/postgres.sql"

//go:embed schema/*.sql
var schemaFS embed.FS

func LoadSchema(name string) (string, error) {
	data, err := schemaFS.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func Migrate(ctx context.Context, db *sql.DB) error {
	ddl, err := LoadSchema(PostgresSchemaName)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("audit: apply schema: %w", err)
	}
	return nil
}
