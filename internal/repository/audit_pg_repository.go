package repository

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"

	"github.com/pidb/catalog-api/internal/models"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

// PostgresAuditRepository mirrors audit events into a PostgreSQL table:
//
//	CREATE TABLE audit_events (
//	    id          BIGSERIAL PRIMARY KEY,
//	    occurred_at TIMESTAMPTZ NOT NULL,
//	    username    TEXT NOT NULL,
//	    action      TEXT NOT NULL,
//	    role        TEXT NOT NULL DEFAULT ''
//	);
type PostgresAuditRepository struct {
	db    *sqlx.DB
	table string
}

// NewPostgresAuditRepository validates the table name, since it is interpolated into SQL.
func NewPostgresAuditRepository(db *sqlx.DB, table string) (*PostgresAuditRepository, error) {
	if table == "" {
		table = "audit_events"
	}
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid audit table name %q", table)
	}
	return &PostgresAuditRepository{db: db, table: table}, nil
}

func (r *PostgresAuditRepository) Name() string { return "postgres" }

func (r *PostgresAuditRepository) Append(ctx context.Context, event models.AuditEvent) error {
	query := fmt.Sprintf(`INSERT INTO %s (occurred_at, username, action, role) VALUES (:occurred_at, :username, :action, :role)`, r.table)
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
