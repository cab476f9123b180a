package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// LogFields flattens err into structured log fields: the top message, the
// typed code when present, the unwrap chain and any Postgres diagnostics
// raised by pgx or lib/pq. Empty diagnostics are omitted.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}

	fields := map[string]any{"error": err.Error()}
	if typed := As(err); typed != nil {
		fields["error_code"] = typed.Code()
	}

	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %v", e, e))
	}
	fields["error_chain"] = chain

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		addPG(fields, pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName, pgxErr.Detail, pgxErr.Message)
	case errors.As(err, &pqErr):
		addPG(fields, string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column, pqErr.Detail, pqErr.Message)
	}
	return fields
}

func addPG(fields map[string]any, code, constraint, table, column, detail, message string) {
	for key, value := range map[string]string{
		"pg_code":       code,
		"pg_constraint": constraint,
		"pg_table":      table,
		"pg_column":     column,
		"pg_detail":     detail,
		"pg_message":    message,
	} {
		if value != "" {
			fields[key] = value
		}
	}
}
