package db

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// SanitizeTable quotes a possibly schema-qualified table name such as
// "filings.label_filings".
func SanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// UpsertSQL builds a single-row INSERT ... ON CONFLICT DO UPDATE statement
// with positional placeholders. Every non-key column is replaced on
// conflict, so the row is always a full overwrite.
func UpsertSQL(table string, columns, conflictKeys []string) string {
	keys := make(map[string]bool, len(conflictKeys))
	for _, k := range conflictKeys {
		keys[k] = true
	}

	placeholders := make([]string, len(columns))
	var sets []string
	for i, c := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if !keys[c] {
			id := pgx.Identifier{c}.Sanitize()
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", id, id))
		}
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		SanitizeTable(table),
		quoteAndJoin(columns),
		strings.Join(placeholders, ", "),
		quoteAndJoin(conflictKeys),
		strings.Join(sets, ", "),
	)
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
