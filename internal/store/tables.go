package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/kindred/internal/record"
)

// selectFunc runs a query and returns its rows as records of one kind.
type selectFunc func(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) ([]record.Record, error)

// table describes how one record kind maps onto its SQLite table.
// Adding a record kind means adding one entry to tables.
type table struct {
	kind    record.Kind
	columns []string
	sel     selectFunc

	selectSQL string // SELECT <columns> FROM <table>
	insertSQL string // named
	updateSQL string // named
	deleteSQL string
}

var tables = map[record.Kind]*table{
	record.KindContact: newTable[record.Contact](record.KindContact,
		"id", "name", "surname", "nickname", "phone", "gender", "relation", "birthday",
		"occupation", "hobbies", "leisure", "notes", "avatar",
		"notify_enabled", "notify_offsets", "notify_hour", "notify_minute",
	),
	record.KindHoliday: newTable[record.Holiday](record.KindHoliday,
		"id", "title", "date", "year", "type", "icon", "is_regional", "is_custom",
	),
	record.KindCard: newTable[record.CardHistoryItem](record.KindCard,
		"id", "created_at", "image", "contact_id", "holiday_id",
	),
	record.KindCongrats: newTable[record.CongratsHistoryItem](record.KindCongrats,
		"id", "created_at", "text", "contact_id", "holiday_id",
	),
}

// newTable builds the table descriptor for record type T. The first column
// must be the identifier.
func newTable[T any, P interface {
	*T
	record.Record
}](kind record.Kind, columns ...string) *table {
	name := string(kind)

	named := make([]string, len(columns))
	sets := make([]string, 0, len(columns)-1)
	for i, c := range columns {
		named[i] = ":" + c
		if i > 0 {
			sets = append(sets, c+" = :"+c)
		}
	}

	return &table{
		kind:    kind,
		columns: columns,
		sel: func(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) ([]record.Record, error) {
			var rows []T
			if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
				return nil, err
			}
			out := make([]record.Record, len(rows))
			for i := range rows {
				out[i] = P(&rows[i])
			}
			return out, nil
		},
		selectSQL: fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), name),
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", name, strings.Join(columns, ", "), strings.Join(named, ", ")),
		updateSQL: fmt.Sprintf("UPDATE %s SET %s WHERE id = :id", name, strings.Join(sets, ", ")),
		deleteSQL: fmt.Sprintf("DELETE FROM %s WHERE id = ?", name),
	}
}

// tableFor resolves the descriptor of a kind.
func tableFor(kind record.Kind) (*table, error) {
	t, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
	return t, nil
}
