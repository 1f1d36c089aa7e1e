// Package sqlbuild constructs the DDL and DML statement text used to
// materialize query results. Every identifier is quoted; type names come from
// the type mapper and are emitted verbatim.
package sqlbuild

import (
	"strings"

	"github.com/lib/pq"
)

// CreateTempTable builds a CREATE TEMPORARY TABLE statement with one column
// per (name, type) pair.
func CreateTempTable(table string, columnNames, columnTypes []string) string {
	var b strings.Builder
	b.WriteString("create temporary table ")
	b.WriteString(pq.QuoteIdentifier(table))
	b.WriteString(" (\n  ")

	for i, name := range columnNames {
		if i > 0 {
			b.WriteString(",\n  ")
		}
		b.WriteString(pq.QuoteIdentifier(name))
		b.WriteString(" ")
		b.WriteString(columnTypes[i])
	}

	b.WriteString("\n)")
	return b.String()
}

// AlterTableAddColumns builds an ALTER TABLE statement adding one column per
// (name, type) pair. A column gets NOT NULL iff its notNull flag is set.
func AlterTableAddColumns(schema, table string, columnNames, columnTypes []string, notNulls []bool) string {
	var b strings.Builder
	b.WriteString("alter table ")
	b.WriteString(pq.QuoteIdentifier(schema))
	b.WriteString(".")
	b.WriteString(pq.QuoteIdentifier(table))
	b.WriteString(" \n  ")

	for i, name := range columnNames {
		if i > 0 {
			b.WriteString(",\n  ")
		}
		b.WriteString("add ")
		b.WriteString(pq.QuoteIdentifier(name))
		b.WriteString(" ")
		b.WriteString(columnTypes[i])
		if notNulls[i] {
			b.WriteString(" not null")
		}
	}

	return b.String()
}

// InsertInto builds the header of a batched INSERT statement, up to and
// including the VALUES keyword. The batch loader appends the value tuples so
// one header serves any batch size.
func InsertInto(table string, columnNames []string) string {
	var b strings.Builder
	b.WriteString("insert into ")
	b.WriteString(pq.QuoteIdentifier(table))
	b.WriteString(" (\n  ")

	for i, name := range columnNames {
		if i > 0 {
			b.WriteString(",\n  ")
		}
		b.WriteString(pq.QuoteIdentifier(name))
	}

	b.WriteString("\n) values\n")
	return b.String()
}

// DropTableIfExists builds the statement that clears a previous
// materialization target.
func DropTableIfExists(table string) string {
	return "drop table if exists " + pq.QuoteIdentifier(table)
}
