// Package typemap converts Trino type names into PostgreSQL DDL types and
// resolves the driver's column type identifiers back to canonical names.
package typemap

// ResultType maps a Trino query-result column type to a PostgreSQL type
// usable in CREATE TABLE.
func ResultType(trinoType string) string {
	return pgType(trinoType)
}

// TableType maps a Trino table column type to a PostgreSQL type usable in
// ALTER TABLE ... ADD. It applies the same substitutions as ResultType today,
// but the two contracts are kept separate: result shaping and persisted-table
// shaping may diverge independently.
func TableType(trinoType string) string {
	return pgType(trinoType)
}

func pgType(trinoType string) string {
	switch trinoType {
	case "varchar":
		return "varchar(255)"
	case "varbinary":
		return "bytea"
	case "double":
		return "double precision"
	default:
		// Trino and PostgreSQL share the SQL standard names for the rest.
		return trinoType
	}
}

// InfoSchemaType normalizes the pseudo-types PostgreSQL's information_schema
// views report. SELECT can return them but CREATE TABLE cannot use them.
func InfoSchemaType(name string) string {
	switch name {
	case "sql_identifier":
		return "name"
	case "cardinal_number":
		return "int"
	case "character_data":
		return "name"
	case "yes_or_no":
		return "text"
	default:
		return name
	}
}
