package mirror

import "strconv"

const (
	// StagingSchema holds the pre-provisioned table holders until they are
	// renamed into their real identities.
	StagingSchema = "trino_materialize_catalog"

	// schemaHolderPrefix names the pre-provisioned empty schemas.
	schemaHolderPrefix = StagingSchema + "_schema_holder_"

	// tableHolderPrefix names the pre-provisioned empty tables inside the
	// staging schema.
	tableHolderPrefix = "table_holder_"

	// maxIdentifierLen is NAMEDATALEN-1 from pg_config_manual.h. Remote
	// names longer than this cannot become PostgreSQL identifiers.
	maxIdentifierLen = 63
)

// reservedSchemas are local schemas the mirror never drops and never mirrors
// over.
var reservedSchemas = []string{StagingSchema, "pg_catalog", "information_schema", "public"}

// SchemaHolderName returns the name of the i-th pre-provisioned schema
// holder. Holder names stay within the identifier limit and need no quoting.
func SchemaHolderName(i int) string {
	return schemaHolderPrefix + strconv.Itoa(i)
}

// TableHolderName returns the unqualified name of the i-th pre-provisioned
// table holder.
func TableHolderName(i int) string {
	return tableHolderPrefix + strconv.Itoa(i)
}

// isSystemSchema reports whether a remote schema is excluded from mirroring.
func isSystemSchema(name string) bool {
	return name == "sys" || name == "information_schema"
}
