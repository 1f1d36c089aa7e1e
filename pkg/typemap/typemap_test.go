package typemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultType(t *testing.T) {
	cases := map[string]string{
		"varchar":          "varchar(255)",
		"varbinary":        "bytea",
		"double":           "double precision",
		"bigint":           "bigint",
		"boolean":          "boolean",
		"timestamp":        "timestamp",
		"decimal(10,2)":    "decimal(10,2)",
		"double precision": "double precision",
	}
	for in, want := range cases {
		assert.Equal(t, want, ResultType(in), "ResultType(%q)", in)
	}
}

func TestTableType(t *testing.T) {
	cases := map[string]string{
		"varchar":   "varchar(255)",
		"varbinary": "bytea",
		"double":    "double precision",
		"integer":   "integer",
	}
	for in, want := range cases {
		assert.Equal(t, want, TableType(in), "TableType(%q)", in)
	}
}

// The result and table contracts stay substitutable until one of them grows a
// divergent rule; both must agree today.
func TestResultAndTableTypesAgree(t *testing.T) {
	for _, in := range []string{"varchar", "varbinary", "double", "bigint", "date", "uuid"} {
		assert.Equal(t, ResultType(in), TableType(in), "mapping for %q", in)
	}
}

func TestResultTypePure(t *testing.T) {
	for i := 0; i < 3; i++ {
		assert.Equal(t, "varchar(255)", ResultType("varchar"))
	}
}

func TestInfoSchemaType(t *testing.T) {
	cases := map[string]string{
		"sql_identifier":  "name",
		"cardinal_number": "int",
		"character_data":  "name",
		"yes_or_no":       "text",
		"text":            "text",
		"int4":            "int4",
	}
	for in, want := range cases {
		assert.Equal(t, want, InfoSchemaType(in), "InfoSchemaType(%q)", in)
	}
}
