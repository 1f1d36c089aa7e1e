package sqlbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateTempTable(t *testing.T) {
	got := CreateTempTable("t1", []string{"id", "name"}, []string{"bigint", "varchar(255)"})
	assert.Equal(t, "create temporary table \"t1\" (\n  \"id\" bigint,\n  \"name\" varchar(255)\n)", got)
}

func TestCreateTempTableQuotesIdentifiers(t *testing.T) {
	got := CreateTempTable(`ta"ble`, []string{"se lect"}, []string{"int"})
	assert.Equal(t, "create temporary table \"ta\"\"ble\" (\n  \"se lect\" int\n)", got)
}

func TestAlterTableAddColumns(t *testing.T) {
	got := AlterTableAddColumns("sales", "orders",
		[]string{"id", "total"},
		[]string{"integer", "double precision"},
		[]bool{true, false})
	assert.Equal(t, "alter table \"sales\".\"orders\" \n  add \"id\" integer not null,\n  add \"total\" double precision", got)
}

func TestInsertInto(t *testing.T) {
	got := InsertInto("t1", []string{"id", "name"})
	assert.Equal(t, "insert into \"t1\" (\n  \"id\",\n  \"name\"\n) values\n", got)
}

func TestDropTableIfExists(t *testing.T) {
	assert.Equal(t, "drop table if exists \"t1\"", DropTableIfExists("t1"))
}
