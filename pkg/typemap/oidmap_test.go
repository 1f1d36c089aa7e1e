package typemap

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/trino-materialize/pkg/pgexec"
)

func newMockSession(t *testing.T) (*pgexec.Session, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	session, err := pgexec.NewSession(context.Background(), db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session, mock
}

func TestOIDMapResolveNamedIdentifiers(t *testing.T) {
	session, mock := newMockSession(t)

	m := NewOIDMap()
	resolved, err := m.Resolve(context.Background(), session, []string{"VARCHAR", "INT4", "SQL_IDENTIFIER"})
	require.NoError(t, err)
	assert.Equal(t, []string{"varchar", "int4", "name"}, resolved)

	// Named identifiers resolve without touching pg_type.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOIDMapResolveNumericIdentifiers(t *testing.T) {
	session, mock := newMockSession(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT oid, typname FROM pg_catalog.pg_type WHERE oid IN ($1,$2)")).
		WithArgs(int64(12462), int64(12464)).
		WillReturnRows(sqlmock.NewRows([]string{"oid", "typname"}).
			AddRow(int64(12462), "sql_identifier").
			AddRow(int64(12464), "cardinal_number"))

	m := NewOIDMap()
	resolved, err := m.Resolve(context.Background(), session, []string{"12462", "12464"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "int"}, resolved)

	// Second resolution is served from the map.
	resolved, err = m.Resolve(context.Background(), session, []string{"12464", "12462"})
	require.NoError(t, err)
	assert.Equal(t, []string{"int", "name"}, resolved)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOIDMapResolveUnknownOID(t *testing.T) {
	session, mock := newMockSession(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT oid, typname FROM pg_catalog.pg_type WHERE oid IN ($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"oid", "typname"}))

	m := NewOIDMap()
	resolved, err := m.Resolve(context.Background(), session, []string{"999999"})
	require.NoError(t, err)
	assert.Equal(t, []string{"text"}, resolved)

	// The miss is memoized; no second lookup.
	resolved, err = m.Resolve(context.Background(), session, []string{"999999"})
	require.NoError(t, err)
	assert.Equal(t, []string{"text"}, resolved)

	assert.NoError(t, mock.ExpectationsWereMet())
}
