package materialize

import (
	"errors"

	"github.com/txn2/trino-materialize/pkg/pgexec"
	"github.com/txn2/trino-materialize/pkg/remote"
)

// IsRemoteError reports whether err originated in the remote engine.
func IsRemoteError(err error) bool {
	var qe *remote.QueryError
	return errors.As(err, &qe)
}

// IsLocalError reports whether err originated in the local database.
func IsLocalError(err error) bool {
	var se *pgexec.StatementError
	return errors.As(err, &se)
}
