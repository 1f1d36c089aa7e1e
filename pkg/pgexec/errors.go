package pgexec

import "fmt"

// StatementError reports a statement rejected by the local database. Callers
// use errors.As against this type to distinguish local failures from remote
// engine failures.
type StatementError struct {
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("postgres statement failed: %v", e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

func statementErr(statement string, err error) error {
	return &StatementError{Statement: statement, Err: err}
}
