package core

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrParse           = errors.New("malformed request payload")
	ErrInvalidArgument = errors.New("No database name")
	ErrNotOpen         = errors.New("Database is not open!")
)

// ExecutionError reports the statement the engine rejected. The whole batch
// has been rolled back when it is returned.
type ExecutionError struct {
	Index int
	ID    string
	SQL   string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("statement %d (qid %q) failed: %v", e.Index, e.ID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Cause lets errors.Cause reach the engine error.
func (e *ExecutionError) Cause() error { return e.Err }
