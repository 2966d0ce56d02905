package session

import (
	"errors"
	"fmt"

	"github.com/rescp17/dropline/pkg/transfer"
)

var ErrSessionClosed = errors.New("session closed")

// OperationError is returned when a caller operation does not fit the
// session's role or phase. It unwraps to transfer.ErrInvalidOperation.
type OperationError struct {
	Op    string
	Role  Role
	Phase Phase
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s is not valid for %s in phase %s", e.Op, e.Role, e.Phase)
}

func (e *OperationError) Unwrap() error {
	return transfer.ErrInvalidOperation
}
