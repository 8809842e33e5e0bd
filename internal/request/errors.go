package request

import (
	"fmt"

	"fluxmedia/internal/services"
)

// ValidationError reports locally malformed input. It is raised before any
// network call and matches services.ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == services.ErrValidation }

// PreconditionError reports an operation requested before its inputs exist,
// such as a convert with no completed download. It matches services.ErrPrecondition.
type PreconditionError struct {
	Operation string
	Reason    string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
}

func (e *PreconditionError) Is(target error) bool { return target == services.ErrPrecondition }
