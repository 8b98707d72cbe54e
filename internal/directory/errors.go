package directory

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrCreation   = errors.New("creation rejected")
	ErrNotFound   = errors.New("not found")
	ErrStructural = errors.New("structural error")
	ErrPermission = errors.New("permission denied")
)

type (
	// ValidationError reports malformed input such as a tree node without a
	// name or an invalid invite request.
	ValidationError struct {
		Field   string
		Message string
	}

	// CreationError reports a rejected channel or folder creation.
	CreationError struct {
		Name    string
		Message string
		Err     error
	}

	// NotFoundError reports an operation on a channel or invite that no
	// longer exists.
	NotFoundError struct {
		Resource string
		ID       string
	}

	// PermissionError reports an owner-only action attempted by someone
	// else.
	PermissionError struct {
		Action  string
		Channel string
	}

	// StructuralError reports a cyclic or unbounded tree.
	StructuralError struct {
		Depth   int
		Message string
	}
)

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *CreationError) Error() string {
	msg := fmt.Sprintf("create %q: %s", e.Name, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s %q: only the channel owner may do this", e.Action, e.Channel)
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("tree depth %d: %s", e.Depth, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
func (e *CreationError) Is(target error) bool   { return target == ErrCreation }
func (e *NotFoundError) Is(target error) bool   { return target == ErrNotFound }
func (e *PermissionError) Is(target error) bool { return target == ErrPermission }
func (e *StructuralError) Is(target error) bool { return target == ErrStructural }

// Unwrap returns the underlying cause of a rejected creation.
func (e *CreationError) Unwrap() error { return e.Err }
