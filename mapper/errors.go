package mapper

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/CaliLuke/go-dtograph/meta"
)

// ErrNoLoader is returned by Apply when an included singular relation must
// be resolved but the mapper has no loader.
var ErrNoLoader = errors.New("mapper: no loader configured")

// FieldError is returned when a single field cannot be mapped.
type FieldError struct {
	TypeID meta.TypeID
	Field  string
	Op     string
	Cause  error
}

// Error returns the error message for FieldError.
func (e *FieldError) Error() string {
	return fmt.Sprintf("mapper: %s %s.%s: %v", e.Op, e.TypeID, e.Field, e.Cause)
}

// Unwrap returns the underlying cause of the FieldError.
func (e *FieldError) Unwrap() error {
	return e.Cause
}

// ConversionError is returned when a value cannot be stored into a field.
type ConversionError struct {
	From reflect.Type
	To   reflect.Type
}

// Error returns the error message for ConversionError.
func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %v to %v", e.From, e.To)
}

// TargetError is returned when Apply is handed an entity it cannot modify.
type TargetError struct {
	Type reflect.Type
}

// Error returns the error message for TargetError.
func (e *TargetError) Error() string {
	return fmt.Sprintf("mapper: apply target must be a non-nil struct pointer, got %v", e.Type)
}
