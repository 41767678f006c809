package resolve

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/CaliLuke/go-dtograph/meta"
)

// ErrFrozen is returned when registering into a frozen Table.
var ErrFrozen = errors.New("resolve: table is frozen")

// DuplicateResolverError is returned when a second resolver is registered
// for the same (type, field, direction).
type DuplicateResolverError struct {
	TypeID    meta.TypeID
	Field     string
	Direction Direction
}

// Error returns the error message for DuplicateResolverError.
func (e *DuplicateResolverError) Error() string {
	return fmt.Sprintf("resolve: duplicate %s resolver for %s.%s", e.Direction, e.TypeID, e.Field)
}

// SourceTypeError is returned by typed adapters handed a source of the wrong type.
type SourceTypeError struct {
	Want reflect.Type
	Got  reflect.Type
}

// Error returns the error message for SourceTypeError.
func (e *SourceTypeError) Error() string {
	return fmt.Sprintf("resolve: resolver expects %v, got %v", e.Want, e.Got)
}
