package reconcile

import (
	"fmt"

	"github.com/CaliLuke/go-dtograph/meta"
)

// DuplicateIncomingError is returned when the incoming child list holds two
// children that compare equal.
type DuplicateIncomingError struct {
	Child  meta.TypeID
	First  int
	Second int
}

// Error returns the error message for DuplicateIncomingError.
func (e *DuplicateIncomingError) Error() string {
	return fmt.Sprintf("reconcile %s: incoming children %d and %d are equal", e.Child, e.First, e.Second)
}

// ConfigError is returned when a OneToMany lacks a required function.
type ConfigError struct {
	Child meta.TypeID
	Field string
}

// Error returns the error message for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("reconcile %s: %s is not set", e.Child, e.Field)
}
