package meta

import (
	"fmt"
	"reflect"
)

// NotStructError is returned when a type that is not a struct (or pointer to
// struct) is passed to the registry.
type NotStructError struct {
	Type reflect.Type
}

// Error returns the error message for NotStructError.
func (e *NotStructError) Error() string {
	return fmt.Sprintf("meta: expected struct, got %s", e.Type)
}

// TagError is returned when a `dto` struct tag cannot be parsed or is
// inconsistent with the declared field type.
type TagError struct {
	TypeName string
	Field    string
	Cause    error
}

// Error returns the error message for TagError.
func (e *TagError) Error() string {
	return fmt.Sprintf("meta: %s.%s: %v", e.TypeName, e.Field, e.Cause)
}

// Unwrap returns the underlying cause of the TagError.
func (e *TagError) Unwrap() error {
	return e.Cause
}

// RelationError is returned when a field flagged as a relation points to a
// type that cannot itself be described.
type RelationError struct {
	TypeName string
	Field    string
	Cause    error
}

// Error returns the error message for RelationError.
func (e *RelationError) Error() string {
	return fmt.Sprintf("meta: relation %s.%s: %v", e.TypeName, e.Field, e.Cause)
}

// Unwrap returns the underlying cause of the RelationError.
func (e *RelationError) Unwrap() error {
	return e.Cause
}

// MissingIDError is returned when a described type has no identifier field,
// or more than one.
type MissingIDError struct {
	TypeName string
	Count    int
}

// Error returns the error message for MissingIDError.
func (e *MissingIDError) Error() string {
	if e.Count > 1 {
		return fmt.Sprintf("meta: %s declares %d identifier fields, want exactly one", e.TypeName, e.Count)
	}
	return fmt.Sprintf("meta: %s has no identifier field", e.TypeName)
}

// TypeIDConflictError is returned when two distinct Go types claim the same TypeID.
type TypeIDConflictError struct {
	TypeID   TypeID
	Existing reflect.Type
	Type     reflect.Type
}

// Error returns the error message for TypeIDConflictError.
func (e *TypeIDConflictError) Error() string {
	return fmt.Sprintf("meta: type id %q already registered to %s, cannot assign to %s",
		e.TypeID, e.Existing, e.Type)
}

// UnknownTypeError is returned when a TypeID has not been described yet.
type UnknownTypeError struct {
	TypeID TypeID
}

// Error returns the error message for UnknownTypeError.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("meta: type %q is not registered", e.TypeID)
}

// UnknownFieldError is returned by field-level queries for names the type
// does not declare.
type UnknownFieldError struct {
	TypeID TypeID
	Field  string
}

// Error returns the error message for UnknownFieldError.
func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("meta: type %q has no field %q", e.TypeID, e.Field)
}
