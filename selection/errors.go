package selection

import "fmt"

// PathError is returned when an attribute or include path does not resolve
// against the described types.
type PathError struct {
	Path    string
	Segment string
	Reason  string
}

// Error returns the error message for PathError.
func (e *PathError) Error() string {
	return fmt.Sprintf("selection: path %q: segment %q %s", e.Path, e.Segment, e.Reason)
}
