package meta

import (
	"fmt"
	"strings"
)

// FieldTag contains the structured representation of a parsed `dto` struct tag.
type FieldTag struct {
	// Name is the wire-level field name. Empty means "derive from the Go name".
	Name string
	// ID marks the identifier field of the type.
	ID bool
	// Relation marks the field as a relationship to another described type.
	Relation bool
	// External is the logical type name of a relation owned by another system.
	// A non-empty External implies Relation.
	External string
	// ReadOnly marks a derived field that is never written back to an entity.
	ReadOnly bool
	// TypeID overrides the type identifier of the enclosing struct.
	TypeID string
	// Skip marks the field as ignored for mapping.
	Skip bool
}

// ParseTag parses the content of a `dto` struct tag into a FieldTag.
// It supports a leading name followed by the options id, rel, readonly,
// external=Name and type:id. A bare "-" ignores the field.
func ParseTag(tag string) (FieldTag, error) {
	if tag == "" || tag == "-" {
		return FieldTag{Skip: tag == "-"}, nil
	}

	parts := strings.Split(tag, ",")
	ft := FieldTag{}

	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		switch {
		case part == "id":
			ft.ID = true
		case part == "rel":
			ft.Relation = true
		case part == "readonly":
			ft.ReadOnly = true
		case part == "-":
			ft.Skip = true
		case strings.HasPrefix(part, "external="):
			ft.External = strings.TrimPrefix(part, "external=")
			if ft.External == "" {
				return FieldTag{}, fmt.Errorf("external relation requires a type name")
			}
			ft.Relation = true
		case strings.HasPrefix(part, "type:"):
			ft.TypeID = strings.TrimPrefix(part, "type:")
			if ft.TypeID == "" {
				return FieldTag{}, fmt.Errorf("type override requires a value")
			}
		default:
			if i == 0 && !strings.ContainsAny(part, "=:") {
				ft.Name = part
			} else {
				return FieldTag{}, fmt.Errorf("unknown tag option: %q", part)
			}
		}
	}

	if ft.ID && ft.Relation {
		return FieldTag{}, fmt.Errorf("identifier field cannot be a relation")
	}

	return ft, nil
}
