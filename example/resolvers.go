package example

import (
	"context"
	"strings"

	"github.com/CaliLuke/go-dtograph/meta"
	"github.com/CaliLuke/go-dtograph/resolve"
)

// Resolvers returns the frozen resolver table of the domain:
//
//   - person.fullName is derived from the first and last name.
//   - person.email is trimmed and lower-cased on its way into the entity.
func Resolvers(reg *meta.Registry) (*resolve.Table, error) {
	t := resolve.NewTable(reg)
	err := resolve.Register[PersonDTO](t, "fullName", resolve.ToDTO,
		resolve.FromEntity(func(_ context.Context, p *Person) (any, error) {
			return strings.TrimSpace(p.FirstName + " " + p.LastName), nil
		}))
	if err != nil {
		return nil, err
	}
	err = resolve.Register[PersonDTO](t, "email", resolve.ToEntity,
		resolve.FromDTO(func(_ context.Context, d *PersonDTO) (any, error) {
			if d.Email == nil {
				return nil, nil
			}
			email := strings.ToLower(strings.TrimSpace(*d.Email))
			return &email, nil
		}))
	if err != nil {
		return nil, err
	}
	t.Freeze()
	return t, nil
}
