package example

import (
	"context"

	"github.com/CaliLuke/go-dtograph/store/sqlstore"
)

// Seed upserts a small fixed data set:
//
//	eng (head ada): ada [t1, t2], grace [t3]
//	ops:            linus
//	no department:  ken
func Seed(ctx context.Context, s *sqlstore.Store) error {
	return s.InTx(ctx, func(sess *sqlstore.Session) error {
		eng := &Department{ID: "eng", Name: "Engineering"}
		ops := &Department{ID: "ops", Name: "Operations"}
		for _, d := range []*Department{eng, ops} {
			if err := sess.Merge(ctx, d); err != nil {
				return err
			}
		}

		ada := &Person{ID: "ada", FirstName: "Ada", LastName: "Lovelace",
			Email: strPtr("ada@example.com"), Department: eng, Account: strPtr("acct-100")}
		grace := &Person{ID: "grace", FirstName: "Grace", LastName: "Hopper",
			Email: strPtr("grace@example.com"), Department: eng}
		linus := &Person{ID: "linus", FirstName: "Linus", LastName: "Torvalds", Department: ops}
		ken := &Person{ID: "ken", FirstName: "Ken", LastName: "Thompson"}
		for _, p := range []*Person{ada, grace, linus, ken} {
			if err := sess.Merge(ctx, p); err != nil {
				return err
			}
		}

		for _, t := range []*Task{
			{ID: "t1", Title: "Analytical engine notes", Done: true, Owner: ada},
			{ID: "t2", Title: "Bernoulli numbers", Owner: ada},
			{ID: "t3", Title: "Compiler", Owner: grace},
		} {
			if err := sess.Merge(ctx, t); err != nil {
				return err
			}
		}

		eng.Head = ada
		return sess.Merge(ctx, eng)
	})
}

func strPtr(s string) *string { return &s }
