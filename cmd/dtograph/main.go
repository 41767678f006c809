// dtograph materializes one resource of the example staffing domain under a
// sparse fieldset / include query and prints it as a wire document.
//
// Usage:
//
//	dtograph -type department -id eng [-query 'include=members.tasks'] [-format json|msgpack]
//	dtograph -dsn staff.db -type person -id ada -query 'fields[person]=fullName,email'
//	dtograph -config dtograph.yaml -format msgpack
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"reflect"

	"go.uber.org/zap"

	"github.com/CaliLuke/go-dtograph/example"
	"github.com/CaliLuke/go-dtograph/meta"
	"github.com/CaliLuke/go-dtograph/query"
	"github.com/CaliLuke/go-dtograph/selection"
	"github.com/CaliLuke/go-dtograph/service"
	"github.com/CaliLuke/go-dtograph/store/sqlstore"
	"github.com/CaliLuke/go-dtograph/wire"
)

const version = "0.1.0"

func main() {
	cfg, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	if cfg.version {
		fmt.Printf("dtograph %s\n", version)
		os.Exit(0)
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), logger, cfg, os.Stdout); err != nil {
		logger.Error("dtograph failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func run(ctx context.Context, logger *zap.Logger, cfg config, out io.Writer) error {
	codec, err := wire.CodecFor(cfg.Format)
	if err != nil {
		return err
	}

	reg := meta.NewRegistry()
	s, err := example.OpenStore(ctx, cfg.Driver, cfg.DSN,
		sqlstore.WithRegistry(reg), sqlstore.WithLogger(logger.Named("sql")))
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if cfg.Seed {
		if err := example.Seed(ctx, s); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	svc, err := example.NewServices(reg, s, logger)
	if err != nil {
		return err
	}

	var (
		dto  any
		spec *selection.Spec
	)
	switch cfg.Type {
	case "department":
		dto, spec, err = get(ctx, reg, svc.Departments, cfg)
	case "person":
		dto, spec, err = get(ctx, reg, svc.People, cfg)
	case "task":
		dto, spec, err = get(ctx, reg, svc.Tasks, cfg)
	default:
		return fmt.Errorf("unknown type %q", cfg.Type)
	}
	if err != nil {
		return err
	}

	doc, err := wire.Project(reg, dto, spec)
	if err != nil {
		return err
	}
	logger.Info("materialized",
		zap.String("type", cfg.Type), zap.String("id", cfg.ID), zap.Int("included", len(doc.Included)))

	if _, ok := codec.(wire.Msgpack); ok {
		b, err := wire.Marshal(codec, doc)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, hex.EncodeToString(b))
		return err
	}
	return codec.Encode(out, doc)
}

func get[E, D any](ctx context.Context, reg *meta.Registry, r *service.Resource[E, D], cfg config) (any, *selection.Spec, error) {
	spec, err := query.Resolve(reg, reflect.TypeOf((*D)(nil)).Elem(), cfg.Query)
	if err != nil {
		return nil, nil, err
	}
	dto, err := r.Get(ctx, cfg.ID, spec)
	if err != nil {
		return nil, nil, err
	}
	return dto, spec, nil
}
