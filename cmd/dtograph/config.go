package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/CaliLuke/go-dtograph/store/sqlstore"
)

// config holds the command settings. A YAML file given with -config sets
// the baseline; flags on the command line override it.
type config struct {
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	Type    string `yaml:"type"`
	ID      string `yaml:"id"`
	Query   string `yaml:"query"`
	Format  string `yaml:"format"`
	Seed    bool   `yaml:"seed"`
	Verbose bool   `yaml:"verbose"`

	version bool
}

func defaultConfig() config {
	return config{
		Driver: sqlstore.DriverSQLite,
		DSN:    ":memory:",
		Type:   "department",
		ID:     "eng",
		Format: "json",
		Seed:   true,
	}
}

func newFlagSet(cfg *config, path *string, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("dtograph", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(path, "config", *path, "YAML config file; flags override its values")
	fs.StringVar(&cfg.Driver, "driver", cfg.Driver, "Database driver: sqlite, postgres or mysql")
	fs.StringVar(&cfg.DSN, "dsn", cfg.DSN, "Data source name")
	fs.StringVar(&cfg.Type, "type", cfg.Type, "Resource type: department, person or task")
	fs.StringVar(&cfg.ID, "id", cfg.ID, "Resource identifier")
	fs.StringVar(&cfg.Query, "query", cfg.Query, "Sparse fieldset / include query, e.g. include=members.tasks")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "Output format: json or msgpack (printed as hex)")
	fs.BoolVar(&cfg.Seed, "seed", cfg.Seed, "Seed the example data set before querying")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable debug logging")
	fs.BoolVar(&cfg.version, "version", false, "Print version and exit")
	return fs
}

// parseArgs parses args once to find -config, then again over the file
// values so explicit flags win.
func parseArgs(args []string, output io.Writer) (config, error) {
	cfg := defaultConfig()
	var path string
	if err := newFlagSet(&cfg, &path, output).Parse(args); err != nil {
		return config{}, err
	}
	if path == "" {
		return cfg, nil
	}

	fileCfg, err := loadConfig(path)
	if err != nil {
		return config{}, err
	}
	if err := newFlagSet(&fileCfg, &path, io.Discard).Parse(args); err != nil {
		return config{}, err
	}
	return fileCfg, nil
}

// loadConfig reads a YAML config over the defaults. Unknown keys are errors.
func loadConfig(path string) (config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := defaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
