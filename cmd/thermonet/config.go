package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/rmax-ai/thermonet/pkg/montecarlo"
)

// RunConfig is the TOML run configuration shared by all subcommands.
// Flags given on the command line override values read from the file.
type RunConfig struct {
	Name        string `toml:"name"`
	DBPath      string `toml:"db_path"`
	OutputDir   string `toml:"output_dir"`
	Definition  string `toml:"definition"`
	Network     string `toml:"network"`
	MetricsFile string `toml:"metrics_file"`
	Quiet       bool   `toml:"quiet"`

	Results    ResultsConfig     `toml:"results"`
	MonteCarlo montecarlo.Config `toml:"montecarlo"`
}

// ResultsConfig locates the optimisation outputs of a results run.
type ResultsConfig struct {
	Components  string  `toml:"components"`
	TotalDemand float64 `toml:"total_demand"`
	Horizon     int     `toml:"horizon"`
}

func defaultRunConfig() RunConfig {
	return RunConfig{
		DBPath:    "thermonet.db",
		OutputDir: "out",
		MonteCarlo: montecarlo.Config{
			Runs:        1,
			SectionRuns: 1,
			Section:     1,
		},
	}
}

// decodeRunConfig reads TOML into cfg, keeping defaults for absent keys.
func decodeRunConfig(r io.Reader, cfg *RunConfig) error {
	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return fmt.Errorf("invalid run config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("invalid run config: unknown key %s", undecoded[0])
	}
	return nil
}

// configFlag finds the value of -config anywhere in args.
func configFlag(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue
		}
		if value, ok := strings.CutPrefix(name, "config="); ok {
			return value
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// LoadRunConfig parses args for the named subcommand. A -config file is
// read first so that explicit flags win.
func LoadRunConfig(command string, args []string) (RunConfig, error) {
	cfg := defaultRunConfig()

	configPath := configFlag(args)
	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return RunConfig{}, fmt.Errorf("failed to open run config: %w", err)
		}
		err = decodeRunConfig(f, &cfg)
		f.Close()
		if err != nil {
			return RunConfig{}, err
		}
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.String("config", configPath, "Path to TOML run configuration")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "Run name")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite run database")
	fs.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "Directory exported files are written to")
	fs.StringVar(&cfg.Definition, "definition", cfg.Definition, "Path to model definition JSON")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Write Prometheus metrics to this textfile on exit")
	fs.BoolVar(&cfg.Quiet, "quiet", cfg.Quiet, "Suppress progress and tables")

	switch command {
	case "cluster":
		fs.StringVar(&cfg.Network, "network", cfg.Network, "Path to unclustered network JSON")
	case "results":
		fs.StringVar(&cfg.Results.Components, "components", cfg.Results.Components, "Path to component results JSON")
		fs.Float64Var(&cfg.Results.TotalDemand, "total-demand", cfg.Results.TotalDemand, "Total heat demand before insulation")
		fs.IntVar(&cfg.Results.Horizon, "horizon", cfg.Results.Horizon, "Required series length (0 disables the check)")
	case "vary":
		fs.IntVar(&cfg.MonteCarlo.Runs, "runs", cfg.MonteCarlo.Runs, "Total Monte Carlo runs")
		fs.IntVar(&cfg.MonteCarlo.SectionRuns, "section-runs", cfg.MonteCarlo.SectionRuns, "Runs per section")
		fs.IntVar(&cfg.MonteCarlo.Section, "section", cfg.MonteCarlo.Section, "1-based section to emit")
		fs.Int64Var(&cfg.MonteCarlo.Seed, "seed", cfg.MonteCarlo.Seed, "Random seed (0 picks one)")
	default:
		return RunConfig{}, fmt.Errorf("unknown command %q", command)
	}

	if err := fs.Parse(args); err != nil {
		return RunConfig{}, err
	}
	if err := cfg.Validate(command); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

// Validate checks the settings the named subcommand needs.
func (c RunConfig) Validate(command string) error {
	if c.Definition == "" && command != "results" {
		return errors.New("definition path is required")
	}
	if c.OutputDir == "" {
		return errors.New("output dir cannot be empty")
	}
	switch command {
	case "cluster":
		if c.Network == "" {
			return errors.New("network path is required")
		}
		if c.DBPath == "" {
			return errors.New("db path cannot be empty")
		}
	case "results":
		if c.Results.Components == "" {
			return errors.New("components path is required")
		}
		if c.Results.TotalDemand < 0 {
			return errors.New("total demand cannot be negative")
		}
		if c.Results.Horizon < 0 {
			return errors.New("horizon cannot be negative")
		}
		if c.DBPath == "" {
			return errors.New("db path cannot be empty")
		}
	case "vary":
		mc := c.MonteCarlo
		if mc.Runs <= 0 {
			return errors.New("runs must be positive")
		}
		if mc.SectionRuns <= 0 {
			return errors.New("section runs must be positive")
		}
		if mc.Section <= 0 {
			return errors.New("section must be positive")
		}
	}
	return nil
}
