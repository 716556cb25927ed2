package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/cheggaaa/pb.v1"

	"github.com/rmax-ai/thermonet/pkg/artifact"
	"github.com/rmax-ai/thermonet/pkg/engine"
	"github.com/rmax-ai/thermonet/pkg/model"
	"github.com/rmax-ai/thermonet/pkg/montecarlo"
	"github.com/rmax-ai/thermonet/pkg/results"
	"github.com/rmax-ai/thermonet/pkg/store"
)

var (
	Version   = "v1.0.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const usage = `Usage: thermonet <command> [flags]

Commands:
  cluster   Cluster the consumers of every active street and export the network
  results   Aggregate optimisation results into summary and flow tables
  vary      Draw Monte Carlo variations of a model definition
  version   Print version information

Run 'thermonet <command> -h' for the flags of a command.`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "version" {
		fmt.Printf("thermonet %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		return
	}

	cfg, err := LoadRunConfig(command, os.Args[2:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ctx := context.Background()
	switch command {
	case "cluster":
		err = runCluster(ctx, cfg, logger)
	case "results":
		err = runResults(ctx, cfg, logger)
	case "vary":
		err = runVary(cfg, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, prometheus.DefaultGatherer); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing metrics: %v\n", err)
			os.Exit(1)
		}
	}
}

func openStore(cfg RunConfig) (*store.Store, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db dir: %w", err)
		}
	}
	return store.NewStore(cfg.DBPath)
}

func runCluster(ctx context.Context, cfg RunConfig, logger *slog.Logger) error {
	def, err := model.Load(cfg.Definition)
	if err != nil {
		return err
	}
	net, err := model.LoadNetwork(cfg.Network)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	active := 0
	for _, s := range def.Streets {
		if s.Active {
			active++
		}
	}
	var bar *pb.ProgressBar
	opts := engine.Options{
		Artifacts: artifact.NewLocalStore(cfg.OutputDir),
		Logger:    logger,
	}
	if !cfg.Quiet && active > 0 {
		bar = pb.New(active)
		bar.Output = os.Stderr
		bar.Prefix("streets ")
		bar.Start()
		opts.Progress = func(string) { bar.Increment() }
	}

	out, err := engine.New(st, opts).Cluster(ctx, engine.ClusterRequest{
		Name:       cfg.Name,
		Definition: def,
		Network:    net.Snapshot(),
	})
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	if !cfg.Quiet {
		fmt.Println(clusterTable(out))
	}
	fmt.Printf("run %s written to %s\n", out.Run.RunID, filepath.Join(cfg.OutputDir, artifact.RunKey(out.Run.RunID, "")))
	return nil
}

func runResults(ctx context.Context, cfg RunConfig, logger *slog.Logger) error {
	data, err := os.ReadFile(cfg.Results.Components)
	if err != nil {
		return fmt.Errorf("failed to read components: %w", err)
	}
	var components []results.Component
	if err := json.Unmarshal(data, &components); err != nil {
		return fmt.Errorf("%s: %w", cfg.Results.Components, err)
	}

	rc := results.Context{Horizon: cfg.Results.Horizon}
	if cfg.Definition != "" {
		def, err := model.Load(cfg.Definition)
		if err != nil {
			return err
		}
		rc.SourceLabels = def.SourceLabels()
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	out, err := engine.New(st, engine.Options{
		Artifacts: artifact.NewLocalStore(cfg.OutputDir),
		Logger:    logger,
	}).Results(ctx, engine.ResultsRequest{
		Name:        cfg.Name,
		Components:  components,
		TotalDemand: cfg.Results.TotalDemand,
		Context:     rc,
	})
	if err != nil {
		return err
	}

	if !cfg.Quiet {
		fmt.Println(summaryTable(out.Result))
	}
	fmt.Printf("run %s written to %s\n", out.Run.RunID, filepath.Join(cfg.OutputDir, artifact.RunKey(out.Run.RunID, "")))
	return nil
}

func runVary(cfg RunConfig, logger *slog.Logger) error {
	def, err := model.Load(cfg.Definition)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	variations := montecarlo.Generate(def, cfg.MonteCarlo, logger)
	for _, v := range variations {
		path := filepath.Join(cfg.OutputDir, fmt.Sprintf("variation_%d.json", v.Run))
		if err := writeDefinition(path, v.Definition); err != nil {
			return err
		}
	}
	if !cfg.Quiet {
		fmt.Println(variationTable(variations))
	}
	fmt.Printf("%d variations written to %s\n", len(variations), cfg.OutputDir)
	return nil
}

func writeDefinition(path string, def *model.Definition) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := def.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
