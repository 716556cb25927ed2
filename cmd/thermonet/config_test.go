package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadRunConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
name = "district"
definition = "model.json"
network = "network.json"
output_dir = "exports"

[montecarlo]
runs = 40
section_runs = 10
section = 2
seed = 7
`)

	cfg, err := LoadRunConfig("cluster", []string{"-config", path})
	require.NoError(t, err)
	assert.Equal(t, "district", cfg.Name)
	assert.Equal(t, "network.json", cfg.Network)
	assert.Equal(t, "exports", cfg.OutputDir)
	assert.Equal(t, "thermonet.db", cfg.DBPath)
	assert.Equal(t, 40, cfg.MonteCarlo.Runs)
	assert.Equal(t, int64(7), cfg.MonteCarlo.Seed)
}

func TestLoadRunConfigFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
definition = "model.json"

[montecarlo]
runs = 40
section_runs = 10
section = 2
`)

	cfg, err := LoadRunConfig("vary", []string{"-section", "3", "-config", path, "-out", "variations"})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MonteCarlo.Section)
	assert.Equal(t, 40, cfg.MonteCarlo.Runs)
	assert.Equal(t, "variations", cfg.OutputDir)
}

func TestLoadRunConfigResultsFlags(t *testing.T) {
	cfg, err := LoadRunConfig("results", []string{"-components", "c.json", "-total-demand", "120.5", "-horizon", "8760"})
	require.NoError(t, err)
	assert.Equal(t, "c.json", cfg.Results.Components)
	assert.Equal(t, 120.5, cfg.Results.TotalDemand)
	assert.Equal(t, 8760, cfg.Results.Horizon)
	assert.Empty(t, cfg.Definition)
}

func TestLoadRunConfigRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "definition = \"model.json\"\nnetwrok = \"typo.json\"\n")

	_, err := LoadRunConfig("cluster", []string{"-config", path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "netwrok")
}

func TestLoadRunConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		command string
		args    []string
		wantErr string
	}{
		{"UnknownCommand", "plot", nil, "unknown command"},
		{"ClusterNeedsDefinition", "cluster", []string{"-network", "n.json"}, "definition path is required"},
		{"ClusterNeedsNetwork", "cluster", []string{"-definition", "m.json"}, "network path is required"},
		{"ResultsNeedsComponents", "results", nil, "components path is required"},
		{"NegativeDemand", "results", []string{"-components", "c.json", "-total-demand", "-1"}, "total demand cannot be negative"},
		{"ZeroRuns", "vary", []string{"-definition", "m.json", "-runs", "0"}, "runs must be positive"},
		{"ZeroSection", "vary", []string{"-definition", "m.json", "-section", "0"}, "section must be positive"},
		{"EmptyOutput", "vary", []string{"-definition", "m.json", "-out", ""}, "output dir cannot be empty"},
		{"MissingConfigFile", "cluster", []string{"-config", "/does/not/exist.toml"}, "failed to open run config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRunConfig(tt.command, tt.args)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "got %v", err)
		})
	}
}

func TestConfigFlag(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"-config", "a.toml"}, "a.toml"},
		{[]string{"-quiet", "--config=b.toml"}, "b.toml"},
		{[]string{"-name", "x", "-config", "c.toml", "-out", "o"}, "c.toml"},
		{[]string{"--", "-config", "d.toml"}, ""},
		{[]string{"config", "e.toml"}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, configFlag(tt.args), "args %v", tt.args)
	}
}
