package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/rmax-ai/thermonet/pkg/network"
)

var (
	// ErrNotFound is returned when a definition file does not exist.
	ErrNotFound = errors.New("model definition not found")
	// ErrSchema is returned when a definition does not match the schema.
	ErrSchema = errors.New("model definition schema mismatch")
)

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func decodeStrict(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

// Load reads a model definition from a JSON file.
func Load(path string) (*Definition, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	def, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Decode reads and validates a model definition.
func Decode(r io.Reader) (*Definition, error) {
	var def Definition
	if err := decodeStrict(r, &def); err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks label uniqueness and street geometry.
func (d *Definition) Validate() error {
	seen := make(map[string]struct{}, len(d.Streets))
	for i, s := range d.Streets {
		if s.Label == "" {
			return fmt.Errorf("%w: street %d has no label", ErrSchema, i)
		}
		if _, dup := seen[s.Label]; dup {
			return fmt.Errorf("%w: duplicate street %s", ErrSchema, s.Label)
		}
		seen[s.Label] = struct{}{}
		if len(s.Points) == 1 {
			return fmt.Errorf("%w: street %s needs at least two points", ErrSchema, s.Label)
		}
	}
	buses := make(map[string]struct{}, len(d.Buses))
	for _, b := range d.Buses {
		if _, dup := buses[b.Label]; dup {
			return fmt.Errorf("%w: duplicate bus %s", ErrSchema, b.Label)
		}
		buses[b.Label] = struct{}{}
	}
	return nil
}

// Save writes the definition as indented JSON.
func (d *Definition) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// LoadNetwork reads an unclustered network snapshot from a JSON file.
func LoadNetwork(path string) (*network.Network, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var snap network.Snapshot
	if err := decodeStrict(bytes.NewReader(data), &snap); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	n := network.FromSnapshot(snap)
	if err := n.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}
