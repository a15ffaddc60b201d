package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Options controls the stack protection passes
type Options struct {
	// Enabled gates both pass variants; a disabled pass leaves modules untouched
	Enabled bool `yaml:"enabled"`

	// MoveInout allows rewriting in-out arguments and modify scopes through a
	// temporary when provenance cannot be decided. When false such functions
	// are conservatively protected instead.
	MoveInout bool `yaml:"move_inout"`

	// Verbosity is passed to commonlog.Configure by the CLI
	Verbosity int `yaml:"verbosity"`
}

// Default returns the options used when no config file is given
func Default() Options {
	return Options{
		Enabled:   true,
		MoveInout: true,
		Verbosity: 0,
	}
}

// Load reads options from a YAML file. Keys missing from the file keep their
// default values; unknown keys are rejected.
func Load(path string) (Options, error) {
	opts := Default()

	file, err := os.Open(path)
	if err != nil {
		return opts, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&opts); err != nil {
		if errors.Is(err, io.EOF) {
			return opts, nil
		}
		return opts, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if opts.Verbosity < -4 || opts.Verbosity > 4 {
		return opts, fmt.Errorf("invalid verbosity %d in %s: must be between -4 and 4", opts.Verbosity, path)
	}
	return opts, nil
}
