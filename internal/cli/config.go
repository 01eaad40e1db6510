// Package cli holds the flag, config file and logging setup shared by the
// gz-* commands.
package cli

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAML decodes the YAML file at path into v. Unknown keys are an
// error; an empty file leaves v unchanged.
func LoadYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Parse fills cfg from args. register binds the command's flags to the
// fields of the config it is given. When -config names a YAML file, its
// values replace the defaults already in cfg and flags given explicitly
// on the command line are applied on top.
func Parse[T any](name string, args []string, cfg *T, register func(fs *flag.FlagSet, c *T)) (*flag.FlagSet, error) {
	var path string

	scratch := *cfg
	pre := flag.NewFlagSet(name, flag.ContinueOnError)
	pre.SetOutput(io.Discard)
	register(pre, &scratch)
	pre.StringVar(&path, "config", "", "")
	if err := pre.Parse(args); err != nil && !errors.Is(err, flag.ErrHelp) {
		return nil, err
	}

	if path != "" {
		if err := LoadYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	register(fs, cfg)
	fs.String("config", path, "YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return fs, err
	}
	return fs, nil
}
