// Command gz-log inspects the protocol logs written by gz-subscribe and
// gz-publish when they run with -protocol-log.
//
//	gz-log view --category control --topic /gazebo/world/pose sub.glog
//	gz-log export --format csv --endpoint 3 sub.glog
//	gz-log stats sub.glog
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muskanmahajan37/gazebo/cmd/gz-log/commands"
)

type command struct {
	name     string
	synopsis string
	filters  bool
	run      func(fs *flag.FlagSet, opts commands.FilterOptions) func(path string) error
}

var table = []command{
	{
		name: "view", synopsis: "print events in human-readable form", filters: true,
		run: func(_ *flag.FlagSet, opts commands.FilterOptions) func(string) error {
			return func(path string) error { return commands.RunView(path, opts, os.Stdout) }
		},
	},
	{
		name: "export", synopsis: "write events as jsonl or csv", filters: true,
		run: func(fs *flag.FlagSet, opts commands.FilterOptions) func(string) error {
			format := fs.Lookup("format").Value.String()
			output := fs.Lookup("o").Value.String()
			return func(path string) error {
				var w io.Writer = os.Stdout
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				return commands.RunExport(path, format, opts, w)
			}
		},
	},
	{
		name: "filter", synopsis: "copy matching events into a new log", filters: true,
		run: func(fs *flag.FlagSet, opts commands.FilterOptions) func(string) error {
			output := fs.Lookup("o").Value.String()
			return func(path string) error {
				if output == "" {
					return errors.New("output file (-o) required")
				}
				n, err := commands.RunFilter(path, output, opts)
				if err != nil {
					return err
				}
				fmt.Printf("Filtered %d events to %s\n", n, output)
				return nil
			}
		},
	},
	{
		name: "stats", synopsis: "summarize connections, topics and errors",
		run: func(*flag.FlagSet, commands.FilterOptions) func(string) error {
			return func(path string) error { return commands.RunStats(path, os.Stdout) }
		},
	},
}

func usage(w io.Writer) {
	fmt.Fprint(w, "gz-log - topic transport log analyzer\n\nUsage:\n  gz-log <command> [flags] <file.glog>\n\nCommands:\n")
	for _, c := range table {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.synopsis)
	}
	fmt.Fprint(w, "\nRun \"gz-log <command> -help\" for the flags of a command.\n")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	name := strings.TrimLeft(os.Args[1], "-")
	if name == "h" || name == "help" {
		usage(os.Stdout)
		return
	}

	for _, c := range table {
		if c.name == name {
			if err := run(c, os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "gz-log %s: %v\n", c.name, err)
				os.Exit(1)
			}
			return
		}
	}
	fmt.Fprintf(os.Stderr, "gz-log: unknown command %q\n\n", os.Args[1])
	usage(os.Stderr)
	os.Exit(2)
}

func run(c command, args []string) error {
	fs := flag.NewFlagSet(c.name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "gz-log %s - %s\n\nUsage:\n  gz-log %s [flags] <file.glog>\n\nFlags:\n", c.name, c.synopsis, c.name)
		fs.PrintDefaults()
	}

	var opts commands.FilterOptions
	if c.filters {
		fs.StringVar(&opts.ConnID, "conn-id", "", "only events of this connection ID")
		fs.StringVar(&opts.Topic, "topic", "", "only events of this topic")
		fs.StringVar(&opts.Endpoint, "endpoint", "", "only events of this subscription endpoint id")
		fs.StringVar(&opts.TimeStart, "time-start", "", "only events at or after this time (RFC3339)")
		fs.StringVar(&opts.TimeEnd, "time-end", "", "only events before this time (RFC3339)")
		fs.StringVar(&opts.Layer, "layer", "", "only this layer (transport, wire, subscription)")
		fs.StringVar(&opts.Direction, "direction", "", "only this direction (in, out)")
		fs.StringVar(&opts.Category, "category", "", "only this category (message, control, state, error)")
	}
	switch c.name {
	case "export":
		fs.String("format", "jsonl", "output format (jsonl, csv)")
		fs.String("o", "", "output file (default stdout)")
	case "filter":
		fs.String("o", "", "output file (required)")
	}

	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("exactly one log file path required")
	}
	return c.run(fs, opts)(fs.Arg(0))
}
