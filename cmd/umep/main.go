// Command umep runs the UMEP processing algorithms from the command line.
//
// Usage:
//
//	umep list
//	umep help suewsanalyzer
//	umep run suewsanalyzer -config run.yaml -p raster_dir=out -p variable=Tmrt
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/godeepar/umep/algorithm"
	"github.com/godeepar/umep/analyzer"
	"github.com/godeepar/umep/config"
	"github.com/godeepar/umep/observability"
	"github.com/godeepar/umep/prepare"
)

const usage = `usage: umep <command> [arguments]

commands:
  list                  list the algorithms
  help <algorithm>      describe an algorithm and its parameters
  run <algorithm>       run an algorithm, see "umep run -h"
`

var errUsage = errors.New("invalid usage")

// params collects repeated -p name=value flags.
type params []string

func (p *params) String() string { return strings.Join(*p, ",") }

func (p *params) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "umep: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}
	switch args[0] {
	case "list":
		return list(stdout, registry(config.Default(), nil))
	case "help":
		if len(args) != 2 {
			fmt.Fprint(stderr, usage)
			return errUsage
		}
		a, ok := registry(config.Default(), nil).Get(args[1])
		if !ok {
			return fmt.Errorf("unknown algorithm %q", args[1])
		}
		describe(stdout, a)
		return nil
	case "run":
		return runAlgorithm(ctx, args[1:], stdout, stderr)
	default:
		fmt.Fprint(stderr, usage)
		return errUsage
	}
}

func registry(cfg *config.Run, m *observability.Metrics) *algorithm.Registry {
	r, err := algorithm.NewRegistry(analyzer.New(m), prepare.New(cfg.TmpDir, m))
	if err != nil {
		// both names are fixed
		panic(err)
	}
	return r
}

func list(w io.Writer, r *algorithm.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tGROUP\tDESCRIPTION")
	for _, a := range r.List() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Name(), a.Group(), a.DisplayName())
	}
	return tw.Flush()
}

func describe(w io.Writer, a algorithm.Algorithm) {
	fmt.Fprintf(w, "%s (%s)\n\n%s\n\n%s\n\nparameters:\n", a.DisplayName(), a.Name(), a.ShortHelp(), a.HelpURL())
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, p := range a.Params() {
		var notes []string
		if p.Optional {
			notes = append(notes, "optional")
		}
		if p.Default != "" {
			notes = append(notes, "default "+p.Default)
		}
		if len(p.Options) > 0 {
			opts := make([]string, len(p.Options))
			for i, o := range p.Options {
				opts[i] = fmt.Sprintf("%d=%s", i, o)
			}
			notes = append(notes, "one of "+strings.Join(opts, ", "))
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", p.Name, p.Kind, p.Description, strings.Join(notes, "; "))
	}
	tw.Flush()
}

func runAlgorithm(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgFile := fs.String("config", "", "YAML run configuration")
	debug := fs.Bool("debug", false, "Turn on debugging output")
	var overrides params
	fs.Var(&overrides, "p", "Parameter as name=value, repeatable")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: umep run <algorithm> [-config run.yaml] [-debug] [-p name=value ...]")
		fs.PrintDefaults()
	}
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		fs.Usage()
		return errUsage
	}
	name := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return errUsage
	}

	cfg := config.Default()
	if *cfgFile != "" {
		var err error
		if cfg, err = config.Load(*cfgFile); err != nil {
			return err
		}
	}
	log, err := observability.NewLogger(*debug || cfg.Debug, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	metrics := observability.NewMetrics()
	reg := registry(cfg, metrics)
	a, ok := reg.Get(name)
	if !ok {
		return fmt.Errorf("unknown algorithm %q", name)
	}
	for _, other := range cfg.Algorithms() {
		if _, ok := reg.Get(other); !ok {
			log.Warnw("parameters for unknown algorithm ignored", "algorithm", other, "config", *cfgFile)
		}
	}
	raw, err := cfg.ParamsFor(name, overrides)
	if err != nil {
		return err
	}

	out, runErr := algorithm.NewRunner(log, metrics).Run(ctx, a, raw)
	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Errorw("writing metrics failed", "file", cfg.MetricsFile, "error", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(stdout, "%s=%s\n", k, out[k])
	}
	return nil
}
