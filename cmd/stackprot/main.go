// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/fatih/color"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"stackprot/internal/config"
	"stackprot/internal/errors"
	"stackprot/internal/ir"
	"stackprot/internal/stacknesting"
	"stackprot/internal/stackprotect"
)

var version = "0.0.1"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "stackprot"
	app.Usage = "decide which functions of an IR module need a stack protector"
	app.UsageText = "stackprot [options] FILE..."
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "load pass options from a YAML `FILE`"},
		cli.BoolFlag{Name: "disable", Usage: "do not run the stack protection pass"},
		cli.BoolFlag{Name: "no-move-inout", Usage: "never move accesses to stack temporaries"},
		cli.BoolFlag{Name: "function-pass", Usage: "look at one function at a time"},
		cli.BoolFlag{Name: "verify", Usage: "check stack allocation nesting after the pass"},
		cli.IntFlag{Name: "verbose, v", Usage: "log verbosity from -4 to 4"},
	}
	app.Action = run
	return app
}

func loadOptions(c *cli.Context) (config.Options, error) {
	opts := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if opts, err = config.Load(path); err != nil {
			return opts, err
		}
	}
	if c.Bool("disable") {
		opts.Enabled = false
	}
	if c.Bool("no-move-inout") {
		opts.MoveInout = false
	}
	if c.IsSet("verbose") {
		opts.Verbosity = c.Int("verbose")
	}
	return opts, nil
}

// result is the outcome of processing one file
type result struct {
	path      string
	source    string
	diags     []errors.CompilerError
	module    *ir.Module
	report    *stackprotect.Report
	err       error
	duration  time.Duration
	protected []string
}

func run(c *cli.Context) error {
	if c.NArg() == 0 {
		_ = cli.ShowAppHelp(c)
		return fmt.Errorf("no input files")
	}

	opts, err := loadOptions(c)
	if err != nil {
		return err
	}
	commonlog.Configure(opts.Verbosity, nil)

	functionPass, verify := c.Bool("function-pass"), c.Bool("verify")
	results, err := processAll(c.Args(), func(path string) (*result, error) {
		return processFile(path, opts, functionPass, verify), nil
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if !printResult(c.App.Writer, r) {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

// processAll runs process over paths concurrently. Results keep the order of
// paths. A panic while processing a file is returned as an error.
func processAll(paths []string, process func(string) (*result, error)) ([]*result, error) {
	results := make([]*result, len(paths))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("%s: panic: %v", path, p)
				}
			}()
			results[i], err = process(path)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func processFile(path string, opts config.Options, functionPass, verify bool) *result {
	start := time.Now()
	r := &result{path: path}
	defer func() { r.duration = time.Since(start) }()

	source, err := os.ReadFile(path)
	if err != nil {
		r.err = fmt.Errorf("failed to read file: %w", err)
		return r
	}
	r.source = string(source)

	module, diags := ir.ParseModule(path, r.source)
	r.diags = diags
	if module == nil || errors.HasErrors(diags) {
		return r
	}
	r.module = module

	pass := stackprotect.NewModulePass(opts)
	if functionPass {
		pass = stackprotect.NewFunctionPass(opts)
	}
	pipeline := ir.NewPipeline()
	pipeline.AddPass(&ir.UnreachableBlockElimination{})
	pipeline.AddPass(pass)
	pipeline.Run(module)
	r.report = pass.Report()

	for _, fn := range module.Functions {
		if fn.NeedsStackProtection() {
			r.protected = append(r.protected, fn.Name)
		}
		if verify {
			if err := stacknesting.Check(fn); err != nil {
				r.err = fmt.Errorf("verification failed: %w", err)
				return r
			}
		}
	}
	return r
}

// printResult writes the diagnostics, the transformed module and a summary.
// It reports whether the file was processed successfully.
func printResult(w io.Writer, r *result) bool {
	reporter := errors.NewErrorReporter(r.path, r.source)
	for _, d := range r.diags {
		fmt.Fprint(w, reporter.FormatError(d))
	}

	if r.err != nil {
		fmt.Fprintf(w, "%s: %s: %s\n", color.RedString("error"), r.path, r.err)
		return false
	}
	if r.module == nil {
		fmt.Fprintln(w, color.RedString("Processing %s failed after %s", r.path, formatDuration(r.duration)))
		return false
	}

	fmt.Fprint(w, ir.Print(r.module))
	fmt.Fprintln(w)
	fmt.Fprintln(w, color.GreenString("Processed %s in %s: %d of %d functions need stack protection",
		r.path, formatDuration(r.duration), len(r.protected), len(r.module.Functions)))
	for _, name := range r.protected {
		fmt.Fprintf(w, "  %s @%s\n", color.YellowString("protected"), name)
	}
	if r.report != nil {
		moved := r.report.Count(stackprotect.DecisionMovedScope) + r.report.Count(stackprotect.DecisionMovedArgument)
		if moved > 0 {
			fmt.Fprintf(w, "  %s %d accesses to stack temporaries\n", color.CyanString("moved"), moved)
		}
	}
	return true
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return fmt.Sprintf("%.2fmin", d.Minutes())
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1000000.0)
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fμs", float64(d.Nanoseconds())/1000.0)
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}
