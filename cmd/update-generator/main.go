package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	. "github.com/warpfork/go-errcat"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/Maheshkerai/update-generator"
	"github.com/Maheshkerai/update-generator/config"
	"github.com/Maheshkerai/update-generator/generator"
	"github.com/Maheshkerai/update-generator/metrics"
)

/*
	Output serialization formats
*/
const (
	FmtJson  = "json"
	FmtTable = "table"
)

type baseCLI struct {
	ConfigPath  string // Config file (yaml, toml, or json)
	Format      string // Output format, table or json
	Verbose     bool   // Debug logging
	GenerateCLI struct {
		StartDate      string
		EndDate        string
		CurrentVersion string
		UpdateVersion  string
		Type           string // update, new, or both
	}
	InspectCLI struct {
		Archive string
	}
}

func configureGenerate(cli *baseCLI, appGenerate *kingpin.CmdClause) {
	appGenerate.Flag("start_date", "Start date (YYYY-MM-DD)").
		StringVar(&cli.GenerateCLI.StartDate)
	appGenerate.Flag("end_date", "End date (YYYY-MM-DD)").
		StringVar(&cli.GenerateCLI.EndDate)
	appGenerate.Flag("current_version", "Current version").
		StringVar(&cli.GenerateCLI.CurrentVersion)
	appGenerate.Flag("update_version", "New version").
		StringVar(&cli.GenerateCLI.UpdateVersion)
	// Not an enum flag: a bad type is a validation error with its own
	// message and exit code, not a usage error.
	appGenerate.Flag("type", "Type of package to generate [update, new, both]").
		Default(string(updategen.PackageType_Both)).
		StringVar(&cli.GenerateCLI.Type)
}

func configureInspect(cli *baseCLI, appInspect *kingpin.CmdClause) {
	appInspect.Arg("archive", "Archive to inspect").
		Required().
		StringVar(&cli.InspectCLI.Archive)
}

/*
	Blocks until a sigint is received, then calls cancel.
*/
func CancelOnInterrupt(ctx context.Context, cancel context.CancelFunc) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	defer signal.Stop(signalChan)
	select {
	case <-signalChan:
		cancel()
	case <-ctx.Done():
	}
}

func main() {
	ctx := context.Background()
	exitCode := Main(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	os.Exit(int(exitCode))
}

func Main(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) updategen.ExitCode {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go CancelOnInterrupt(ctx, cancel)

	cli := baseCLI{}

	app := kingpin.New("update-generator", "Generate update and installation packages for a project")
	app.HelpFlag.Short('h')

	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)

	app.Flag("config", "Config file (.yaml, .toml, or .json)").
		Short('c').
		StringVar(&cli.ConfigPath)
	app.Flag("format", "Output format").
		Default(FmtTable).
		EnumVar(&cli.Format, FmtTable, FmtJson)
	app.Flag("verbose", "Log debug detail").
		Short('v').
		BoolVar(&cli.Verbose)

	appGenerate := app.Command("generate", "generate update and/or installation packages")
	configureGenerate(&cli, appGenerate)

	appInspect := app.Command("inspect", "list an archive's entries and decode its version info")
	configureInspect(&cli, appInspect)

	var termErr error
	app.Terminate(func(status int) {
		termErr = fmt.Errorf("parsing error: %d", status)
	})
	cmd, err := app.Parse(args[1:])
	if err != nil {
		fmt.Fprintln(stderr, err)
		return updategen.ExitValidation
	}
	if termErr != nil {
		// --help and friends; kingpin already printed what was asked for.
		return updategen.ExitSuccess
	}

	switch cmd {
	case appGenerate.FullCommand():
		artifacts, outputDir, err := executeGenerate(ctx, cli, stderr)
		SerializeGenerateResult(cli.Format, artifacts, outputDir, err, stdout, stderr)
		return updategen.ExitCodeForError(err)
	case appInspect.FullCommand():
		inspection, err := executeInspect(cli.InspectCLI.Archive)
		SerializeInspectResult(cli.Format, inspection, err, stdout, stderr)
		return updategen.ExitCodeForError(err)
	default:
		panic(fmt.Errorf("update-generator: unhandled command %q", cmd))
	}
}

func newLogger(cfg config.Config, verbose bool, stderr io.Writer) *log.Logger {
	if !cfg.EnableLogging {
		return log.New(io.Discard)
	}
	logger := log.NewWithOptions(stderr, log.Options{
		Prefix:          "update-generator",
		ReportTimestamp: true,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// validateGenerateInputs applies the per-type required-input rules.
func validateGenerateInputs(cli baseCLI) (updategen.PackageType, error) {
	in := cli.GenerateCLI
	kind := updategen.PackageType(in.Type)
	switch kind {
	case updategen.PackageType_Update, updategen.PackageType_Installation, updategen.PackageType_Both:
	default:
		return "", Errorf(updategen.ErrValidation, "invalid type: %s. Use 'update', 'new', or 'both'", in.Type)
	}
	if kind != updategen.PackageType_Installation {
		switch {
		case in.StartDate == "":
			return "", Errorf(updategen.ErrValidation, "start date is required for update packages")
		case in.EndDate == "":
			return "", Errorf(updategen.ErrValidation, "end date is required for update packages")
		case in.CurrentVersion == "":
			return "", Errorf(updategen.ErrValidation, "current version is required for update packages")
		}
	}
	if in.UpdateVersion == "" {
		return "", Errorf(updategen.ErrValidation, "update version is required")
	}
	return kind, nil
}

func executeGenerate(ctx context.Context, cli baseCLI, stderr io.Writer) (_ []updategen.Artifact, outputDir string, err error) {
	kind, err := validateGenerateInputs(cli)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(cli.ConfigPath)
	if err != nil {
		return nil, "", err
	}
	logger := newLogger(cfg, cli.Verbose, stderr)

	var recorder metrics.Recorder = metrics.Noop{}
	var prom *metrics.Prom
	if cfg.MetricsTextfile != "" {
		prom = metrics.NewProm()
		recorder = prom
	}
	gen, err := generator.New(ctx, cfg,
		generator.WithLogger(logger),
		generator.WithMetrics(recorder),
	)
	if err != nil {
		return nil, "", err
	}
	in := cli.GenerateCLI
	artifacts, err := gen.Generate(ctx, kind, in.StartDate, in.EndDate, in.CurrentVersion, in.UpdateVersion)
	if prom != nil {
		if werr := prom.WriteTextfile(cfg.MetricsTextfile); werr != nil {
			logger.Warn("cannot write metrics", "err", werr)
		}
	}
	return artifacts, gen.OutputDir(), err
}
