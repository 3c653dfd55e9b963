package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/parade-allocator/internal/application"
	"github.com/eugenenazirov/parade-allocator/internal/config"
	"github.com/eugenenazirov/parade-allocator/internal/formation"
	"github.com/eugenenazirov/parade-allocator/internal/logging"
	"github.com/eugenenazirov/parade-allocator/internal/parade"
	"github.com/eugenenazirov/parade-allocator/internal/progress"
	"github.com/eugenenazirov/parade-allocator/internal/report"
)

// Exit codes.
const (
	exitOK         = 0
	exitFailure    = 1
	exitInfeasible = 2
)

var (
	signalNotify = signal.Notify
	now          = time.Now
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type solveFlags struct {
	configFile *string
	outputDir  *string
	xlsx       *bool
	timeLimit  *float64
	solver     *string
	groups     *string
	capacity   *int
	rowSize    *int
	quiet      *bool
	logLevel   *string
}

type drawFlags struct {
	configFile  *string
	input       *string
	positions   *string
	output      *string
	pdf         *string
	columnWidth *int
	title       *string
}

type serveFlags struct {
	configFile     *string
	port           *string
	rateLimitRPS   *float64
	rateLimitBurst *int
	groups         *string
}

func run(args []string, stdout, stderr io.Writer) int {
	app := kingpin.New("parade", "Parade contingent allocator - packs groups into fixed-capacity contingents and draws the formation")
	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)
	app.Terminate(nil)

	solveCmd := app.Command("solve", "Allocate the configured groups to contingents")
	solve := solveFlags{
		configFile: solveCmd.Flag("config", "Path to YAML or TOML configuration file").String(),
		outputDir:  solveCmd.Flag("output-dir", "Directory receiving the result files").String(),
		xlsx:       solveCmd.Flag("xlsx", "Also write an XLSX workbook").Bool(),
		timeLimit:  solveCmd.Flag("time-limit", "Solver time limit in seconds").Default("-1").Float64(),
		solver:     solveCmd.Flag("solver", "LP relaxation backend (simplex)").String(),
		groups:     solveCmd.Flag("groups", "Comma-separated name:size[:avoid] groups").String(),
		capacity:   solveCmd.Flag("capacity", "Contingent capacity").Default("-1").Int(),
		rowSize:    solveCmd.Flag("row-size", "Seats per contingent row").Default("-1").Int(),
		quiet:      solveCmd.Flag("quiet", "Suppress the progress line").Bool(),
		logLevel:   solveCmd.Flag("log-level", "Minimum log level").Default("warn").Enum("debug", "info", "warn", "error"),
	}

	drawCmd := app.Command("draw", "Draw the formation of a result CSV")
	draw := drawFlags{
		configFile:  drawCmd.Flag("config", "Path to YAML or TOML configuration file").String(),
		input:       drawCmd.Flag("input", "Result CSV written by solve").Required().String(),
		positions:   drawCmd.Flag("positions", "Position map, e.g. 1:6,8:5").String(),
		output:      drawCmd.Flag("output", "Write the formation text to this file instead of stdout").String(),
		pdf:         drawCmd.Flag("pdf", "Also render the formation to this PDF file").String(),
		columnWidth: drawCmd.Flag("column-width", "Width each diagram is justified to").Default("-1").Int(),
		title:       drawCmd.Flag("title", "PDF title").Default("Parade formation").String(),
	}

	serveCmd := app.Command("serve", "Run the HTTP API")
	serve := serveFlags{
		configFile:     serveCmd.Flag("config", "Path to YAML or TOML configuration file").String(),
		port:           serveCmd.Flag("port", "HTTP port exposed by the service").String(),
		rateLimitRPS:   serveCmd.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64(),
		rateLimitBurst: serveCmd.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int(),
		groups:         serveCmd.Flag("groups", "Initial roster as comma-separated name:size[:avoid] groups").String(),
	}

	command, err := app.Parse(args)
	if err != nil {
		progress.Failure(stderr, "%v", err)
		return exitFailure
	}

	switch command {
	case solveCmd.FullCommand():
		return runSolve(solve, stdout, stderr)
	case drawCmd.FullCommand():
		return runDraw(draw, stdout, stderr)
	case serveCmd.FullCommand():
		return runServe(serve, stderr)
	}
	return exitFailure
}

func runSolve(flags solveFlags, stdout, stderr io.Writer) int {
	overrides := &config.CLIOverrides{
		ConfigFile: *flags.configFile,
		OutputDir:  flags.outputDir,
		Solver:     flags.solver,
		GroupsStr:  flags.groups,
	}
	if *flags.timeLimit >= 0 {
		overrides.TimeLimit = flags.timeLimit
	}
	if *flags.capacity >= 0 {
		overrides.Capacity = flags.capacity
	}
	if *flags.rowSize >= 0 {
		overrides.RowSize = flags.rowSize
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		progress.Failure(stderr, "failed to load configuration: %v", err)
		return exitFailure
	}
	if len(cfg.Groups) == 0 {
		progress.Failure(stderr, "no groups configured: set groups in the config file, PARADE_GROUPS or --groups")
		return exitFailure
	}

	logger, err := logging.NewWithLevel(*flags.logLevel)
	if err != nil {
		progress.Failure(stderr, "failed to initialize logger: %v", err)
		return exitFailure
	}
	defer func() {
		_ = logger.Sync()
	}()

	engine, err := application.NewEngine(cfg, logger)
	if err != nil {
		progress.Failure(stderr, "%v", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params := cfg.Params()
	progress.Title(stdout, fmt.Sprintf("Allocating %d groups (capacity %d, row size %d)", len(cfg.Groups), cfg.Capacity, cfg.RowSize))
	var reporter *progress.Reporter
	if !*flags.quiet {
		reporter = progress.NewReporter(stderr, "Solving")
		params.Observer = reporter
		reporter.Start(ctx)
	}
	alloc, err := engine.Allocate(ctx, cfg.Groups, params)
	if reporter != nil {
		reporter.Stop()
	}
	if err != nil {
		if errors.Is(err, parade.ErrModelInfeasible) {
			progress.Status(stdout, "INFEASIBLE")
			progress.Failure(stderr, "%v", err)
			return exitInfeasible
		}
		progress.Failure(stderr, "allocation failed: %v", err)
		return exitFailure
	}
	progress.Status(stdout, alloc.Status)

	res := report.Result{
		Params:     params,
		Groups:     cfg.Groups,
		Allocation: alloc,
		Generated:  now(),
	}
	if err := report.WriteSummary(stdout, res); err != nil {
		progress.Failure(stderr, "write summary: %v", err)
		return exitFailure
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		progress.Failure(stderr, "create output directory: %v", err)
		return exitFailure
	}
	csvPath := filepath.Join(cfg.OutputDir, report.FileName("", "csv", res.Generated))
	if err := writeFile(csvPath, func(w io.Writer) error { return report.WriteCSV(w, res) }); err != nil {
		progress.Failure(stderr, "%v", err)
		return exitFailure
	}
	progress.Success(stdout, "Results written to %s", csvPath)

	if *flags.xlsx {
		xlsxPath := filepath.Join(cfg.OutputDir, report.FileName("", "xlsx", res.Generated))
		if err := writeFile(xlsxPath, func(w io.Writer) error { return report.WriteXLSX(w, res) }); err != nil {
			progress.Failure(stderr, "%v", err)
			return exitFailure
		}
		progress.Success(stdout, "Workbook written to %s", xlsxPath)
	}
	return exitOK
}

func runDraw(flags drawFlags, stdout, stderr io.Writer) int {
	overrides := &config.CLIOverrides{
		ConfigFile: *flags.configFile,
		Positions:  flags.positions,
	}
	if *flags.columnWidth >= 0 {
		overrides.ColumnWidth = flags.columnWidth
	}
	cfg, err := config.Load(overrides)
	if err != nil {
		progress.Failure(stderr, "failed to load configuration: %v", err)
		return exitFailure
	}

	in, err := os.Open(*flags.input)
	if err != nil {
		progress.Failure(stderr, "open input: %v", err)
		return exitFailure
	}
	defer func() {
		_ = in.Close()
	}()

	result, err := report.ReadCSV(in)
	if err != nil {
		progress.Failure(stderr, "read %s: %v", *flags.input, err)
		return exitFailure
	}
	ordered, err := formation.Remap(result.Contingents, cfg.Positions)
	if err != nil {
		progress.Failure(stderr, "%v", err)
		return exitFailure
	}
	text := formation.Compose(ordered, formation.Options{
		RowSize:     result.RowSize,
		Capacity:    result.Capacity,
		ColumnWidth: cfg.ColumnWidth,
	})

	if *flags.output == "" {
		fmt.Fprintln(stdout, text)
	} else {
		err := writeFile(*flags.output, func(w io.Writer) error {
			_, err := io.WriteString(w, text+"\n")
			return err
		})
		if err != nil {
			progress.Failure(stderr, "%v", err)
			return exitFailure
		}
		progress.Success(stdout, "Formation written to %s", *flags.output)
	}

	if *flags.pdf != "" {
		err := writeFile(*flags.pdf, func(w io.Writer) error {
			return report.WriteFormationPDF(w, *flags.title, text)
		})
		if err != nil {
			progress.Failure(stderr, "%v", err)
			return exitFailure
		}
		progress.Success(stdout, "PDF written to %s", *flags.pdf)
	}
	return exitOK
}

func runServe(flags serveFlags, stderr io.Writer) int {
	overrides := &config.CLIOverrides{
		ConfigFile: *flags.configFile,
		GroupsStr:  flags.groups,
	}

	if *flags.port != "" {
		overrides.Port = flags.port
	}

	if *flags.rateLimitRPS >= 0 {
		overrides.RateLimitRPS = flags.rateLimitRPS
	}

	if *flags.rateLimitBurst >= 0 {
		overrides.RateLimitBurst = flags.rateLimitBurst
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		progress.Failure(stderr, "failed to load configuration: %v", err)
		return exitFailure
	}

	logger, err := logging.New()
	if err != nil {
		progress.Failure(stderr, "failed to initialize logger: %v", err)
		return exitFailure
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", zap.Error(err))
		return exitFailure
	}

	if err := app.Start(); err != nil {
		logger.Error("failed to start server", zap.Error(err))
		return exitFailure
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
	return exitOK
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}

// writeFile creates path and streams write into it.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
