package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ingest/internal/api"
	"github.com/insightdelivered/statement-ingest/internal/history"
	"github.com/insightdelivered/statement-ingest/internal/logger"
	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/parser"
	"github.com/insightdelivered/statement-ingest/internal/writer"
)

const version = "1.0.0"

func main() {
	// Amounts go out as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// app carries what the subcommands share once the root flags are parsed.
type app struct {
	stdout io.Writer
	log    zerolog.Logger
	engine *parser.Engine
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{stdout: stdout}

	rootFlags := ff.NewFlagSet("statement-ingest")
	var (
		logLevel    = rootFlags.StringLong("log-level", "info", "log level: debug, info, warn, error")
		logJSON     = rootFlags.BoolLong("log-json", "write logs as JSON instead of console text")
		showVersion = rootFlags.BoolLong("version", "show version information")
	)

	parseFlags := ff.NewFlagSet("parse").SetParent(rootFlags)
	var (
		output   = parseFlags.StringLong("output", "", "CSV output path (single input only; defaults to <input>.transactions.csv)")
		asJSON   = parseFlags.BoolLong("json", "print the parse result as JSON instead of writing CSV")
		noHeader = parseFlags.BoolLong("no-header", "omit metadata rows from the CSV output")
	)
	parseCmd := &ff.Command{
		Name:      "parse",
		Usage:     "statement-ingest parse [FLAGS] <statement> [statement ...]",
		ShortHelp: "parse CSV, TSV, OFX or QFX statements into transactions",
		Flags:     parseFlags,
		Exec: func(ctx context.Context, args []string) error {
			return a.parse(args, *output, *asJSON, !*noHeader)
		},
	}

	serveFlags := ff.NewFlagSet("serve").SetParent(rootFlags)
	var (
		addr        = serveFlags.StringLong("addr", ":8080", "HTTP listen address")
		maxUploadMB = serveFlags.IntLong("max-upload-mb", 10, "maximum upload size in megabytes")
		historyDB   = serveFlags.StringLong("history-db", "", "bbolt file for parse history (empty disables history)")
	)
	serveCmd := &ff.Command{
		Name:      "serve",
		Usage:     "statement-ingest serve [FLAGS]",
		ShortHelp: "serve the statement upload API",
		Flags:     serveFlags,
		Exec: func(ctx context.Context, args []string) error {
			return a.serve(ctx, *addr, int64(*maxUploadMB)<<20, *historyDB)
		},
	}

	rootCmd := &ff.Command{
		Name:        "statement-ingest",
		Usage:       "statement-ingest [FLAGS] <SUBCOMMAND> ...",
		ShortHelp:   "bank statement ingestion",
		Flags:       rootFlags,
		Subcommands: []*ff.Command{parseCmd, serveCmd},
		Exec: func(ctx context.Context, args []string) error {
			if *showVersion {
				fmt.Fprintf(stdout, "statement-ingest v%s\n", version)
				return nil
			}
			return ff.ErrHelp
		},
	}

	if err := rootCmd.Parse(args, ff.WithEnvVarPrefix("STATEMENT_INGEST")); err != nil {
		fmt.Fprintf(stderr, "%s\n", ffhelp.Command(rootCmd.GetSelected()))
		return err
	}

	log, err := logger.New(stderr, *logLevel, *logJSON)
	if err != nil {
		return err
	}
	a.log = log
	a.engine = parser.NewEngine(parser.WithLogger(log))

	if err := rootCmd.Run(ctx); err != nil {
		if errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(stderr, "%s\n", ffhelp.Command(rootCmd.GetSelected()))
		}
		return err
	}
	return nil
}

func (a *app) parse(paths []string, output string, asJSON, includeHeader bool) error {
	if len(paths) == 0 {
		return fmt.Errorf("parse: at least one statement file is required")
	}
	if output != "" && len(paths) > 1 {
		return fmt.Errorf("parse: --output can only be used with a single input file")
	}

	failed := 0
	for _, path := range paths {
		result, err := a.parseFile(path)
		if err != nil {
			return err
		}
		if !result.Success() {
			failed++
		}

		if asJSON {
			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("encoding result for %s: %w", path, err)
			}
			continue
		}

		a.printSummary(path, result)
		if len(result.Transactions) == 0 {
			continue
		}
		outPath := output
		if outPath == "" {
			outPath = strings.TrimSuffix(path, filepath.Ext(path)) + ".transactions.csv"
		}
		w := &writer.CSVWriter{IncludeHeader: includeHeader}
		if err := w.WriteToFile(outPath, result); err != nil {
			return fmt.Errorf("CSV write failed: %w", err)
		}
		fmt.Fprintf(a.stdout, "  Output: %s\n", outPath)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d statement(s) could not be parsed", failed, len(paths))
	}
	return nil
}

func (a *app) parseFile(path string) (*models.StatementParseResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	result := a.engine.ParseStatement(filepath.Base(path), content)
	for _, w := range result.Warnings {
		a.log.Warn().Str("file", path).Msg(w)
	}
	return result, nil
}

func (a *app) printSummary(path string, result *models.StatementParseResult) {
	fmt.Fprintf(a.stdout, "Processing: %s\n", path)
	fmt.Fprintf(a.stdout, "  Parser: %s (%s)\n", result.ParserUsed, result.FileKind)
	if result.BankDetected != "" {
		fmt.Fprintf(a.stdout, "  Bank: %s\n", result.BankDetected)
	}
	if result.AccountInfo != "" {
		fmt.Fprintf(a.stdout, "  %s\n", result.AccountInfo)
	}
	fmt.Fprintf(a.stdout, "  Found %d transaction(s)\n", len(result.Transactions))
	if len(result.Transactions) > 0 {
		debit, credit := result.Totals()
		fmt.Fprintf(a.stdout, "  Total debit: %s  Total credit: %s\n", debit.StringFixed(2), credit.StringFixed(2))
	}
	for _, e := range result.Errors {
		fmt.Fprintf(a.stdout, "  Error: %s\n", e)
	}
}

func (a *app) serve(ctx context.Context, addr string, maxUpload int64, historyPath string) error {
	h := &api.Handler{
		Engine:         a.engine,
		MaxUploadBytes: maxUpload,
		Version:        version,
		Log:            a.log,
	}

	if historyPath != "" {
		store, err := history.Open(historyPath)
		if err != nil {
			return err
		}
		defer store.Close()
		h.History = store
		a.log.Info().Str("path", historyPath).Msg("history enabled")
	}

	server := api.NewApp(h)
	errc := make(chan error, 1)
	go func() {
		errc <- server.Listen(addr)
	}()
	a.log.Info().Str("addr", addr).Msg("server started")

	select {
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	return server.ShutdownWithTimeout(5 * time.Second)
}
