// Command sentinel ingests electoral tally snapshots into per-scope hash
// chains, evaluates integrity rules, and verifies or exports stored chains.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/electoral-watch/sentinel/pkg/anchor"
	"github.com/electoral-watch/sentinel/pkg/config"
	"github.com/electoral-watch/sentinel/pkg/contentstore"
	"github.com/electoral-watch/sentinel/pkg/normalize"
	"github.com/electoral-watch/sentinel/pkg/pipeline"
	"github.com/electoral-watch/sentinel/pkg/rules"
	"github.com/electoral-watch/sentinel/pkg/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "ingest":
		err = runIngest(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "sentinel:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: sentinel <command> [flags]

commands:
  ingest   fetch, chain, and evaluate tally snapshots
  verify   replay a scope's stored hash chain
  export   dump a scope's chain as JSON or CSV`)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func openContentStore(cfg config.ContentConfig) (contentstore.Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "file":
		return contentstore.NewFileStore(cfg.Dir)
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return contentstore.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown content backend %q", cfg.Backend)
	}
}

func openStore(cfg config.Config, logger *slog.Logger) (store.SnapshotStore, error) {
	var base store.SnapshotStore
	switch cfg.Store.Driver {
	case "sqlite":
		cs, err := openContentStore(cfg.Content)
		if err != nil {
			return nil, err
		}
		opts := []store.SQLiteOption{store.WithLogger(logger)}
		if cs != nil {
			opts = append(opts, store.WithContentStore(cs))
		}
		s, err := store.OpenSQLite(cfg.Store.Path, opts...)
		if err != nil {
			return nil, err
		}
		base = s
	case "postgres":
		s, err := store.OpenPostgres(cfg.Store.DSN, logger)
		if err != nil {
			return nil, err
		}
		base = s
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Store.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
		ttl := time.Duration(cfg.Store.CacheTTLSeconds) * time.Second
		base = store.NewCachedStore(base, client, ttl, logger)
	}
	return base, nil
}

func buildEngine(cfg config.Config, st store.SnapshotStore, logger *slog.Logger) (*rules.Engine, error) {
	deps := rules.Deps{}
	if sq, ok := st.(*store.SQLiteStore); ok {
		irr, err := store.NewIrreversibilityStore(sq.DB())
		if err != nil {
			return nil, err
		}
		deps.State = irr
	}
	return rules.NewEngine(rules.DefaultRegistry(deps), cfg.Rules, logger), nil
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	urlTemplate := fs.String("url", "", "payload URL template with {scope}")
	fileTemplate := fs.String("file", "", "capture file path template with {scope}")
	scopesFlag := fs.String("scopes", "", "comma-separated department names")
	interval := fs.Duration("interval", 0, "poll interval; 0 runs one pass")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	var source pipeline.DataSource
	switch {
	case *urlTemplate != "" && *fileTemplate != "":
		return fmt.Errorf("ingest: -url and -file are mutually exclusive")
	case *urlTemplate != "":
		source = pipeline.NewHTTPSource(nil, *urlTemplate)
	case *fileTemplate != "":
		source = pipeline.NewFileSource(*fileTemplate)
	default:
		return fmt.Errorf("ingest: one of -url or -file is required")
	}
	scopes := splitScopes(*scopesFlag)
	if len(scopes) == 0 {
		scopes = allDepartments()
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	engine, err := buildEngine(cfg, st, logger)
	if err != nil {
		return err
	}

	var batcher *anchor.Batcher
	if cfg.Anchor.Enabled {
		limit := rate.Limit(cfg.Anchor.RatePerMinute / 60)
		batcher = anchor.NewBatcher(
			anchor.NewHTTPAnchor(nil, cfg.Anchor.Endpoint), st, limit, cfg.Anchor.Burst, logger)
	}

	fieldMap := normalize.DefaultFieldMap()
	if cfg.Normalize.FieldMapPath != "" {
		fieldMap, err = normalize.LoadFieldMap(cfg.Normalize.FieldMapPath)
		if err != nil {
			return err
		}
	}

	p := pipeline.New(pipeline.Options{
		Source:  source,
		Store:   st,
		Engine:  engine,
		Batcher: batcher,
		Normalize: normalize.Options{
			Election:           cfg.Normalize.Election,
			Year:               cfg.Normalize.Year,
			Source:             cfg.Normalize.Source,
			CandidateCountHint: cfg.Normalize.CandidateCountHint,
			FieldMap:           fieldMap,
		},
		Logger: logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p.RunAll(ctx, scopes)
	if *interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.RunAll(ctx, scopes)
		}
	}
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	scope := fs.String("scope", "", "scope code, e.g. 08; empty verifies all")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	ctx := context.Background()

	scopes := []string{*scope}
	if *scope == "" {
		index, err := st.IndexEntries(ctx)
		if err != nil {
			return err
		}
		seen := map[string]bool{}
		scopes = scopes[:0]
		for _, e := range index {
			if !seen[e.Scope] {
				seen[e.Scope] = true
				scopes = append(scopes, e.Scope)
			}
		}
	}

	for _, sc := range scopes {
		if err := store.VerifyScope(ctx, st, sc); err != nil {
			return fmt.Errorf("scope %s: %w", sc, err)
		}
		fmt.Printf("scope %s: chain ok\n", sc)
	}
	return nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	scope := fs.String("scope", "", "scope code, e.g. 08")
	format := fs.String("format", "json", "json or csv")
	out := fs.String("out", "", "output file; stdout when empty")
	fs.Parse(args)

	if *scope == "" {
		return fmt.Errorf("export: -scope is required")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		defer f.Close()
		w = f
	}

	ctx := context.Background()
	switch *format {
	case "json":
		return store.ExportJSON(ctx, st, *scope, w)
	case "csv":
		return store.ExportCSV(ctx, st, *scope, w)
	default:
		return fmt.Errorf("export: unknown format %q", *format)
	}
}

func splitScopes(s string) []string {
	var scopes []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			scopes = append(scopes, part)
		}
	}
	return scopes
}

func allDepartments() []string {
	names := make([]string, 0, len(normalize.DepartmentCodes))
	for name := range normalize.DepartmentCodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
