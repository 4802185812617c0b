package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cschnabel/mplog/internal/api"
	"github.com/cschnabel/mplog/internal/config"
	"github.com/cschnabel/mplog/internal/db"
	"github.com/cschnabel/mplog/internal/ingest"
	"github.com/cschnabel/mplog/internal/log"
	"github.com/cschnabel/mplog/internal/metrics"
	"github.com/cschnabel/mplog/internal/model"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	cmd := os.Args[1]
	switch cmd {
	case "parse":
		err = runParse(ctx, os.Args[2:])
	case "watch":
		err = runWatch(ctx, os.Args[2:])
	case "serve":
		err = runServe(ctx, os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}

	log.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", cmd, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("mplog commands:")
	fmt.Println("  parse -log <path> [-db <path>] [-json] [-config <path>]")
	fmt.Println("  watch -log <path> [-db <path>] [-config <path>]")
	fmt.Println("  serve [-addr=:8080] [-db <path>] [-config <path>]")
	fmt.Println("")
	fmt.Println("Settings can also come from a config file or MPLOG_* environment variables.")
}

// commonFlags registers the flags every subcommand shares. Flag values win
// over the config file when set.
type commonFlags struct {
	configPath *string
	dbPath     *string
	logLevel   *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", "", "config file (yaml, toml or json)"),
		dbPath:     fs.String("db", "", "sqlite database path"),
		logLevel:   fs.String("log-level", "", "debug, info, warn or error"),
	}
}

func (f commonFlags) load() (config.Config, error) {
	cfg, err := config.Load(*f.configPath)
	if err != nil {
		return cfg, err
	}
	if v := strings.TrimSpace(*f.dbPath); v != "" {
		cfg.Database.Path = v
	}
	if v := strings.TrimSpace(*f.logLevel); v != "" {
		cfg.Log.Level = v
	}

	if err := log.SetLevel(cfg.Log.Level); err != nil {
		return cfg, err
	}
	if cfg.Log.File != "" {
		if err := log.SetFileOutput(cfg.Log.File); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func openStore(ctx context.Context, path string) (*db.Store, func(), error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	database, err := db.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Init(ctx, database); err != nil {
		_ = database.Close()
		return nil, nil, err
	}
	return db.NewStore(database), func() { _ = database.Close() }, nil
}

func runParse(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("parse", flag.ContinueOnError)
	common := addCommonFlags(fs)
	logPath := fs.String("log", "", "multiplayer log path")
	asJSON := fs.Bool("json", false, "print the parsed games as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*logPath) == "" {
		return errors.New("-log is required")
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer closeStore()

	res, runID, err := parseAndStore(ctx, ingest.NewParser(), store, *logPath)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Games); err != nil {
			return fmt.Errorf("encode games: %w", err)
		}
	}

	logRun(runID, res)
	return nil
}

// parseAndStore parses one file and records the run whatever its outcome. The
// returned error is non-nil only for failed parses or storage errors.
func parseAndStore(ctx context.Context, parser *ingest.Parser, store *db.Store, logPath string) (ingest.Result, string, error) {
	res, parseErr := parser.ParseFile(ctx, logPath)
	res.Stats.Source = logPath

	runID, err := store.SaveRun(ctx, db.RunRecord{
		Source: logPath,
		Status: res.Status,
		Stats:  res.Stats,
		Games:  res.Games,
		Err:    parseErr,
	})
	if err != nil {
		return res, "", fmt.Errorf("store run: %w", err)
	}
	if parseErr != nil {
		return res, runID, fmt.Errorf("parse %s: %w", logPath, parseErr)
	}
	return res, runID, nil
}

func logRun(runID string, res ingest.Result) {
	if res.Status == model.RunStatusNoGames {
		log.Info("no games found", "run", runID, "lines", res.Stats.LinesRead)
		return
	}
	log.Info("parse complete",
		"run", runID,
		"lines", res.Stats.LinesRead,
		"bytes", res.Stats.BytesRead,
		"games", res.Stats.GamesFound,
		"events", res.Stats.EventsRecorded,
		"decode_failures", res.Stats.DecodeFailures,
		"malformed_lobbies", res.Stats.MalformedLobbies,
		"duration", res.Stats.CompletedAt.Sub(res.Stats.StartedAt))
}

func runWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	common := addCommonFlags(fs)
	logPath := fs.String("log", "", "multiplayer log path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	activeLogPath := strings.TrimSpace(*logPath)
	if activeLogPath == "" {
		return errors.New("-log is required")
	}
	activeLogPath, err := filepath.Abs(activeLogPath)
	if err != nil {
		return fmt.Errorf("resolve log path: %w", err)
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer closeStore()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	// The game truncates or recreates its log, so watch the directory.
	if err := watcher.Add(filepath.Dir(activeLogPath)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(activeLogPath), err)
	}

	parser := ingest.NewParser()
	reparse := func() {
		if err := reparseIfChanged(ctx, parser, store, activeLogPath); err != nil {
			log.Warn("watch parse error", "path", activeLogPath, "error", err)
		}
	}

	log.Info("watching log", "path", activeLogPath, "debounce", cfg.Parser.WatchDebounce)
	reparse()

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != activeLogPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				debounce.Reset(cfg.Parser.WatchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("file watcher error", "error", err)
		case <-debounce.C:
			reparse()
		}
	}
}

// reparseIfChanged re-parses the whole log when its size differs from the
// size recorded for the last stored run.
func reparseIfChanged(ctx context.Context, parser *ingest.Parser, store *db.Store, logPath string) error {
	info, err := os.Stat(logPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug("log not there yet", "path", logPath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", logPath, err)
	}

	state, err := store.GetIngestState(ctx, logPath)
	if err != nil {
		return err
	}
	if state.Found && state.ByteSize == info.Size() {
		log.Debug("log unchanged", "path", logPath, "size", info.Size())
		return nil
	}

	res, runID, err := parseAndStore(ctx, parser, store, logPath)
	if runID != "" {
		if saveErr := store.SaveIngestState(ctx, logPath, info.Size(), runID); saveErr != nil {
			return saveErr
		}
	}
	if err != nil {
		return err
	}
	logRun(runID, res)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	common := addCommonFlags(fs)
	addr := fs.String("addr", "", "http listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	if v := strings.TrimSpace(*addr); v != "" {
		cfg.Server.Addr = v
	}

	store, closeStore, err := openStore(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer closeStore()

	server := api.NewServer(store, ingest.NewParser(), metrics.New(), cfg.Server.MaxBodyBytes)
	return server.Run(ctx, cfg.Server.Addr)
}
