package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/erazemk/nabava/internal/api"
	"github.com/erazemk/nabava/internal/config"
	"github.com/erazemk/nabava/internal/db"
	"github.com/erazemk/nabava/internal/model"
	"github.com/erazemk/nabava/internal/pgstore"
	"github.com/erazemk/nabava/internal/store"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
// Commands whose stdout is their output pass quiet to keep INFO off stdout.
func setupLogger(logPath string, quiet bool) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	cleanup := func() {}

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)
	if quiet {
		stdoutW = os.Stderr
	}

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(stdoutW, f)
		stderrW = io.MultiWriter(stderrW, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

var (
	v          = config.New()
	configFile string
)

var rootCmd = &cobra.Command{
	Use:           "nabava",
	Short:         "Purchasing and material receipt service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file (default: ./nabava.yaml if present)")
	pf.StringP("db", "d", "nabava.sqlite3", "SQLite database path")
	pf.StringP("log", "l", "", "log file path (default: no file, stdout/stderr only)")
	pf.String("ledger", config.DriverSQLite, "ledger driver: sqlite or postgres")
	pf.String("ledger-dsn", "", "PostBooks connection string for the postgres ledger")

	v.BindPFlag("database.path", pf.Lookup("db"))
	v.BindPFlag("log.path", pf.Lookup("log"))
	v.BindPFlag("ledger.driver", pf.Lookup("ledger"))
	v.BindPFlag("ledger.dsn", pf.Lookup("ledger-dsn"))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what a command needs once configuration is loaded.
type app struct {
	cfg    config.Config
	db     *sql.DB
	ledger api.Ledger
	close  func()
}

// loadConfig reads the configuration and sets up logging.
func loadConfig(quiet bool) (config.Config, func(), error) {
	cfg, err := config.Load(v, "", configFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	closeLog, err := setupLogger(cfg.Log.Path, quiet)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, closeLog, nil
}

// openApp loads the configuration, opens the application database and
// connects the configured ledger.
func openApp(ctx context.Context, quiet bool) (*app, error) {
	cfg, closeLog, err := loadConfig(quiet)
	if err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		closeLog()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	slog.Info("database ready", "path", cfg.Database.Path)

	a := &app{cfg: cfg, db: database}
	closers := []func(){closeLog, func() { database.Close() }}

	switch cfg.Ledger.Driver {
	case config.DriverPostgres:
		pg, err := pgstore.Open(ctx, cfg.Ledger.DSN)
		if err != nil {
			database.Close()
			closeLog()
			return nil, err
		}
		closers = append(closers, func() { pg.Close() })
		a.ledger = pgstore.Ledger{DB: pg}
		slog.Info("ledger connected", "driver", cfg.Ledger.Driver)
	default:
		a.ledger = store.Ledger{DB: database}
	}

	a.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return a, nil
}

// actingUser loads the named user and their privileges for commands that
// act on someone's behalf.
func (a *app) actingUser(ctx context.Context, username string) (*model.User, model.PrivilegeSet, error) {
	if username == "" {
		username = a.cfg.Admin.User
	}
	user, err := store.GetUserByUsername(ctx, a.db, username)
	if err != nil {
		return nil, nil, err
	}
	if user == nil || user.DeletedAt != nil {
		return nil, nil, fmt.Errorf("user %q not found", username)
	}
	privs, err := store.UserPrivilegeSet(ctx, a.db, user)
	if err != nil {
		return nil, nil, err
	}
	return user, privs, nil
}
