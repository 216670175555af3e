package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/nabava/internal/api"
	"github.com/erazemk/nabava/internal/db"
	"github.com/erazemk/nabava/internal/model"
	"github.com/erazemk/nabava/internal/store"
	"github.com/erazemk/nabava/internal/sweep"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and the admin account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := loadConfig(false)
		if err != nil {
			return err
		}
		defer closeLog()

		if _, err := os.Stat(cfg.Database.Path); err == nil {
			return fmt.Errorf("database %s already exists", cfg.Database.Path)
		}

		database, password, err := initDatabase(cfg.Database.Path, cfg.Admin.User)
		if err != nil {
			return err
		}
		database.Close()

		printInitResult(cfg.Database.Path, cfg.Admin.User, password)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", ":8080", "listen address")
	serveCmd.Flags().StringP("user", "u", "Admin", "admin username on first run")
	v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	v.BindPFlag("admin.user", serveCmd.Flags().Lookup("user"))
	initCmd.Flags().AddFlag(serveCmd.Flags().Lookup("user"))

	rootCmd.AddCommand(initCmd, serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := loadConfig(false)
	if err != nil {
		return err
	}

	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(cfg.Database.Path); os.IsNotExist(err) {
		database, password, err := initDatabase(cfg.Database.Path, cfg.Admin.User)
		if err != nil {
			closeLog()
			return fmt.Errorf("initializing database: %w", err)
		}
		database.Close()

		printInitResult(cfg.Database.Path, cfg.Admin.User, password)
		fmt.Println()
	}
	closeLog()

	ctx := cmd.Context()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	// Load JWT secret from database (auto-generated on first run).
	jwtSecret, err := store.GetJWTSecret(ctx, a.db)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}

	// The sweep needs the staging tables of the embedded ledger.
	if l, ok := a.ledger.(store.Ledger); ok && a.cfg.Sweep.Schedule != "" {
		c, err := sweep.Start(ctx, a.cfg.Sweep.Schedule, &sweep.Sweeper{
			Purger: l,
			Tokens: store.Revocations{DB: a.db},
			MaxAge: a.cfg.Sweep.MaxAge,
		})
		if err != nil {
			return err
		}
		defer func() { <-c.Stop().Done() }()
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", api.NewRouter(a.db, a.ledger, jwtSecret))

	server := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", a.cfg.Server.Addr, "ledger", a.cfg.Ledger.Driver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

// initDatabase creates a new database, applies the schema and migrations, and
// creates the admin user.
func initDatabase(path, adminUsername string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	fail := func(format string, err error) (*sql.DB, string, error) {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf(format, err)
	}

	if err := db.Migrate(database); err != nil {
		return fail("migrating database: %w", err)
	}

	password, err := generatePassword(16)
	if err != nil {
		return fail("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fail("hashing password: %w", err)
	}

	_, err = store.CreateUser(context.Background(), database, adminUsername, string(hash), model.RoleAdmin)
	if err != nil {
		return fail("creating admin user: %w", err)
	}

	return database, password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, username, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
