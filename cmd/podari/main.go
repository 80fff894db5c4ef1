package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/podari/internal/api"
	"github.com/erazemk/podari/internal/auth"
	"github.com/erazemk/podari/internal/db"
	"github.com/erazemk/podari/internal/donation"
	"github.com/erazemk/podari/internal/metrics"
	"github.com/erazemk/podari/internal/model"
	"github.com/erazemk/podari/internal/store"
	"github.com/erazemk/podari/internal/uploads"
)

func main() {
	fs := flag.NewFlagSet("podari", flag.ContinueOnError)

	var dbPath string
	fs.StringVar(&dbPath, "db", "podari.sqlite3", "")
	fs.StringVar(&dbPath, "d", "podari.sqlite3", "")

	var addr string
	fs.StringVar(&addr, "addr", ":8080", "")
	fs.StringVar(&addr, "a", ":8080", "")

	var adminEmail string
	fs.StringVar(&adminEmail, "user", "admin@localhost", "")
	fs.StringVar(&adminEmail, "u", "admin@localhost", "")

	var logPath string
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	var uploadDir string
	fs.StringVar(&uploadDir, "uploads", "uploads", "")
	fs.StringVar(&uploadDir, "f", "uploads", "")

	var debug bool
	fs.BoolVar(&debug, "debug", false, "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: podari [flags]

Flags:
  -d, -db <path>          SQLite database path (default: podari.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <email>       admin email on first run (default: admin@localhost)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -f, -uploads <dir>      directory for uploaded images (default: uploads)
      -debug              log rejected requests at debug level
  -h, -help               show this help and exit
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	closeLog, err := setupLogger(logPath, debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(dbPath, addr, adminEmail, uploadDir); err != nil {
		slog.Error("fatal", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(dbPath, addr, adminEmail, uploadDir string) error {
	// A new database gets an admin account.
	_, statErr := os.Stat(dbPath)
	fresh := os.IsNotExist(statErr)

	database, err := db.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		if fresh {
			database.Close()
			os.Remove(dbPath)
		}
		return err
	}

	ctx := context.Background()
	if fresh {
		password, err := createAdmin(ctx, database, adminEmail)
		if err != nil {
			database.Close()
			os.Remove(dbPath)
			return err
		}
		printInitResult(dbPath, adminEmail, password)
	}
	slog.Info("database ready", "path", dbPath)

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return err
	}

	files, err := uploads.New(uploadDir)
	if err != nil {
		return err
	}

	svc := donation.NewService(
		&donation.SQLRepository{DB: database},
		&auth.Resolver{DB: database},
		donation.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
		donation.WithLogger(slog.Default().With("component", "donation")),
	)

	handler := api.LoggingMiddleware(api.NewRouter(api.Config{
		DB:        database,
		JWTSecret: jwtSecret,
		Products:  svc,
		Uploads:   files,
		Metrics:   promhttp.Handler(),
	}))

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", addr, "uploads", uploadDir)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

// createAdmin creates the admin account with a random password and returns
// the password.
func createAdmin(ctx context.Context, database *sql.DB, email string) (string, error) {
	password, err := generatePassword(16)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	if _, err := store.CreateUser(ctx, database, "Admin", email, "", string(hash), model.RoleAdmin); err != nil {
		return "", fmt.Errorf("creating admin user: %w", err)
	}
	return password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, email, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
	fmt.Println()
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
