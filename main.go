package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"librarian/config"
	"librarian/library"
)

var version = "dev"

var (
	cfgFile string
	verbose bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "librarian",
		Short: "Library circulation service: catalog, members and loans",
		Long: `librarian runs the library circulation API and the staff tooling around it.

Settings come from an optional config file (--config), a .env file and
LIBRARY_* environment variables, e.g. LIBRARY_DB_DSN=library.db.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newMemberCmd(), newReportCmd())
	return root
}

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}

// app is what every subcommand needs: settings and a logger.
type app struct {
	cfg *config.Config
	log *log.Logger
}

func loadApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: newLogger(cfg.Log.Level)}, nil
}

func newLogger(level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "librarian",
		ReportTimestamp: true,
		Level:           lvl,
	})
}

// openDatabase connects and brings the schema up to date.
func (a *app) openDatabase(ctx context.Context) (*library.Database, error) {
	db, err := library.Open(ctx, a.cfg.DB.Driver, a.cfg.DB.DSN, library.WithMaxOpenConns(a.cfg.DB.MaxOpenConns))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (a *app) openManager(ctx context.Context) (*library.LibraryManager, error) {
	db, err := a.openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	return library.NewLibraryManager(db,
		library.WithLogger(a.log),
		library.WithLoanDays(a.cfg.Loan.DefaultDays, a.cfg.Loan.MaxDays),
		library.WithSessionTTL(a.cfg.Session.TTL),
	), nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			db, err := a.openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			a.log.Info("schema up to date", "driver", a.cfg.DB.Driver)
			return nil
		},
	}
}

// readPassword reads a password without echo when stdin is a terminal, and
// a plain line otherwise so the command can be scripted.
func readPassword(prompt string) (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimSpace(line), nil
	}
	fmt.Fprint(os.Stderr, prompt)
	bytePassword, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(bytePassword)), nil
}

// readNewPassword asks twice on a terminal.
func readNewPassword() (string, error) {
	password, err := readPassword("New password: ")
	if err != nil {
		return "", err
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		return password, nil
	}
	confirm, err := readPassword("Repeat password: ")
	if err != nil {
		return "", err
	}
	if confirm != password {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}
