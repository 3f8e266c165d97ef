package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spachava753/stayconnected/auth"
	"github.com/spachava753/stayconnected/config"
	"github.com/spachava753/stayconnected/people"
	"github.com/spachava753/stayconnected/plans"
	"github.com/spachava753/stayconnected/store"
)

// app holds flag values and the components built from them for one run.
type app struct {
	verbose    bool
	configPath string
	dbPath     string
	out        io.Writer

	cfg     *config.Config
	log     *zap.Logger
	loc     *time.Location
	store   *store.Store
	auth    *auth.Local
	book    *people.Book
	planner *plans.Planner
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stayconnected",
		Short: "Keep track of the people you care about and plan time with them",
		Long: `stayconnected keeps a private list of people, imports them from your
address book, Messages or email without creating duplicates, and schedules
one-on-one plans with them.

Data lives in a local SQLite database. Run "stayconnected auth anon" or
"stayconnected auth signup" first; import signs in anonymously if needed.`,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.setup(cmd.Context()) },
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	rootCmd.SetOut(a.out)
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/stayconnected/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (overrides the config file)")

	rootCmd.AddCommand(newResolveCmd(a))
	rootCmd.AddCommand(newImportCmd(a))
	rootCmd.AddCommand(newPeopleCmd(a))
	rootCmd.AddCommand(newPlansCmd(a))
	rootCmd.AddCommand(newAuthCmd(a))
	rootCmd.AddCommand(newWatchCmd(a))
	return rootCmd
}

// setup loads config, builds the logger and opens the store.
func (a *app) setup(ctx context.Context) error {
	path := a.configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	a.cfg = cfg

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(cfg.Level())
	if a.verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	a.log, err = zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if a.loc, err = cfg.Location(); err != nil {
		return err
	}

	dbPath := cfg.Database
	if a.dbPath != "" {
		dbPath = a.dbPath
	}
	a.store, err = store.Open(dbPath, store.WithLogger(a.log.Named("store")))
	if err != nil {
		return err
	}

	a.auth = auth.NewLocal(a.store, auth.WithLogger(a.log.Named("auth")))
	if err := a.auth.Restore(ctx); err != nil {
		return err
	}
	a.book = people.New(a.store,
		people.WithLogger(a.log.Named("people")),
		people.WithImportLimit(cfg.ImportLimit),
		people.WithConcurrency(cfg.ImportConcurrency),
	)
	a.planner = plans.New(a.store, plans.WithLogger(a.log.Named("plans")))
	return nil
}

func (a *app) close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
		a.store = nil
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return err
}

// uid returns the signed-in user or an error telling the user how to sign in.
func (a *app) uid() (string, error) {
	uid, err := a.auth.RequireUID()
	if err != nil {
		return "", fmt.Errorf("%w: run \"stayconnected auth anon\" or \"stayconnected auth signin\"", err)
	}
	return uid, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{out: os.Stdout}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
