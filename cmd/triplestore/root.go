package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-triplestore/triplestore/annotations"
	"github.com/wbrown/janus-triplestore/triplestore/storage"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	StorePath  string
	LogLevel   string
	Verbose    bool
	SyncWrites bool

	level slog.Level
}

// NewRootCommand creates the root command for the triplestore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "triplestore",
		Short:         "Inspect and edit a layered triple store",
		Long:          "Create databases, stage triples into new layers, and walk layer history in a store directory.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "triplestore.yaml", "YAML config file")
	cmd.PersistentFlags().StringVarP(&opts.StorePath, "store", "s", "", "store directory")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "print store events")
	cmd.PersistentFlags().BoolVar(&opts.SyncWrites, "sync", true, "fsync every write")

	// Add subcommands
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))

	return cmd
}

// resolve merges the config file under the command line flags
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	file, err := LoadFileConfig(o.ConfigPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if !flags.Changed("store") && file.Path != "" {
		o.StorePath = file.Path
	}
	if !flags.Changed("log-level") && file.LogLevel != "" {
		o.LogLevel = file.LogLevel
	}
	if !flags.Changed("verbose") && file.Verbose {
		o.Verbose = true
	}
	if !flags.Changed("sync") && file.SyncWrites != nil {
		o.SyncWrites = *file.SyncWrites
	}

	if o.level, err = parseLevel(o.LogLevel); err != nil {
		return err
	}
	if o.StorePath == "" {
		return fmt.Errorf("no store directory: use --store or set path in %s", o.ConfigPath)
	}
	return nil
}

// storeConfig builds the store configuration for a command
func (o *RootOptions) storeConfig(cmd *cobra.Command) storage.Config {
	cfg := storage.DefaultConfig(o.StorePath)
	cfg.SyncWrites = o.SyncWrites
	cfg.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: o.level}))
	if o.Verbose {
		cfg.Handler = annotations.NewOutputFormatter(cmd.ErrOrStderr()).Handle
	}
	return cfg
}

// withStore opens the store for the duration of fn
func (o *RootOptions) withStore(cmd *cobra.Command, fn func(*storage.Store) error) error {
	s, err := storage.Open(o.storeConfig(cmd))
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// openDatabase opens an existing database or reports that it is missing
func openDatabase(s *storage.Store, name string) (*storage.Database, error) {
	db, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, fmt.Errorf("database %q does not exist", name)
	}
	return db, nil
}
