// Package cli implements workoutctl, a command line client for the workout API.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"alcyxob/workout-sync/internal/client"
	"alcyxob/workout-sync/internal/config"
	"alcyxob/workout-sync/internal/remote"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Server     string
	Token      string
	Format     string // "yaml" | "json"
	Verbose    bool

	cfg    config.ClientConfig
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"yaml", "json"}

// NewRootCommand creates the root command for workoutctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "workoutctl",
		Short: "Edit workouts on a workout-sync server",
		Long: `Edit workouts on a workout-sync server.

Settings come from a config file (--config, or ./config.yaml) and the
CLIENT_BASE_URL and CLIENT_TOKEN environment variables; flags win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.load(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (default ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Server, "server", "", "API base url, e.g. http://localhost:8080")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "bearer token")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "yaml", "output format (yaml|json)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log requests to stderr")

	// Add subcommands
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewAddExerciseCommand(opts))
	cmd.AddCommand(NewNoteCommand(opts))
	cmd.AddCommand(NewRemoveExerciseCommand(opts))
	cmd.AddCommand(NewReorderCommand(opts))
	cmd.AddCommand(NewAddSetCommand(opts))
	cmd.AddCommand(NewUpdateSetCommand(opts))
	cmd.AddCommand(NewRemoveSetCommand(opts))

	return cmd
}

func (o *RootOptions) load(cmd *cobra.Command) error {
	var (
		cfg config.Config
		err error
	)
	if o.ConfigFile != "" {
		cfg, err = config.LoadFile(o.ConfigFile)
	} else {
		cfg, err = config.LoadConfig(".")
	}
	if err != nil {
		return err
	}
	o.cfg = cfg.Client
	if o.Server != "" {
		o.cfg.BaseURL = o.Server
	}
	if o.Token != "" {
		o.cfg.Token = o.Token
	}

	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	o.logger = config.NewLogger(config.LogConfig{Level: level, Format: cfg.Log.Format}, cmd.ErrOrStderr())
	return nil
}

func (o *RootOptions) remote() (*remote.Client, error) {
	return remote.New(o.cfg.BaseURL, remote.Options{
		Token:   o.cfg.Token,
		Timeout: o.cfg.RequestTimeout,
		Logger:  o.logger,
	})
}

func (o *RootOptions) workoutClient() (*client.WorkoutClient, error) {
	r, err := o.remote()
	if err != nil {
		return nil, err
	}
	return client.NewWorkoutClient(r, client.Options{
		DebounceDelay: o.cfg.DebounceDelay,
		Logger:        o.logger,
	}), nil
}
