package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"alcyxob/workout-sync/internal/client"
	"alcyxob/workout-sync/internal/optimistic"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Email    string
	Password string
	Register bool
	Name     string
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Print a bearer token for the given credentials",
		Long: `Print a bearer token for the given credentials.

Example:
  export CLIENT_TOKEN=$(workoutctl login --email me@example.com --password secret123)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.remote()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if opts.Register {
				if err := r.Register(ctx, opts.Name, opts.Email, opts.Password); err != nil {
					return err
				}
			}
			token, err := r.Login(ctx, opts.Email, opts.Password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password")
	cmd.Flags().BoolVar(&opts.Register, "register", false, "create the account first")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name when registering")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your workouts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.remote()
			if err != nil {
				return err
			}
			workouts, err := r.ListWorkouts(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), workouts)
		},
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <workout-id>",
		Short: "Print a workout with its exercises and sets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkout(cmd, opts, args[0], nil)
		},
	}
}

// FileOptions holds the --file flag of create and save.
type FileOptions struct {
	*RootOptions
	File string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a workout from a YAML tree",
		Long: `Create a workout from a YAML tree.

Example file:
  name: Push
  exercises:
    - referenceId: bench-press
      order: 0
      sets:
        - {weight: 80, reps: 5, order: 0}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := readWorkout(opts.File, cmd.InOrStdin())
			if err != nil {
				return err
			}
			r, err := opts.remote()
			if err != nil {
				return err
			}
			created, err := r.CreateWorkout(cmd.Context(), w)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), created)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "workout file, - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <workout-id>",
		Short: "Replace a workout with a YAML tree",
		Long: `Replace a workout with a YAML tree. Children with an id are updated,
children without one are created and missing ones are deleted. A non-zero
version must match the server's or the save is rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := readWorkout(opts.File, cmd.InOrStdin())
			if err != nil {
				return err
			}
			w.ID = args[0]
			r, err := opts.remote()
			if err != nil {
				return err
			}
			saved, err := r.SaveWorkout(cmd.Context(), w)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), saved)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "workout file, - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// withWorkout loads a workout into a fresh client, applies edit, waits for
// every call it started and prints the resulting tree. A nil edit just prints.
func withWorkout(cmd *cobra.Command, opts *RootOptions, workoutID string, edit func(ctx context.Context, wc *client.WorkoutClient) error) error {
	ctx := cmd.Context()
	wc, err := opts.workoutClient()
	if err != nil {
		return err
	}
	if _, err := wc.Load(ctx, workoutID); err != nil {
		return err
	}
	if edit != nil {
		if err := edit(ctx, wc); err != nil {
			return err
		}
		if err := wc.Settle(ctx); err != nil {
			return err
		}
	}
	w, ok := wc.Snapshot(workoutID)
	if !ok {
		return fmt.Errorf("workout %s: %w", workoutID, client.ErrNotFound)
	}
	return opts.print(cmd.OutOrStdout(), w)
}

// await waits for call unless starting it already failed.
func await[R any](ctx context.Context, call *optimistic.Call[R], err error) error {
	if err != nil {
		return err
	}
	_, err = call.WaitContext(ctx)
	return err
}

var errNoChanges = errors.New("nothing to change: pass at least one field flag")
