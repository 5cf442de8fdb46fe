package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"alcyxob/workout-sync/internal/client"
	"alcyxob/workout-sync/internal/domain"
)

// --- Exercises ---

// ExerciseOptions holds flags for add-exercise.
type ExerciseOptions struct {
	*RootOptions
	Reference string
	Order     int
	Note      string
}

// NewAddExerciseCommand creates the add-exercise command.
func NewAddExerciseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExerciseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add-exercise <workout-id>",
		Short: "Insert an exercise; the server seeds it with one set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := domain.ExercisePayload{ReferenceID: opts.Reference, Order: &opts.Order}
			if cmd.Flags().Changed("note") {
				payload.Note = &opts.Note
			}
			return withWorkout(cmd, opts.RootOptions, args[0], func(ctx context.Context, wc *client.WorkoutClient) error {
				_, call, err := wc.AddExercise(ctx, args[0], payload)
				return await(ctx, call, err)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Reference, "ref", "", "catalog exercise id")
	cmd.Flags().IntVar(&opts.Order, "order", 0, "position to insert at")
	cmd.Flags().StringVar(&opts.Note, "note", "", "exercise note")
	_ = cmd.MarkFlagRequired("ref")
	return cmd
}

// NewNoteCommand creates the note command.
func NewNoteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "note <workout-id> <exercise-id> [text]",
		Short: "Set an exercise's note; omit text to clear it",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var note *string
			if len(args) == 3 {
				note = &args[2]
			}
			return withWorkout(cmd, opts, args[0], func(ctx context.Context, wc *client.WorkoutClient) error {
				call, err := wc.UpdateExerciseNote(ctx, args[0], args[1], note)
				return await(ctx, call, err)
			})
		},
	}
}

// NewRemoveExerciseCommand creates the remove-exercise command.
func NewRemoveExerciseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-exercise <workout-id> <exercise-id>",
		Short: "Delete an exercise with its sets",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkout(cmd, opts, args[0], func(ctx context.Context, wc *client.WorkoutClient) error {
				call, err := wc.RemoveExercise(ctx, args[0], args[1])
				return await(ctx, call, err)
			})
		},
	}
}

// NewReorderCommand creates the reorder command.
func NewReorderCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <workout-id> <exercise-id>...",
		Short: "Put every exercise of a workout in the given order",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			orders := make(map[string]int, len(args)-1)
			for i, id := range args[1:] {
				if _, dup := orders[id]; dup {
					return fmt.Errorf("exercise %s listed twice", id)
				}
				orders[id] = i
			}
			return withWorkout(cmd, opts, args[0], func(ctx context.Context, wc *client.WorkoutClient) error {
				call, err := wc.ReorderExercises(ctx, args[0], orders)
				return await(ctx, call, err)
			})
		},
	}
}

// --- Sets ---

// SetOptions holds the field flags of add-set and update-set.
type SetOptions struct {
	*RootOptions
	Order  int
	Weight float64
	Reps   int
	Rest   int
	RPE    float64
	Kind   string
}

func (o *SetOptions) bindFields(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&o.Weight, "weight", 0, "weight")
	cmd.Flags().IntVar(&o.Reps, "reps", 0, "repetitions")
	cmd.Flags().IntVar(&o.Rest, "rest", 0, "rest after the set, in seconds")
	cmd.Flags().Float64Var(&o.RPE, "rpe", 0, "rate of perceived exertion, 1-10")
	cmd.Flags().StringVar(&o.Kind, "kind", "", "WarmUp, Normal, DropSet or Failure")
}

// patch returns the fields whose flags were given.
func (o *SetOptions) patch(cmd *cobra.Command) domain.SetPatch {
	var p domain.SetPatch
	flags := cmd.Flags()
	if flags.Changed("weight") {
		p.Weight = &o.Weight
	}
	if flags.Changed("reps") {
		p.Reps = &o.Reps
	}
	if flags.Changed("rest") {
		p.Rest = &o.Rest
	}
	if flags.Changed("rpe") {
		p.RPE = &o.RPE
	}
	if flags.Changed("kind") {
		k := domain.SetKind(o.Kind)
		p.Kind = &k
	}
	return p
}

// NewAddSetCommand creates the add-set command.
func NewAddSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add-set <workout-id> <exercise-id>",
		Short: "Insert a set into an exercise",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := opts.patch(cmd)
			payload := domain.SetPayload{Weight: p.Weight, Reps: p.Reps, Rest: p.Rest, RPE: p.RPE, Order: &opts.Order}
			if p.Kind != nil {
				payload.Kind = *p.Kind
			}
			return withWorkout(cmd, opts.RootOptions, args[0], func(ctx context.Context, wc *client.WorkoutClient) error {
				_, call, err := wc.AddSet(ctx, args[0], args[1], payload)
				return await(ctx, call, err)
			})
		},
	}

	cmd.Flags().IntVar(&opts.Order, "order", 0, "position to insert at")
	opts.bindFields(cmd)
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

// NewUpdateSetCommand creates the update-set command.
func NewUpdateSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update-set <workout-id> <set-id>",
		Short: "Change the given fields of a set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := opts.patch(cmd)
			if p.IsEmpty() {
				return errNoChanges
			}
			return withWorkout(cmd, opts.RootOptions, args[0], func(ctx context.Context, wc *client.WorkoutClient) error {
				if err := wc.Edits().SetFields(args[0], args[1], p); err != nil {
					return err
				}
				for _, call := range wc.Edits().Flush() {
					if err := await(ctx, call, nil); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	opts.bindFields(cmd)
	return cmd
}

// NewRemoveSetCommand creates the remove-set command.
func NewRemoveSetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-set <workout-id> <set-id>",
		Short: "Delete a set and close the gap",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkout(cmd, opts, args[0], func(ctx context.Context, wc *client.WorkoutClient) error {
				call, err := wc.RemoveSet(ctx, args[0], args[1])
				return await(ctx, call, err)
			})
		},
	}
}
