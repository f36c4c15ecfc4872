package commands

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"taskprogress/internal/progress"

	"github.com/spf13/cobra"
)

// jsonUpdater prints each state update as one JSON line
type jsonUpdater struct {
	enc *json.Encoder
}

func (u *jsonUpdater) UpdateState(ctx context.Context, state progress.State, meta any) error {
	return u.enc.Encode(map[string]any{"state": state, "meta": meta})
}

func newSimulateCommand() *cobra.Command {
	var (
		total       int
		step        time.Duration
		description string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Args:  cobra.NoArgs,
		Short: "Run a local job that reports progress to the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if total < 0 || step < 0 {
				return errors.New("total and step must not be negative")
			}
			return simulate(cmd.Context(), newSimulateRecorder(cmd.OutOrStdout(), asJSON), total, step, description)
		},
	}

	cmd.Flags().IntVarP(&total, "total", "n", 10, "number of items to process")
	cmd.Flags().DurationVarP(&step, "step", "s", 100*time.Millisecond, "time spent per item")
	cmd.Flags().StringVarP(&description, "description", "d", "", "description reported with each update")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print progress documents as JSON lines")
	return cmd
}

func newSimulateRecorder(out io.Writer, asJSON bool) progress.Recorder {
	if asJSON {
		return progress.NewRecorder(&jsonUpdater{enc: json.NewEncoder(out)})
	}
	return progress.NewConsoleRecorder(out)
}

func simulate(ctx context.Context, recorder progress.Recorder, total int, step time.Duration, description string) error {
	for i := 1; i <= total; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(step):
		}
		if _, _, err := recorder.SetProgress(ctx, i, total, description); err != nil {
			return err
		}
	}
	return nil
}
