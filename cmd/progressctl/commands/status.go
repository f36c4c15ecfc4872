package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"taskprogress/internal/poller"
	"taskprogress/internal/progress"

	"github.com/spf13/cobra"
)

func newStatusCommand(cfg *poller.Config, open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id>",
		Args:  cobra.ExactArgs(1),
		Short: "Print the current status of a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, closeFn, err := open(*cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			response, err := service.Status(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to read status of %s: %w", args[0], err)
			}
			return printResponse(cmd.OutOrStdout(), response)
		},
	}
}

func newWatchCommand(cfg *poller.Config, open opener) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch <task-id>",
		Args:  cobra.ExactArgs(1),
		Short: "Poll a task until it finishes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return errors.New("interval must be positive")
			}
			service, closeFn, err := open(*cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			var printErr error
			final, err := service.Watch(cmd.Context(), args[0], interval, func(r progress.Response) {
				if printErr == nil {
					printErr = printResponse(out, r)
				}
			})
			if err != nil {
				return fmt.Errorf("failed to watch %s: %w", args[0], err)
			}
			if printErr != nil {
				return printErr
			}
			if final.Success != nil && !*final.Success {
				return fmt.Errorf("task %s finished in state %s", args[0], final.State)
			}
			return nil
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "polling interval")
	return cmd
}

func printResponse(out io.Writer, r progress.Response) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
