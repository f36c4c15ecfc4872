package commands

import (
	"taskprogress/internal/common"
	"taskprogress/internal/poller"
	"taskprogress/internal/progress"

	"github.com/spf13/cobra"
)

// opener connects to the result backend selected by cfg
type opener func(cfg poller.Config) (*poller.Service, func() error, error)

func openService(cfg poller.Config) (*poller.Service, func() error, error) {
	source, closeFn, err := poller.NewSource(cfg)
	if err != nil {
		return nil, nil, err
	}
	reader := progress.NewReader(progress.WithLogger(common.SetupLogging()))
	return poller.NewService(source, reader), closeFn, nil
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(openService)
}

func newRootCmd(open opener) *cobra.Command {
	cfg := poller.LoadConfig()

	rootCmd := &cobra.Command{
		Use:           "progressctl",
		Short:         "Inspect and simulate progress of background tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfg.Backend, "backend", "b", cfg.Backend, "result backend (asynq or celery)")
	rootCmd.PersistentFlags().StringVarP(&cfg.QueueName, "queue", "q", cfg.QueueName, "asynq queue name")

	rootCmd.AddCommand(
		newStatusCommand(&cfg, open),
		newWatchCommand(&cfg, open),
		newSimulateCommand(),
	)

	return rootCmd
}
