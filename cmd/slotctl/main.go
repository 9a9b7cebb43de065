package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-slot-queue/internal/app"
	"github.com/hackgods/clinic-slot-queue/internal/config"
	"github.com/hackgods/clinic-slot-queue/internal/logging"
)

func main() {
	if err := newRootCmd(openStack).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// opener builds the booking stack a command operates on.
type opener func(ctx context.Context) (*app.Stack, error)

func openStack(ctx context.Context) (*app.Stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, "slotctl").Level(zerolog.WarnLevel)
	return app.Build(ctx, cfg, logger)
}

func newRootCmd(open opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "slotctl",
		Short:         "Operate clinic slots and queues",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(provisionCmd(open))
	rootCmd.AddCommand(provisionDaysCmd(open))
	rootCmd.AddCommand(suspendCmd(open, true))
	rootCmd.AddCommand(suspendCmd(open, false))
	rootCmd.AddCommand(showCmd(open))
	rootCmd.AddCommand(queueCmd(open))
	rootCmd.AddCommand(expireCmd(open))

	return rootCmd
}
