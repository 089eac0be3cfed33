package root

import (
	"context"

	"github.com/spf13/cobra"

	"lifeforge/internal/scheduler"
	"lifeforge/internal/tui"
)

func newBoardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Open the live TUI dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			eng, cfg, cleanup, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			sched := scheduler.New(eng, cfg.SyncInterval, newLogger())
			defer sched.Close()

			return tui.RunDashboard(ctx, eng, sched, cmd.OutOrStdout())
		},
	}
	return cmd
}
