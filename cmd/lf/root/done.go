package root

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"lifeforge/internal/ui"
)

func newDoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "done <activity>",
		Short: "Record a completion for an activity",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("activity id is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			eng, _, cleanup, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			eng.CatchUp(ctx)

			res, err := eng.RecordCompletion(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s +%.0f XP (x%.2f)\n", ui.IconBolt, res.ActivityID, res.XPAwarded, res.Multiplier)
			switch {
			case res.Streak.SamePeriod:
				fmt.Fprintln(cmd.OutOrStdout(), ui.Muted.Render("Already completed this period; streak unchanged, half XP."))
			case res.Streak.Broken:
				fmt.Fprintf(cmd.OutOrStdout(), "%s streak restarted at %d (best %d)\n", ui.IconStreak, res.Streak.CurrentStreak, res.Streak.LongestStreak)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "%s streak %d (best %d)\n", ui.IconStreak, res.Streak.CurrentStreak, res.Streak.LongestStreak)
			}
			if res.LevelUp {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s — level %d → %d\n", ui.IconLevel, ui.BadgeLevelUp, res.LevelBefore, res.LevelAfter)
			}
			return nil
		},
	}
	return cmd
}
