package root

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lifeforge/internal/engine"
	"lifeforge/internal/ui"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show character progression, streaks and the idle forge",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			eng, _, cleanup, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			// Each CLI invocation is a resume: replay the offline gap first.
			if res := eng.CatchUp(ctx); !res.Skipped {
				fmt.Fprintln(cmd.OutOrStdout(), ui.Muted.Render(fmt.Sprintf("%s caught up %.1fh offline (+%.0f XP banked)", ui.IconClock, res.ElapsedHours, res.XPAccrued)))
				fmt.Fprintln(cmd.OutOrStdout(), "")
			}

			rec := eng.GlobalProgress()
			fmt.Fprintln(cmd.OutOrStdout(), ui.Heading(ui.IconSpark, "Character"))
			fmt.Fprintln(cmd.OutOrStdout(), ui.LabelValue("Level", rec.Level))
			fmt.Fprintln(cmd.OutOrStdout(), ui.LabelValue("XP", fmt.Sprintf("%.0f / %.0f to next", rec.Experience, rec.ExperienceToNext)))
			fmt.Fprintln(cmd.OutOrStdout(), ui.LabelValue("Total XP", fmt.Sprintf("%.0f", eng.TotalXP())))
			fmt.Fprintln(cmd.OutOrStdout(), ui.LabelValue("Multiplier", fmt.Sprintf("x%.2f", eng.EffectiveMultiplier())))
			fmt.Fprintln(cmd.OutOrStdout(), "")

			p := eng.Passive()
			fmt.Fprintln(cmd.OutOrStdout(), ui.H2.Render(ui.IconIdle+" Idle forge"))
			if !p.Unlocked {
				fmt.Fprintf(cmd.OutOrStdout(), "- %s %s\n", ui.Bad.Render("locked"), ui.Muted.Render(fmt.Sprintf("(unlocks at level %d)", engine.LevelPassive)))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "- %s %.0f / %.0f  %s\n", ui.Key.Render("Stored:"), p.Stored, p.Capacity, ui.Bar(storedRatio(p.Stored, p.Capacity), 20))
				fmt.Fprintf(cmd.OutOrStdout(), "- %s %.1f XP/h\n", ui.Key.Render("Rate:"), p.RatePerHour)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "")

			views := eng.Activities()
			fmt.Fprintln(cmd.OutOrStdout(), ui.H2.Render(ui.IconStreak+" Activities"))
			if len(views) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ui.Muted.Render("- none yet; `lf define <id>` or just `lf done <id>`"))
			}
			for _, v := range views {
				fmt.Fprintf(cmd.OutOrStdout(), "- %-18s streak %s (best %d)  lvl %d  %s\n",
					v.Activity.Name,
					ui.StreakText(v.Streak.CurrentStreak),
					v.Streak.LongestStreak,
					v.Progress.Level,
					ui.Muted.Render(v.Activity.Cadence))
			}
			return nil
		},
	}
	return cmd
}

func storedRatio(stored, capacity float64) float64 {
	if capacity <= 0 {
		return 0
	}
	return stored / capacity
}
