package root

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lifeforge/internal/ui"
)

func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect stored XP from the idle forge",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			eng, _, cleanup, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			eng.CatchUp(ctx)

			res, err := eng.CollectPassive(ctx)
			if err != nil {
				return err
			}
			if res.Amount == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ui.Muted.Render("Nothing stored to collect."))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s collected %.0f XP\n", ui.IconCollect, res.Amount)
			if res.LevelUp {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s — level %d → %d\n", ui.IconLevel, ui.BadgeLevelUp, res.LevelBefore, res.LevelAfter)
			}
			return nil
		},
	}
	return cmd
}
