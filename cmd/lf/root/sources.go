package root

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lifeforge/internal/ui"
)

func newSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List active multiplier sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			eng, _, cleanup, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			eng.CatchUp(ctx)

			sources := eng.ActiveSources()
			fmt.Fprintln(cmd.OutOrStdout(), ui.Heading(ui.IconBolt, "Multiplier sources"))
			if len(sources) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ui.Muted.Render("- none active; effective multiplier is x1.00"))
			}
			for _, s := range sources {
				line := fmt.Sprintf("- %-24s %-12s +%.2f", s.ID, string(s.Kind), s.Value)
				if s.ExpiresAt != nil {
					line += ui.Muted.Render("  expires " + s.ExpiresAt.Format("2006-01-02 15:04"))
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "")
			fmt.Fprintln(cmd.OutOrStdout(), ui.LabelValue("Effective", fmt.Sprintf("x%.2f", eng.EffectiveMultiplier())))
			return nil
		},
	}
	return cmd
}
