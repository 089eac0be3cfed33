package root

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"lifeforge/internal/engine"
	"lifeforge/internal/ui"
)

func newDefineCmd() *cobra.Command {
	var name string
	var cadence string

	cmd := &cobra.Command{
		Use:   "define <activity>",
		Short: "Define a trackable activity (cadence gated by level)",
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

			c, err := engine.ParseCadence(cadence)
			if err != nil {
				return err
			}

			act, err := eng.DefineActivity(ctx, engine.DefineActivityInput{
				ID:      args[0],
				Name:    name,
				Cadence: c,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s defined %s (%s, %s cadence)\n", ui.IconLoop, act.ID, act.Name, act.Cadence)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name (defaults to the id)")
	cmd.Flags().StringVarP(&cadence, "cadence", "c", "daily", "Cadence (daily|weekly|monthly)")
	return cmd
}
