package cmd

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/marcus/fieldsync/internal/output"
	"github.com/spf13/cobra"
)

var discardCmd = &cobra.Command{
	Use:     "discard <id>",
	Aliases: []string{"rm"},
	Short:   "Permanently remove a report from the queue",
	Long: `Removes the report without delivering it. Any scheduled retry is
cancelled. This is the only way a report leaves the queue undelivered.`,
	GroupID: "queue",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)

		rec, err := e.Get(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			confirmed := false
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewConfirm().
						Title(fmt.Sprintf("Discard %s?", rec.ID)).
						Description("The submission will be lost permanently.").
						Affirmative("Discard").
						Negative("Keep").
						Value(&confirmed),
				),
			)
			if err := form.Run(); err != nil {
				return err
			}
			if !confirmed {
				output.Info("Kept %s", rec.ID)
				return nil
			}
		}

		if err := e.Discard(rec.ID); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Discarded %s", rec.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(discardCmd)
	discardCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
}
