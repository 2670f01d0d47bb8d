package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show or reset the daily model call quotas",
}

var quotaStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show used and remaining daily calls per model",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildAppForCommand()
		if err != nil {
			return err
		}
		defer a.close()

		states, err := a.quotas.All(context.Background())
		if err != nil {
			return err
		}
		if len(states) == 0 {
			fmt.Println("No quota counters yet. Counters appear after the first model call.")
			return nil
		}

		for _, st := range states {
			fmt.Printf("%-28s %6d/%d used, %6d remaining, resets %s\n",
				st.Model, st.Count, st.Ceiling, st.Remaining(), st.ResetAt.Format(time.RFC3339))
		}
		return nil
	},
}

var quotaResetCmd = &cobra.Command{
	Use:   "reset [model]",
	Short: "Reset the counter for one model to zero",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildAppForCommand()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.quotas.Reset(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Reset %s.\n", args[0])
		return nil
	},
}

func init() {
	quotaCmd.AddCommand(quotaStatusCmd)
	quotaCmd.AddCommand(quotaResetCmd)
	rootCmd.AddCommand(quotaCmd)
}
