package cli

import (
	"io"

	"github.com/spf13/cobra"

	"study-planner/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show completion and estimate statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	withUser(cmd, func(a *app, user *model.User) error {
		stats, err := a.planner.Stats(cmd.Context(), user.ID)
		if err != nil {
			return err
		}
		return output(cmd, stats, func(w io.Writer) { writeStats(w, stats) })
	})
}
