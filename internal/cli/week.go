package cli

import (
	"io"

	"github.com/spf13/cobra"

	"study-planner/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Show the planned sessions for the next days",
		Run:   runWeek,
	}

	RootCmd.AddCommand(cmd)
}

func runWeek(cmd *cobra.Command, args []string) {
	withUser(cmd, func(a *app, user *model.User) error {
		plan, err := a.planner.WeeklyView(cmd.Context(), user.ID)
		if err != nil {
			return err
		}
		days := toWeekView(plan, a.planner.Location())
		return output(cmd, days, func(w io.Writer) { writeWeek(w, days) })
	})
}
