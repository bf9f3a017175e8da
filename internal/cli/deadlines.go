package cli

import (
	"io"

	"github.com/spf13/cobra"

	"study-planner/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "deadlines",
		Short: "Group open tasks into urgent, at risk and upcoming",
		Run:   runDeadlines,
	}

	RootCmd.AddCommand(cmd)
}

func runDeadlines(cmd *cobra.Command, args []string) {
	withUser(cmd, func(a *app, user *model.User) error {
		d, err := a.planner.Deadlines(cmd.Context(), user.ID)
		if err != nil {
			return err
		}
		v := deadlinesView{
			Urgent:   toTaskViews(d.Urgent),
			AtRisk:   toTaskViews(d.AtRisk),
			Upcoming: toTaskViews(d.Upcoming),
		}
		return output(cmd, v, func(w io.Writer) { writeDeadlines(w, v) })
	})
}
