package cli

import (
	"io"

	"github.com/spf13/cobra"

	"study-planner/internal/model"
	"study-planner/internal/planner"
)

func init() {
	cmd := &cobra.Command{
		Use:   "replan",
		Short: "Recover missed sessions and rebuild the plan",
		Long:  "Without --task every open task is replanned. With --task only that task gets fresh sessions, around the slots other tasks already hold.",
		Run:   runReplan,
	}
	cmd.Flags().Uint("task", 0, "Replan a single task")

	RootCmd.AddCommand(cmd)
}

func runReplan(cmd *cobra.Command, args []string) {
	taskID, _ := cmd.Flags().GetUint("task")

	withUser(cmd, func(a *app, user *model.User) error {
		var (
			res planner.ReplanResult
			err error
		)
		if taskID != 0 {
			res, err = a.planner.ReplanTask(cmd.Context(), user.ID, taskID)
		} else {
			res, err = a.planner.ReplanUser(cmd.Context(), user.ID)
		}
		if err != nil {
			return err
		}
		v := toReplanView(res, a.planner.Location())
		return output(cmd, v, func(w io.Writer) { writeReplan(w, v) })
	})
}
