package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"study-planner/internal/model"
	"study-planner/internal/planner"
	"study-planner/internal/repository"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List a user's tasks",
	Run:   runTasks,
}

func init() {
	tasksCmd.Flags().String("status", "", "Only tasks in this status (todo, doing, done, blocked)")
	tasksCmd.Flags().String("course", "", "Only tasks of this course")

	RootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) {
	status, _ := cmd.Flags().GetString("status")
	course, _ := cmd.Flags().GetString("course")

	filter := repository.TaskFilter{Course: course}
	if status != "" {
		s, err := planner.ParseStatus(status)
		if err != nil {
			exitErr("status", err)
		}
		filter.Statuses = []string{string(s)}
	}

	withUser(cmd, func(a *app, user *model.User) error {
		tasks, err := a.tasks.ListTasks(cmd.Context(), user.ID, filter)
		if err != nil {
			return err
		}
		views := make([]taskView, 0, len(tasks))
		for _, t := range tasks {
			views = append(views, toTaskView(t))
		}
		return output(cmd, views, func(w io.Writer) {
			for _, v := range views {
				fmt.Fprintf(w, "#%-4d %-7s p%d  %4d min  due %s  %s\n", v.ID, v.Status, v.Priority, v.EstMins, v.DueAt.Format("2006-01-02 15:04"), v.Title)
			}
		})
	})
}
