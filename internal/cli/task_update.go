package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"study-planner/internal/model"
	"study-planner/internal/planner"
	"study-planner/internal/service"
)

type taskUpdateView struct {
	Task   taskView    `json:"task"`
	Replan *replanView `json:"replan,omitempty"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a task and place its sessions again",
		Long:  "Only the flags given are changed. A new estimate, due time or status replans the task around the slots other tasks already hold.",
		Args:  cobra.ExactArgs(1),
		Run:   runTaskUpdate,
	}
	addTaskFlags(cmd)

	tasksCmd.AddCommand(cmd)
}

func addTaskFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "New title")
	cmd.Flags().String("course", "", "Move the task to this course (empty clears it)")
	cmd.Flags().String("notes", "", "New notes")
	cmd.Flags().String("due", "", `Due time, RFC 3339 or "2006-01-02 15:04" in the planner timezone`)
	cmd.Flags().Int("est", 0, "Estimated minutes")
	cmd.Flags().Int("priority", 0, "Priority from 1 (highest) to 5")
	cmd.Flags().String("status", "", "todo, doing, done or blocked")
}

func runTaskUpdate(cmd *cobra.Command, args []string) {
	taskID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		exitErr("task id", err)
	}

	withUser(cmd, func(a *app, user *model.User) error {
		patch, err := taskPatch(cmd, a.planner.Location())
		if err != nil {
			return err
		}
		task, err := a.tasks.UpdateTask(cmd.Context(), user.ID, uint(taskID), patch)
		if err != nil {
			return err
		}

		v := taskUpdateView{Task: toTaskView(*task)}
		if patch.AffectsPlan() && planner.Status(task.Status).Schedulable() {
			res, err := a.planner.PlanTask(cmd.Context(), user.ID, task.ID)
			if err != nil {
				return err
			}
			rv := toReplanView(res, a.planner.Location())
			v.Replan = &rv
		}
		return output(cmd, v, func(w io.Writer) {
			fmt.Fprintf(w, "#%d %s updated\n", v.Task.ID, v.Task.Title)
			if v.Replan != nil {
				writeReplan(w, *v.Replan)
			}
		})
	})
}

// taskPatch builds a patch from the flags the caller actually set.
func taskPatch(cmd *cobra.Command, loc *time.Location) (service.TaskPatch, error) {
	var patch service.TaskPatch
	flags := cmd.Flags()
	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		patch.Title = &v
	}
	if flags.Changed("course") {
		v, _ := flags.GetString("course")
		patch.Course = &v
	}
	if flags.Changed("notes") {
		v, _ := flags.GetString("notes")
		patch.Notes = &v
	}
	if flags.Changed("due") {
		raw, _ := flags.GetString("due")
		due, err := parseTime(raw, loc)
		if err != nil {
			return patch, err
		}
		patch.DueAt = &due
	}
	if flags.Changed("est") {
		v, _ := flags.GetInt("est")
		patch.EstMins = &v
	}
	if flags.Changed("priority") {
		v, _ := flags.GetInt("priority")
		patch.Priority = &v
	}
	if flags.Changed("status") {
		v, _ := flags.GetString("status")
		patch.Status = &v
	}
	if patch == (service.TaskPatch{}) {
		return patch, fmt.Errorf("nothing to change")
	}
	return patch, nil
}

func parseTime(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("due %q: want RFC 3339 or 2006-01-02 15:04", raw)
	}
	return t, nil
}
