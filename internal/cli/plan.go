package cli

import (
	"io"

	"github.com/spf13/cobra"

	"study-planner/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate a fresh plan for every open task",
		Long:  "Discards all future sessions and packs open tasks again in urgency order. Policy flags apply to this run only.",
		Run:   runPlan,
	}
	addPolicyFlags(cmd)

	RootCmd.AddCommand(cmd)
}

func runPlan(cmd *cobra.Command, args []string) {
	override := policyOverride(cmd)

	withUser(cmd, func(a *app, user *model.User) error {
		res, err := a.planner.GenerateWeeklyPlan(cmd.Context(), user.ID, override)
		if err != nil {
			return err
		}
		v := toReplanView(res, a.planner.Location())
		return output(cmd, v, func(w io.Writer) { writeReplan(w, v) })
	})
}
