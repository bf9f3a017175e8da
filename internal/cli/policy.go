package cli

import (
	"io"

	"github.com/spf13/cobra"

	"study-planner/internal/model"
	"study-planner/internal/planner"
)

func init() {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Show or change the study policy",
		Long:  "Without flags prints the stored policy. Any of --pomodoro, --break, --max or --cram updates it.",
		Run:   runPolicy,
	}
	addPolicyFlags(cmd)

	RootCmd.AddCommand(cmd)
}

func runPolicy(cmd *cobra.Command, args []string) {
	override := policyOverride(cmd)

	withUser(cmd, func(a *app, user *model.User) error {
		var (
			p   planner.Policy
			err error
		)
		if override == (planner.PolicyOverride{}) {
			p, err = a.policies.Get(cmd.Context(), user.ID)
		} else {
			p, err = a.policies.Update(cmd.Context(), user.ID, override)
		}
		if err != nil {
			return err
		}
		return output(cmd, p, func(w io.Writer) { writePolicy(w, p) })
	})
}

func addPolicyFlags(cmd *cobra.Command) {
	cmd.Flags().Int("pomodoro", 0, "Work session length in minutes")
	cmd.Flags().Int("break", 0, "Break length in minutes")
	cmd.Flags().Int("max", 0, "Maximum work minutes per day")
	cmd.Flags().Bool("cram", false, "Skip breaks that would cost a whole session")
}

// policyOverride collects only the flags that were set explicitly.
func policyOverride(cmd *cobra.Command) planner.PolicyOverride {
	var o planner.PolicyOverride
	intFlag := func(name string) *int {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		v, _ := cmd.Flags().GetInt(name)
		return &v
	}
	o.PomodoroMins = intFlag("pomodoro")
	o.BreakMins = intFlag("break")
	o.MaxDailyMins = intFlag("max")
	if cmd.Flags().Changed("cram") {
		v, _ := cmd.Flags().GetBool("cram")
		o.Cram = &v
	}
	return o
}
