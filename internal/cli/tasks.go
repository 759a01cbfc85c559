package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/affluence/pkg/affluence"
)

func newTasksCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Browse, take and claim tasks",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List tasks with your status for each",
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(cmd, interval, func(ctx context.Context) error {
				board, err := client.TaskBoard(ctx)
				if err != nil {
					return err
				}
				return render(cmd, board, func(w io.Writer) {
					if len(board) == 0 {
						fmt.Fprintln(w, "No tasks available.")
						return
					}
					rows := make([][]string, 0, len(board))
					for _, t := range board {
						rows = append(rows, []string{
							t.ID.String(), t.Title, money(t.Amount), string(t.RewardType),
							strconv.Itoa(t.TimeEstimate) + "m", string(t.UserStatus),
						})
					}
					table(w, []string{"ID", "TITLE", "REWARD", "BALANCE", "TIME", "STATUS"}, rows)
				})
			})
		},
	}
	addWatchFlag(list, &interval)

	mine := &cobra.Command{
		Use:   "mine",
		Short: "List tasks you have taken",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := client.MyTasks(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) {
				if len(out) == 0 {
					fmt.Fprintln(w, "You have not taken any tasks.")
					return
				}
				rows := make([][]string, 0, len(out))
				for _, ut := range out {
					title := "-"
					if ut.Task != nil {
						title = ut.Task.Title
					}
					rows = append(rows, []string{ut.TaskID.String(), title, string(ut.Status), ago(ut.TakenAt)})
				}
				table(w, []string{"TASK", "TITLE", "STATUS", "TAKEN"}, rows)
			})
		},
	}

	cmd.AddCommand(list, mine,
		taskActionCmd("take", "Take a task"),
		taskActionCmd("claim", "Claim the reward of a taken task"),
	)
	return cmd
}

// taskActionCmd builds take and claim. client only exists once
// PersistentPreRunE has run, so the action is picked inside RunE.
func taskActionCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <task_id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				resp *affluence.TaskActionResponse
				err  error
			)
			if name == "claim" {
				resp, err = client.ClaimTask(cmd.Context(), args[0])
			} else {
				resp, err = client.TakeTask(cmd.Context(), args[0])
			}
			if err != nil {
				return fmt.Errorf("%s task %s: %w", name, args[0], err)
			}
			return render(cmd, resp, func(w io.Writer) {
				fmt.Fprintln(w, orDash(resp.Message))
				if resp.AmountEarned > 0 {
					fmt.Fprintf(w, "Earned %s to your %s balance.\n", money(resp.AmountEarned), resp.BalanceType)
				}
			})
		},
	}
}
