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

func newDashboardCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show balances and activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(cmd, interval, func(ctx context.Context) error {
				d, err := client.Dashboard(ctx)
				if err != nil {
					return err
				}
				return render(cmd, d, func(w io.Writer) {
					b := d.Balances()
					if d.User != nil {
						fmt.Fprintf(w, "Welcome, %s\n", orDash(d.User.FullName))
					}
					fmt.Fprintf(w, "Total balance:      %s\n", money(b.Total))
					fmt.Fprintf(w, "  Activity:         %s\n", money(b.Activity))
					fmt.Fprintf(w, "  Affiliate:        %s\n", money(b.Affiliate))
					fmt.Fprintf(w, "Total earned:       %s\n", money(d.TotalEarned()))
					fmt.Fprintf(w, "Referrals:          %d\n", d.TotalReferrals())
					fmt.Fprintf(w, "Completed tasks:    %d\n", d.CompletedTasks)
					fmt.Fprintf(w, "Pending withdrawals: %d\n", d.PendingWithdrawals)
				})
			})
		},
	}
	addWatchFlag(cmd, &interval)
	return cmd
}

func newReferralsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "referrals",
		Short: "Show your referral code and referred users",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := client.Referrals(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, info, func(w io.Writer) {
				fmt.Fprintf(w, "Referral code:  %s\n", info.ReferralCode)
				if info.ReferralLink != "" {
					fmt.Fprintf(w, "Referral link:  %s\n", info.ReferralLink)
				}
				fmt.Fprintf(w, "Referrals:      %d\n", info.TotalReferrals)
				fmt.Fprintf(w, "Earned:         %s\n", money(info.TotalEarned))
				if len(info.Referrals) == 0 {
					return
				}
				fmt.Fprintln(w)
				rows := make([][]string, 0, len(info.Referrals))
				for _, u := range info.Referrals {
					rows = append(rows, []string{u.Username, orDash(u.FullName), ago(u.CreatedAt)})
				}
				table(w, []string{"USERNAME", "NAME", "JOINED"}, rows)
			})
		},
	}
}

func newTopEarnersCmd() *cobra.Command {
	var (
		limit    int
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "top-earners",
		Short: "Show the affiliate leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(cmd, interval, func(ctx context.Context) error {
				list, err := client.TopEarners(ctx, limit)
				if err != nil {
					return err
				}
				return render(cmd, list, func(w io.Writer) {
					if len(list) == 0 {
						fmt.Fprintln(w, "No earners yet.")
						return
					}
					rows := make([][]string, 0, len(list))
					for i, e := range list {
						rows = append(rows, []string{
							strconv.Itoa(i + 1), e.Username, orDash(e.FullName),
							money(e.AffiliateBalance), strconv.Itoa(e.ReferralCount),
						})
					}
					table(w, []string{"#", "USERNAME", "NAME", "AFFILIATE", "REFERRALS"}, rows)
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of earners to show")
	addWatchFlag(cmd, &interval)
	return cmd
}

// addPageFlags registers --skip and --limit.
func addPageFlags(cmd *cobra.Command, skip, limit *int) {
	cmd.Flags().IntVar(skip, "skip", 0, "Number of records to skip")
	cmd.Flags().IntVar(limit, "limit", 20, "Maximum number of records")
}

func newNotificationsCmd() *cobra.Command {
	var skip, limit int

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := client.Notifications(cmd.Context(), skip, limit)
			if err != nil {
				return err
			}
			return render(cmd, list, func(w io.Writer) {
				if len(list) == 0 {
					fmt.Fprintln(w, "No notifications.")
					return
				}
				rows := make([][]string, 0, len(list))
				for _, n := range list {
					unread := "*"
					if n.IsRead {
						unread = ""
					}
					rows = append(rows, []string{n.ID.String(), unread, n.Title, n.Message, ago(n.CreatedAt)})
				}
				table(w, []string{"ID", "NEW", "TITLE", "MESSAGE", "WHEN"}, rows)
			})
		},
	}
	addPageFlags(cmd, &skip, &limit)

	cmd.AddCommand(&cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.MarkNotificationRead(cmd.Context(), args[0]); err != nil {
				return err
			}
			success(cmd, "Notification %s marked as read.", args[0])
			return nil
		},
	})
	return cmd
}

func newTransactionsCmd() *cobra.Command {
	var skip, limit int

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List balance transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := client.Transactions(cmd.Context(), skip, limit)
			if err != nil {
				return err
			}
			return render(cmd, list, func(w io.Writer) {
				if len(list) == 0 {
					fmt.Fprintln(w, "No transactions.")
					return
				}
				table(w, []string{"ID", "TYPE", "BALANCE", "AMOUNT", "DESCRIPTION", "WHEN"}, transactionRows(list))
			})
		},
	}
	addPageFlags(cmd, &skip, &limit)
	return cmd
}

func transactionRows(list []affluence.Transaction) [][]string {
	rows := make([][]string, 0, len(list))
	for _, t := range list {
		rows = append(rows, []string{
			t.ID.String(), t.Type, string(t.BalanceType), money(t.Amount), t.Description, ago(t.CreatedAt),
		})
	}
	return rows
}
