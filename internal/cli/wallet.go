package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/me/affluence/pkg/affluence"
)

func newWithdrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "withdraw",
		Aliases: []string{"withdrawals"},
		Short:   "Request and track payouts",
	}

	var (
		amount  float64
		balance string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Request a withdrawal",
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := client.CreateWithdrawal(cmd.Context(), amount, affluence.BalanceType(balance))
			if err != nil {
				return fmt.Errorf("withdraw: %w", err)
			}
			return render(cmd, wd, func(w io.Writer) {
				fmt.Fprintf(w, "Withdrawal %s of %s from %s balance is %s.\n", wd.ID, money(wd.Amount), wd.BalanceType, wd.Status)
			})
		},
	}
	create.Flags().Float64Var(&amount, "amount", 0, "Amount to withdraw (minimum 1,000)")
	create.Flags().StringVar(&balance, "balance", string(affluence.BalanceActivity), "Balance to draw from (activity, affiliate, referral)")

	var skip, limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List your withdrawals",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := client.Withdrawals(cmd.Context(), skip, limit)
			if err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) { printWithdrawals(w, out, false) })
		},
	}
	addPageFlags(list, &skip, &limit)

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one withdrawal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := client.Withdrawal(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd, wd, func(w io.Writer) { printWithdrawals(w, []affluence.Withdrawal{*wd}, false) })
		},
	}

	cmd.AddCommand(create, list, get)
	return cmd
}

func printWithdrawals(w io.Writer, list []affluence.Withdrawal, withUser bool) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No withdrawals.")
		return
	}
	header := []string{"ID", "AMOUNT", "BALANCE", "STATUS", "NOTE", "REQUESTED"}
	if withUser {
		header = append([]string{"ID", "USER"}, header[1:]...)
	}
	rows := make([][]string, 0, len(list))
	for _, wd := range list {
		row := []string{money(wd.Amount), string(wd.BalanceType), string(wd.Status), orDash(wd.AdminNote), ago(wd.CreatedAt)}
		if withUser {
			row = append([]string{wd.ID.String(), orDash(wd.Username)}, row...)
		} else {
			row = append([]string{wd.ID.String()}, row...)
		}
		rows = append(rows, row)
	}
	table(w, header, rows)
}

func newLoansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "loans",
		Aliases: []string{"loan"},
		Short:   "Apply for and track loans",
	}

	var req affluence.LoanRequest
	apply := &cobra.Command{
		Use:   "apply",
		Short: "Apply for a loan",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := client.ApplyLoan(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("apply for loan: %w", err)
			}
			return render(cmd, l, func(w io.Writer) {
				fmt.Fprintf(w, "Loan %s of %s over %d months submitted (%s).\n", l.ID, money(l.Amount), l.DurationMonths, l.Status)
				fmt.Fprintf(w, "Total repayable: %s\n", money(l.TotalAmount))
			})
		},
	}
	apply.Flags().Float64Var(&req.Amount, "amount", 0, "Loan amount")
	apply.Flags().IntVar(&req.DurationMonths, "months", 0, "Repayment period in months")
	apply.Flags().StringVar(&req.Purpose, "purpose", "", "What the loan is for")

	var skip, limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List your loans",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := client.Loans(cmd.Context(), skip, limit)
			if err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) { printLoans(w, out) })
		},
	}
	addPageFlags(list, &skip, &limit)

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := client.Loan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd, l, func(w io.Writer) { printLoans(w, []affluence.Loan{*l}) })
		},
	}

	cmd.AddCommand(apply, list, get)
	return cmd
}

func printLoans(w io.Writer, list []affluence.Loan) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No loans.")
		return
	}
	rows := make([][]string, 0, len(list))
	for _, l := range list {
		rows = append(rows, []string{
			l.ID.String(), money(l.Amount), strconv.Itoa(l.DurationMonths), money(l.TotalAmount),
			l.Status, l.Purpose, ago(l.CreatedAt),
		})
	}
	table(w, []string{"ID", "AMOUNT", "MONTHS", "TOTAL", "STATUS", "PURPOSE", "APPLIED"}, rows)
}
