package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/me/affluence/pkg/affluence"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := client.Profile(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, u, func(w io.Writer) { printUser(w, u) })
		},
	}
	cmd.AddCommand(newProfileUpdateCmd(), newProfileBankCmd(), newProfilePasswordCmd())
	return cmd
}

func newProfileUpdateCmd() *cobra.Command {
	var fullName, email, phone string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change name, email or phone",
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd affluence.ProfileUpdate
			if cmd.Flags().Changed("full-name") {
				upd.FullName = &fullName
			}
			if cmd.Flags().Changed("email") {
				upd.Email = &email
			}
			if cmd.Flags().Changed("phone") {
				upd.Phone = &phone
			}
			if upd.FullName == nil && upd.Email == nil && upd.Phone == nil {
				return fmt.Errorf("nothing to update: pass --full-name, --email or --phone")
			}
			u, err := client.UpdateProfile(cmd.Context(), upd)
			if err != nil {
				return fmt.Errorf("update profile: %w", err)
			}
			return render(cmd, u, func(w io.Writer) {
				fmt.Fprintln(w, "Profile updated.")
				printUser(w, u)
			})
		},
	}
	cmd.Flags().StringVar(&fullName, "full-name", "", "Full name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&phone, "phone", "", "Phone number")
	return cmd
}

func newProfileBankCmd() *cobra.Command {
	var b affluence.BankDetails

	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Set the payout bank account",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := client.UpdateBankDetails(cmd.Context(), b)
			if err != nil {
				return fmt.Errorf("update bank details: %w", err)
			}
			return render(cmd, u, func(w io.Writer) {
				fmt.Fprintf(w, "Bank details saved: %s, %s (%s)\n", b.BankName, b.AccountName, b.AccountNumber)
			})
		},
	}
	cmd.Flags().StringVar(&b.BankName, "bank-name", "", "Bank name")
	cmd.Flags().StringVar(&b.AccountName, "account-name", "", "Account holder name")
	cmd.Flags().StringVar(&b.AccountNumber, "account-number", "", "10-digit account number")
	return cmd
}

func newProfilePasswordCmd() *cobra.Command {
	var current, next, confirm string

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change your password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if confirm == "" {
				confirm = next
			}
			if err := client.ChangePassword(cmd.Context(), current, next, confirm); err != nil {
				return fmt.Errorf("change password: %w", err)
			}
			success(cmd, "Password changed.")
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "Current password")
	cmd.Flags().StringVar(&next, "new", "", "New password")
	cmd.Flags().StringVar(&confirm, "confirm", "", "New password again (defaults to --new)")
	return cmd
}
