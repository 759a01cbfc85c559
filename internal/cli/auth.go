package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/affluence/pkg/affluence"
)

// prompt reads one line from the command's stdin after printing label.
func prompt(cmd *cobra.Command, r *bufio.Reader, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := r.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.TrimSpace(label), ":"), err)
	}
	return strings.TrimSpace(line), nil
}

// credentials fills email and password from stdin when not given as flags.
func credentials(cmd *cobra.Command, email, password *string) error {
	r := bufio.NewReader(cmd.InOrStdin())
	var err error
	if *email == "" {
		if *email, err = prompt(cmd, r, "Email: "); err != nil {
			return err
		}
	}
	if *password == "" {
		if *password, err = prompt(cmd, r, "Password: "); err != nil {
			return err
		}
	}
	return nil
}

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credentials(cmd, &email, &password); err != nil {
				return err
			}
			tr, err := client.Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			return render(cmd, tr.User, func(w io.Writer) {
				name := email
				if tr.User != nil && tr.User.Username != "" {
					name = tr.User.Username
				}
				fmt.Fprintf(w, "Logged in as %s\n", name)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email or username (prompted if omitted)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var (
		req                           affluence.RegisterRequest
		phone, referral, coupon, ctyp string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account with a coupon code",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.ConfirmPassword == "" {
				req.ConfirmPassword = req.Password
			}
			if phone != "" {
				req.Phone = &phone
			}
			if referral != "" {
				req.ReferralCode = &referral
			}
			if coupon != "" {
				req.CouponCode = &coupon
			}
			req.CouponType = ctyp

			out, err := client.Register(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			return render(cmd, out, func(w io.Writer) {
				fmt.Fprintf(w, "Account %s created. Run `affluence login` to sign in.\n", req.Username)
				if code, _ := out["referral_code"].(string); code != "" {
					fmt.Fprintf(w, "Your referral code: %s\n", code)
				}
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Username, "username", "", "Username")
	f.StringVar(&req.Email, "email", "", "Email address")
	f.StringVar(&req.FullName, "full-name", "", "Full name")
	f.StringVar(&req.Password, "password", "", "Password (at least 6 characters)")
	f.StringVar(&req.ConfirmPassword, "confirm-password", "", "Password confirmation (defaults to --password)")
	f.StringVar(&phone, "phone", "", "Phone number")
	f.StringVar(&referral, "referral-code", "", "Referral code of the user who invited you")
	f.StringVar(&coupon, "coupon", "", "Registration coupon code")
	f.StringVar(&ctyp, "coupon-type", "activity", "Coupon type")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Logout(cmd.Context()); err != nil {
				return err
			}
			success(cmd, "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := client.Profile(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, u, func(w io.Writer) {
				printUser(w, u)
				if meta := sess.ImpersonationMeta(cmd.Context()); meta != nil {
					fmt.Fprintf(w, "\nImpersonating %s. Run `affluence admin stop-impersonation` to return.\n", meta.Label())
				}
			})
		},
	}
}

func printUser(w io.Writer, u *affluence.User) {
	fmt.Fprintf(w, "User:      %s (%s)\n", u.Username, u.ID)
	fmt.Fprintf(w, "  Name:    %s\n", orDash(u.FullName))
	fmt.Fprintf(w, "  Email:   %s\n", u.Email)
	fmt.Fprintf(w, "  Phone:   %s\n", orDash(u.Phone))
	fmt.Fprintf(w, "  Role:    %s\n", orDash(u.Role))
	fmt.Fprintf(w, "  Active:  %s\n", yesNo(u.Active()))
	fmt.Fprintf(w, "  Referral code: %s\n", orDash(u.ReferralCode))
	if u.HasBankDetails() {
		b := u.BankDetails
		fmt.Fprintf(w, "  Bank:    %s, %s (%s)\n", b.BankName, b.AccountName, b.AccountNumber)
	}
	if !u.CreatedAt.IsZero() {
		fmt.Fprintf(w, "  Joined:  %s\n", ago(u.CreatedAt))
	}
}
