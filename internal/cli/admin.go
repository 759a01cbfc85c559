package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/affluence/internal/export"
	"github.com/me/affluence/pkg/affluence"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administer users, payouts and content",
	}

	cmd.AddCommand(
		newAdminLoginCmd(),
		newAdminDashboardCmd(),
		newAdminUsersCmd(),
		newAdminUserCmd(),
		newAdminRoleCmd(),
		newAdminStatusCmd(),
		newAdminDeleteCmd(),
		newImpersonateCmd(),
		newStopImpersonationCmd(),
		newAdminWithdrawalsCmd(),
		newProcessCmd(),
		newAdminLogsCmd(),
		newClickToEarnCmd(),
		newExportCmd(),
	)
	for _, name := range affluence.AdminResources {
		cmd.AddCommand(newResourceCmd(name))
	}
	return cmd
}

func newAdminLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credentials(cmd, &email, &password); err != nil {
				return err
			}
			tr, err := client.AdminLogin(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("admin login: %w", err)
			}
			return render(cmd, tr.User, func(w io.Writer) {
				fmt.Fprintf(w, "Logged in as admin %s\n", email)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Admin email (prompted if omitted)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	return cmd
}

func newAdminDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show platform statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := client.AdminDashboard(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, stats, func(w io.Writer) { printFields(w, stats) })
		},
	}
}

// printFields writes a flat map as sorted "key: value" lines.
func printFields(w io.Writer, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %v\n", k, m[k])
	}
}

func newAdminUsersCmd() *cobra.Command {
	var (
		skip, limit int
		role        string
	)
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := client.AdminUsers(cmd.Context(), skip, limit, role)
			if err != nil {
				return err
			}
			return render(cmd, users, func(w io.Writer) {
				if len(users) == 0 {
					fmt.Fprintln(w, "No users.")
					return
				}
				rows := make([][]string, 0, len(users))
				for _, u := range users {
					rows = append(rows, []string{
						u.ID.String(), u.Username, u.Email, orDash(u.Role), yesNo(u.Active()),
						money(u.TotalBalance), ago(u.CreatedAt),
					})
				}
				table(w, []string{"ID", "USERNAME", "EMAIL", "ROLE", "ACTIVE", "BALANCE", "JOINED"}, rows)
			})
		},
	}
	addPageFlags(cmd, &skip, &limit)
	cmd.Flags().StringVar(&role, "role", "", "Only users with this role")
	return cmd
}

func newAdminUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user <id>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := client.AdminUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd, u, func(w io.Writer) { printUser(w, u) })
		},
	}
}

func newAdminRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "role <id> <role>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.UpdateUserRole(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("update role: %w", err)
			}
			success(cmd, "User %s is now %s.", args[0], args[1])
			return nil
		},
	}
}

func newAdminStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "status <id> active|inactive",
		Short:     "Enable or disable a user account",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"active", "inactive"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var active bool
			switch strings.ToLower(args[1]) {
			case "active", "enable", "enabled":
				active = true
			case "inactive", "disable", "disabled":
			default:
				return fmt.Errorf("status must be active or inactive, got %q", args[1])
			}
			if err := client.UpdateUserStatus(cmd.Context(), args[0], active); err != nil {
				return fmt.Errorf("update status: %w", err)
			}
			success(cmd, "User %s is now %s.", args[0], strings.ToLower(args[1]))
			return nil
		},
	}
}

func newAdminDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete user %s without --yes", args[0])
			}
			if err := client.DeleteUser(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete user: %w", err)
			}
			success(cmd, "User %s deleted.", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}

func newImpersonateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "impersonate <user_id>",
		Short: "Act as another user; the admin session is kept aside",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := client.Impersonate(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("impersonate: %w", err)
			}
			return render(cmd, meta, func(w io.Writer) {
				fmt.Fprintf(w, "Now impersonating %s. Run `affluence admin stop-impersonation` to return.\n", meta.Label())
			})
		},
	}
}

func newStopImpersonationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop-impersonation",
		Short: "Return to the admin session",
		RunE: func(cmd *cobra.Command, args []string) error {
			restored, err := client.StopImpersonation(cmd.Context())
			if err != nil {
				return err
			}
			if !restored {
				return fmt.Errorf("not impersonating anyone; no admin session to restore, so you have been signed out")
			}
			success(cmd, "Admin session restored.")
			return nil
		},
	}
}

func newAdminWithdrawalsCmd() *cobra.Command {
	var (
		skip, limit int
		status      string
	)
	cmd := &cobra.Command{
		Use:   "withdrawals",
		Short: "List withdrawals from all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := client.AdminWithdrawals(cmd.Context(), skip, limit, affluence.WithdrawalStatus(status))
			if err != nil {
				return err
			}
			return render(cmd, list, func(w io.Writer) { printWithdrawals(w, list, true) })
		},
	}
	addPageFlags(cmd, &skip, &limit)
	cmd.Flags().StringVar(&status, "status", "", "Only withdrawals in this status (pending, approved, rejected)")
	return cmd
}

func newProcessCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "process <withdrawal_id> approved|rejected",
		Short: "Approve or reject a pending withdrawal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := affluence.WithdrawalStatus(strings.ToLower(args[1]))
			switch status {
			case "approve":
				status = affluence.WithdrawalApproved
			case "reject":
				status = affluence.WithdrawalRejected
			}
			wd, err := client.ProcessWithdrawal(cmd.Context(), args[0], status, note)
			if err != nil {
				return fmt.Errorf("process withdrawal: %w", err)
			}
			return render(cmd, wd, func(w io.Writer) {
				fmt.Fprintf(w, "Withdrawal %s %s.\n", wd.ID, wd.Status)
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "Note shown to the user")
	return cmd
}

func newAdminLogsCmd() *cobra.Command {
	var skip, limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the admin audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			logs, err := client.AdminLogs(cmd.Context(), skip, limit)
			if err != nil {
				return err
			}
			return render(cmd, logs, func(w io.Writer) {
				if len(logs) == 0 {
					fmt.Fprintln(w, "No log entries.")
					return
				}
				rows := make([][]string, 0, len(logs))
				for _, l := range logs {
					rows = append(rows, []string{l.ID.String(), l.Action, orDash(l.Details), ago(l.CreatedAt)})
				}
				table(w, []string{"ID", "ACTION", "DETAILS", "WHEN"}, rows)
			})
		},
	}
	addPageFlags(cmd, &skip, &limit)
	return cmd
}

func newClickToEarnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "click-to-earn",
		Short: "Show the click-to-earn configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := client.ClickToEarn(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, list, func(w io.Writer) { printRecords(w, list) })
		},
	}

	var sets []string
	set := &cobra.Command{
		Use:   "set",
		Short: "Update click-to-earn fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseFields(sets)
			if err != nil {
				return err
			}
			out, err := client.UpdateClickToEarn(cmd.Context(), data)
			if err != nil {
				return fmt.Errorf("update click-to-earn: %w", err)
			}
			return render(cmd, out, func(w io.Writer) { printFields(w, out) })
		},
	}
	set.Flags().StringArrayVar(&sets, "set", nil, "Field to set as key=value (repeatable; JSON values allowed)")
	cmd.AddCommand(set)
	return cmd
}

// newResourceCmd builds list/create/update/delete for one admin collection.
func newResourceCmd(name string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: "Manage " + name,
	}
	resource := func() (*affluence.AdminResource, error) {
		return client.Resource(name)
	}

	var skip, limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List " + name,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := resource()
			if err != nil {
				return err
			}
			recs, err := r.List(cmd.Context(), skip, limit)
			if err != nil {
				return err
			}
			return render(cmd, recs, func(w io.Writer) { printRecords(w, recs) })
		},
	}
	addPageFlags(list, &skip, &limit)

	var createSets []string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a record",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseFields(createSets)
			if err != nil {
				return err
			}
			r, err := resource()
			if err != nil {
				return err
			}
			rec, err := r.Create(cmd.Context(), data)
			if err != nil {
				return fmt.Errorf("create %s: %w", name, err)
			}
			return render(cmd, rec, func(w io.Writer) { printFields(w, rec) })
		},
	}
	create.Flags().StringArrayVar(&createSets, "set", nil, "Field as key=value (repeatable; JSON values allowed)")

	var updateSets []string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseFields(updateSets)
			if err != nil {
				return err
			}
			r, err := resource()
			if err != nil {
				return err
			}
			rec, err := r.Update(cmd.Context(), args[0], data)
			if err != nil {
				return fmt.Errorf("update %s %s: %w", name, args[0], err)
			}
			return render(cmd, rec, func(w io.Writer) { printFields(w, rec) })
		},
	}
	update.Flags().StringArrayVar(&updateSets, "set", nil, "Field as key=value (repeatable; JSON values allowed)")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := resource()
			if err != nil {
				return err
			}
			if err := r.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete %s %s: %w", name, args[0], err)
			}
			success(cmd, "Deleted %s %s.", strings.TrimSuffix(name, "s"), args[0])
			return nil
		},
	}

	cmd.AddCommand(list, create, update, del)
	return cmd
}

// parseFields turns key=value pairs into a record. Values that parse as
// JSON keep their type (numbers, booleans, objects); anything else is a
// string.
func parseFields(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no fields given: use --set key=value")
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid field %q: want key=value", p)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			out[k] = decoded
		} else {
			out[k] = v
		}
	}
	return out, nil
}

// printRecords lists free-form records, one block per record.
func printRecords(w io.Writer, recs []map[string]any) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No records.")
		return
	}
	for i, rec := range recs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		printFields(w, rec)
	}
}

// exportPageSize is how many rows each request fetches while exporting.
const exportPageSize = 100

func newExportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:       "export users|withdrawals",
		Short:     "Export users or withdrawals to an xlsx spreadsheet",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"users", "withdrawals"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if file == "" {
				file = args[0] + ".xlsx"
			}

			var (
				write func(io.Writer) error
				count int
			)
			switch args[0] {
			case "users":
				var all []affluence.User
				for skip := 0; ; skip += exportPageSize {
					page, err := client.AdminUsers(ctx, skip, exportPageSize, "")
					if err != nil {
						return err
					}
					all = append(all, page...)
					if len(page) < exportPageSize {
						break
					}
				}
				count = len(all)
				write = func(w io.Writer) error { return export.Users(w, all) }
			case "withdrawals":
				var all []affluence.Withdrawal
				for skip := 0; ; skip += exportPageSize {
					page, err := client.AdminWithdrawals(ctx, skip, exportPageSize, "")
					if err != nil {
						return err
					}
					all = append(all, page...)
					if len(page) < exportPageSize {
						break
					}
				}
				count = len(all)
				write = func(w io.Writer) error { return export.Withdrawals(w, all) }
			default:
				return fmt.Errorf("unknown export %q (want users or withdrawals)", args[0])
			}

			f, err := os.Create(file)
			if err != nil {
				return fmt.Errorf("create %s: %w", file, err)
			}
			if err := write(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", file, err)
			}
			success(cmd, "Exported %d %s to %s", count, args[0], file)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Output file (default <kind>.xlsx)")
	return cmd
}
