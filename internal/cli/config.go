package cli

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/affluence/internal/config"
	"github.com/me/affluence/internal/storage"
	"github.com/me/affluence/pkg/session"
)

type configView struct {
	APIBase       string            `json:"api_base"`
	StoredAPIBase string            `json:"stored_api_base,omitempty"`
	Storage       string            `json:"storage"`
	StoragePath   string            `json:"storage_path,omitempty"`
	Timeout       string            `json:"timeout"`
	SignedIn      bool              `json:"signed_in"`
	Impersonating string            `json:"impersonating,omitempty"`
	Preferences   map[string]string `json:"preferences"`
	StoredKeys    []string          `json:"stored_keys,omitempty"`
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change client settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective settings and session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v := configView{
				APIBase:     client.BaseURL(),
				Storage:     cfg.Storage.Backend,
				Timeout:     cfg.Timeout.String(),
				SignedIn:    sess.IsAuthenticated(ctx),
				Preferences: map[string]string{},
			}
			if p, err := cfg.Storage.ResolvedPath(); err == nil && (cfg.Storage.Backend == config.BackendFile || cfg.Storage.Backend == config.BackendSQLite) {
				v.StoragePath = p
			}
			stored, err := sess.StoredBaseURL(ctx)
			if err != nil {
				return err
			}
			v.StoredAPIBase = stored
			if meta := sess.ImpersonationMeta(ctx); meta != nil {
				v.Impersonating = meta.Label()
			}
			for _, name := range session.PreferenceNames() {
				val, err := sess.Preference(ctx, name)
				if err != nil {
					return err
				}
				v.Preferences[name] = val
			}
			if keys, err := storage.ListKeys(ctx, sess.Store()); err == nil {
				v.StoredKeys = keys
			} else {
				logger.Debug("store cannot list keys", "error", err)
			}

			return render(cmd, v, func(w io.Writer) {
				fmt.Fprintf(w, "API base:     %s\n", v.APIBase)
				fmt.Fprintf(w, "Stored base:  %s\n", orDash(v.StoredAPIBase))
				fmt.Fprintf(w, "Storage:      %s %s\n", v.Storage, v.StoragePath)
				fmt.Fprintf(w, "Timeout:      %s\n", v.Timeout)
				fmt.Fprintf(w, "Signed in:    %s\n", yesNo(v.SignedIn))
				if v.Impersonating != "" {
					fmt.Fprintf(w, "Impersonating: %s\n", v.Impersonating)
				}
				for _, name := range session.PreferenceNames() {
					fmt.Fprintf(w, "Pref %-8s %s\n", name+":", orDash(v.Preferences[name]))
				}
			})
		},
	}

	setBase := &cobra.Command{
		Use:   "set-api-base <url>",
		Short: "Persist an API base URL override",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := url.Parse(args[0])
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("invalid API base %q: want an http(s) URL", args[0])
			}
			if err := sess.SetStoredBaseURL(cmd.Context(), args[0]); err != nil {
				return err
			}
			success(cmd, "API base set to %s", strings.TrimRight(args[0], "/"))
			return nil
		},
	}

	clearBase := &cobra.Command{
		Use:   "clear-api-base",
		Short: "Remove the persisted API base URL override",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sess.ClearStoredBaseURL(cmd.Context()); err != nil {
				return err
			}
			success(cmd, "API base override cleared.")
			return nil
		},
	}

	pref := &cobra.Command{
		Use:   "pref <name> [value]",
		Short: "Show or set a preference (" + strings.Join(session.PreferenceNames(), ", ") + ")",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 2 {
				if err := sess.SetPreference(ctx, args[0], args[1]); err != nil {
					return err
				}
				success(cmd, "%s = %s", args[0], args[1])
				return nil
			}
			v, err := sess.Preference(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd, map[string]string{args[0]: v}, func(w io.Writer) {
				fmt.Fprintln(w, orDash(v))
			})
		},
	}

	cmd.AddCommand(show, setBase, clearBase, pref)
	return cmd
}
