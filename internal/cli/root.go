package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/me/affluence/internal/config"
	"github.com/me/affluence/internal/logging"
	"github.com/me/affluence/internal/storage"
	"github.com/me/affluence/pkg/affluence"
	"github.com/me/affluence/pkg/session"
)

var (
	flagAPIBase      string
	flagFrontendHTML string
	flagStorage      string
	flagStoragePath  string
	flagTimeout      time.Duration
	flagOutput       string
	flagDebug        bool
	flagLogLevel     string
	flagLogFormat    string

	cfg    config.ClientConfig
	logger *slog.Logger
	store  session.Store
	sess   *session.Manager
	client *affluence.Client

	// page is the running command's page name; hinted records that the
	// login hint has been printed for it.
	page   string
	hinted bool
)

// NewRootCmd creates the root cobra command for the affluence CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "affluence",
		Short: "Affluence rewards platform client",
		Long:  "affluence signs in to the Affluence platform, shows balances and tasks, and runs admin operations.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaults := config.DefaultClientConfig()
	pf := root.PersistentFlags()
	pf.StringVar(&flagAPIBase, "api-base", "", "API base URL override (or AFFLUENCE_API_BASE)")
	pf.StringVar(&flagFrontendHTML, "frontend-html", "", "HTML file or URL whose <meta name=\"api-base\"> sets the API base")
	pf.StringVar(&flagStorage, "storage", defaults.Storage.Backend, "Session storage backend ("+strings.Join(config.Backends, ", ")+")")
	pf.StringVar(&flagStoragePath, "storage-path", "", "File or SQLite path for the session store (default ~/.affluence/...)")
	pf.DurationVar(&flagTimeout, "timeout", defaults.Timeout, "Per-request timeout")
	pf.StringVarP(&flagOutput, "output", "o", defaults.Output, "Output format (text, json, yaml)")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	pf.StringVar(&flagLogLevel, "log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	pf.StringVar(&flagLogFormat, "log-format", defaults.LogFormat, "Log format (text, json)")

	root.AddCommand(
		newLoginCmd(),
		newRegisterCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newProfileCmd(),
		newDashboardCmd(),
		newReferralsCmd(),
		newTopEarnersCmd(),
		newNotificationsCmd(),
		newTransactionsCmd(),
		newTasksCmd(),
		newWithdrawCmd(),
		newLoansCmd(),
		newStreamCmd(),
		newAdminCmd(),
		newConfigCmd(),
	)

	return root
}

// setup loads configuration, applies flag overrides and builds the shared
// session and client for the command about to run.
func setup(cmd *cobra.Command) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}
	cfg = loaded

	// Only flags set on the command line override the environment.
	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "api-base":
			cfg.APIBase = flagAPIBase
		case "frontend-html":
			cfg.FrontendHTML = flagFrontendHTML
		case "storage":
			cfg.Storage.Backend = flagStorage
		case "storage-path":
			cfg.Storage.Path = flagStoragePath
		case "timeout":
			cfg.Timeout = flagTimeout
		case "output":
			cfg.Output = flagOutput
		case "log-level":
			cfg.LogLevel = flagLogLevel
		case "log-format":
			cfg.LogFormat = flagLogFormat
		}
	})
	if flagDebug {
		cfg.LogLevel = "debug"
	}
	cfg.Output = strings.ToLower(cfg.Output)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err = storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	sess = session.New(ctx, store, logger)

	base := affluence.ResolveBaseURL(ctx, logger,
		affluence.StaticSource(cfg.APIBase),
		affluence.MetaTag(nil, cfg.FrontendHTML),
		affluence.StoreSource(sess),
	)
	page = pageName(cmd)
	acfg := affluence.DefaultConfig().
		WithBaseURL(base).
		WithTimeout(cfg.Timeout).
		WithRetries(cfg.MaxRetries, cfg.RetryDelay).
		WithPage(page)

	stderr := cmd.ErrOrStderr()
	client = affluence.New(acfg, sess, logger, affluence.WithUnauthorizedHandler(func(target string) {
		printLoginHint(stderr, target)
	}))
	return nil
}

// Execute runs root and closes the session store whether or not the
// command succeeded. Auth failures outside the login commands get the
// login hint once.
func Execute(root *cobra.Command) error {
	page, hinted = "", false
	err := root.Execute()
	if cerr := teardown(); err == nil && cerr != nil {
		err = fmt.Errorf("close session store: %w", cerr)
	}
	if err != nil && !hinted && page != "" && !strings.HasSuffix(page, "-login") && affluence.IsAuthError(err) {
		printLoginHint(root.ErrOrStderr(), affluence.LoginTarget(page))
	}
	return err
}

func printLoginHint(w io.Writer, target string) {
	hinted = true
	fmt.Fprintf(w, "Not signed in or session expired. Run `%s` to sign in.\n", loginCommand(target))
}

func teardown() error {
	if store == nil {
		return nil
	}
	err := store.Close()
	store = nil
	return err
}

// pageName turns the command path into the page name used to pick the
// login target, e.g. "affluence admin users" becomes "affluence-admin-users".
func pageName(cmd *cobra.Command) string {
	return strings.ReplaceAll(cmd.CommandPath(), " ", "-")
}

func loginCommand(target string) string {
	if target == affluence.LoginTarget("admin-") {
		return "affluence admin login"
	}
	return "affluence login"
}
