package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/me/affluence/pkg/affluence"
)

// render writes v as JSON or YAML when requested, otherwise calls text.
func render(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	switch cfg.Output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		// Round-trip through JSON so the keys match the API field names.
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		return enc.Close()
	}
	text(w)
	return nil
}

// table writes tab-separated rows under header with aligned columns.
func table(w io.Writer, header []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	dashes := make([]string, len(header))
	for i, h := range header {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	tw.Flush()
}

// money formats a Naira amount with thousands separators.
func money[T ~float64](v T) string {
	return "₦" + humanize.FormatFloat("#,###.##", float64(v))
}

// ago formats t relative to now, or "-" when unset.
func ago(t affluence.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t.Time, time.Now(), "ago", "from now")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// success prints a one-line confirmation in text mode only.
func success(cmd *cobra.Command, format string, args ...any) {
	if cfg.Output == "text" {
		fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
	}
}
