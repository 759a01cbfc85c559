package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

func newStreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Earn by streaming audio",
	}

	audios := &cobra.Command{
		Use:   "audios",
		Short: "List tracks that pay for listening",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := client.Audios(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, list, func(w io.Writer) {
				if len(list) == 0 {
					fmt.Fprintln(w, "No tracks available.")
					return
				}
				rows := make([][]string, 0, len(list))
				for _, a := range list {
					rows = append(rows, []string{a.ID.String(), a.Title, orDash(a.Artist), strconv.Itoa(a.DurationSeconds) + "s", money(a.Amount)})
				}
				table(w, []string{"ID", "TITLE", "ARTIST", "LENGTH", "REWARD"}, rows)
			})
		},
	}

	start := &cobra.Command{
		Use:   "start <audio_id>",
		Short: "Start a streaming session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := client.StartStream(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("start stream: %w", err)
			}
			return render(cmd, s, func(w io.Writer) {
				fmt.Fprintf(w, "Stream %s started.\n", s.ID)
			})
		},
	}

	update := &cobra.Command{
		Use:   "update <stream_id> <seconds>",
		Short: "Report seconds listened",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			secs, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("seconds must be a whole number: %q", args[1])
			}
			s, err := client.UpdateStream(cmd.Context(), args[0], secs)
			if err != nil {
				return fmt.Errorf("update stream: %w", err)
			}
			return render(cmd, s, func(w io.Writer) {
				fmt.Fprintf(w, "Stream %s: %ds listened, completed: %s\n", s.ID, s.DurationListened, yesNo(s.Completed))
			})
		},
	}

	claim := &cobra.Command{
		Use:   "claim <stream_id>",
		Short: "Claim the reward of a completed stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.ClaimStream(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("claim stream: %w", err)
			}
			return render(cmd, c, func(w io.Writer) {
				fmt.Fprintf(w, "%s (%s)\n", orDash(c.Message), money(c.AmountEarned))
			})
		},
	}

	var skip, limit int
	history := &cobra.Command{
		Use:   "history",
		Short: "List past streaming sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := client.StreamHistory(cmd.Context(), skip, limit)
			if err != nil {
				return err
			}
			return render(cmd, list, func(w io.Writer) {
				if len(list) == 0 {
					fmt.Fprintln(w, "No streams yet.")
					return
				}
				rows := make([][]string, 0, len(list))
				for _, s := range list {
					title := s.AudioID.String()
					if s.Audio != nil {
						title = s.Audio.Title
					}
					rows = append(rows, []string{
						s.ID.String(), title, strconv.Itoa(s.DurationListened) + "s",
						yesNo(s.Completed), yesNo(s.Claimed), money(s.AmountEarned), ago(s.CreatedAt),
					})
				}
				table(w, []string{"ID", "TRACK", "LISTENED", "DONE", "CLAIMED", "EARNED", "STARTED"}, rows)
			})
		},
	}
	addPageFlags(history, &skip, &limit)

	cmd.AddCommand(audios, start, update, claim, history)
	return cmd
}
