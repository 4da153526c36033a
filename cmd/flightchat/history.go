package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/miradorstack/flightchat/internal/repo"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [session]",
	Short: "Show archived sessions or the transcript of one session",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum number of rows to print")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if !cfg.Archive.Enabled {
		return fmt.Errorf("transcript archive is disabled (set archive.enabled or FLIGHTCHAT_ARCHIVE_PATH)")
	}
	transcripts, err := repo.OpenTranscripts(cfg.Archive.Path)
	if err != nil {
		return err
	}
	defer transcripts.Close()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		ids, err := transcripts.ListSessions(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	records, err := transcripts.ListSession(cmd.Context(), args[0], historyLimit)
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Fprintf(out, "%s %-9s %s\n", rec.Timestamp.Format("2006-01-02 15:04:05"), rec.Role, rec.Content)
		if rec.Path != "" {
			fmt.Fprintf(out, "%20s path=%s structured=%t duration=%s\n", "", rec.Path, rec.Structured, rec.Duration)
		}
		if len(rec.SuggestedQuestions) > 0 {
			fmt.Fprintf(out, "%20s suggestions: %s\n", "", strings.Join(rec.SuggestedQuestions, " | "))
		}
	}
	return nil
}
