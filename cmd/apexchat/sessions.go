package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/Rrens/apex-chat/internal/auth"
	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"ls"},
	Short:   "List chat sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newRESTClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Client.RequestTimeout)
		defer cancel()

		if auth.NewGate(c).Resolve(ctx) != domain.AuthAuthenticated {
			return errNotSignedIn
		}

		sessions, err := c.ListSessions(ctx)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions yet. Start one with: apexchat chat")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\n", s.ID, s.DisplayTitle())
		}
		return w.Flush()
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Print a session's transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newRESTClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Client.RequestTimeout)
		defer cancel()

		_, loader := newSessionLayer(c)
		msgs, err := loader.LoadIfAbsent(ctx, args[0])
		if err != nil {
			return err
		}
		for _, m := range msgs {
			printMessage(m)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd, historyCmd)
}
