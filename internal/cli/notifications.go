package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/umar/livesync/internal/notifications"
)

var listPage int

func init() {
	notificationsCmd.AddCommand(listCmd, markReadCmd)
	listCmd.Flags().IntVarP(&listPage, "page", "p", 1, "page to show")
	rootCmd.AddCommand(notificationsCmd, unreadCmd)
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Browse and manage notifications",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show one page of notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		app := newApp(out)
		defer app.Stop()

		ctx := cmd.Context()
		if err := app.Pane.Open(ctx); err != nil {
			return err
		}
		for app.Pane.View().Page < listPage && app.Pane.View().CanNext {
			if err := app.Pane.Next(ctx); err != nil {
				return err
			}
		}
		printPane(out, app.Pane.View())
		return nil
	},
}

var markReadCmd = &cobra.Command{
	Use:   "mark-read",
	Short: "Mark every notification as read",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		app := newApp(out)
		defer app.Stop()

		if err := app.Pane.MarkAllRead(cmd.Context()); err != nil {
			return err
		}
		printPane(out, app.Pane.View())
		return nil
	},
}

var unreadCmd = &cobra.Command{
	Use:   "unread",
	Short: "Count unread notifications across every page",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		app := newApp(out)
		defer app.Stop()

		n, err := app.Notifications.Seed(cmd.Context())
		if err != nil {
			fmt.Fprintf(out, "partial count, fetch stopped early: %v\n", err)
		}
		fmt.Fprintf(out, "%d unread notifications\n", n)
		return nil
	},
}

func printPane(w io.Writer, v notifications.PaneView) {
	if v.Placeholder != "" {
		fmt.Fprintln(w, v.Placeholder)
		return
	}
	for _, n := range v.Items {
		mark := " "
		if !n.IsRead {
			mark = "•"
		}
		fmt.Fprintf(w, "%s %s  %s\n", mark, n.Message, humanize.Time(n.CreatedAt))
	}
	fmt.Fprintf(w, "page %d of %d, %d unread on this page\n", v.Page, v.TotalPages, v.Unread)
}
