package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-kiosk/internal/log"
	"github.com/teslashibe/go-kiosk/pkg/history"
	"github.com/teslashibe/go-kiosk/pkg/members"
)

var historyLimit int

var membersCmd = &cobra.Command{
	Use:   "members [member-id]",
	Short: "List members, or show one member, from the member API",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMembers,
}

var historyCmd = &cobra.Command{
	Use:   "history [member-id]",
	Short: "Show recent identity transitions from the history database",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of transitions to show")
	rootCmd.AddCommand(membersCmd)
	rootCmd.AddCommand(historyCmd)
}

func runMembers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := members.NewClient(members.WithBaseURL(cfg.APIServerURL), members.WithLogger(log.L()))

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	var list []members.Member
	if len(args) == 1 {
		m, err := client.GetMember(ctx, args[0])
		if err != nil {
			return err
		}
		list = []members.Member{*m}
	} else if list, err = client.GetMembers(ctx); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tAGE\tREGISTERED\tALLERGIES")
	for _, m := range list {
		fmt.Fprintf(w, "%s\t%s\t%d\t%v\t%v\n", m.ID, m.Name, m.Age, m.IsRegistered, m.Allergies)
	}
	return w.Flush()
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, err := history.Open(ctx, cfg.DatabaseURL, log.L())
	if err != nil {
		return err
	}
	defer store.Close()

	var memberID string
	if len(args) == 1 {
		memberID = args[0]
	}
	entries, err := store.Recent(ctx, historyLimit, memberID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tKIND\tMEMBER\tLEVEL\tNEW")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n", e.At.Local().Format(time.DateTime), e.Kind, e.MemberID, e.Level, e.IsNew)
	}
	return w.Flush()
}
