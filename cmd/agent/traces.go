package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"webmcp-agent/internal/infrastructure/storage/sqlite"
)

func newTracesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "traces [conversation-id]",
		Short: "List archived conversation traces or print one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			store, err := sqlite.NewTraceStore(cfg.Storage.TraceDB)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				rec, err := store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, rec.Payload)
				return nil
			}

			limit, _ := cmd.Flags().GetInt("limit")
			recs, err := store.List(ctx, limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(out, "No traces archived yet")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CONVERSATION\tUPDATED\tENTRIES\tPAGE")
			for _, rec := range recs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					rec.ConversationID, rec.UpdatedAt.Local().Format(time.DateTime), rec.EntryCount, rec.PageURL)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "number of traces to list")
	return cmd
}
