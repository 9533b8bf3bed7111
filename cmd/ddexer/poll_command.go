package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ddexer/internal/poller"
)

func newPollCommand(ctx *commandContext) *cobra.Command {
	var source string
	var reset bool

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Scan object-store buckets for new deliveries once",
		Long: "Scan every polled source (or only --source) for delivery prefixes newer than\n" +
			"the stored marker and ingest their XML documents. --reset rescans from the start.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				if source != "" {
					if _, err := requireSource(svc.cfg, source); err != nil {
						return err
					}
				}
				summary, err := svc.poller.Poll(c, poller.Options{
					Source: source,
					Reset:  reset,
					PassID: uuid.NewString(),
				})
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Prefixes: %d\nDocuments: %d\nRejected: %d\n", summary.Prefixes, summary.Documents, summary.Rejected)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Only poll this source")
	cmd.Flags().BoolVar(&reset, "reset", false, "Clear stored markers before polling")
	return cmd
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "ingest <path>",
		Short: "Ingest a local XML file or every XML file below a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				src, err := requireSource(svc.cfg, source)
				if err != nil {
					return err
				}
				n, err := svc.ingester.IngestPath(c, src, args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d document(s) for %s\n", n, src.Name)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Source the documents were delivered by")
	return cmd
}
