package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"ddexer/internal/store"
)

func newXMLCommand(ctx *commandContext) *cobra.Command {
	xmlCmd := &cobra.Command{
		Use:   "xml",
		Short: "Inspect and replay the delivered document log",
	}
	xmlCmd.AddCommand(newXMLListCommand(ctx))
	xmlCmd.AddCommand(newXMLShowCommand(ctx))
	xmlCmd.AddCommand(newXMLReparseCommand(ctx))
	return xmlCmd
}

func newXMLListCommand(ctx *commandContext) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List logged documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				records, err := svc.store.ListXML(c, store.XMLFilter{Source: source})
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No documents")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					ts := "unparsed"
					if rec.MessageTimestamp != nil {
						ts = rec.MessageTimestamp.Format(time.RFC3339)
					}
					rows = append(rows, []string{
						strconv.FormatInt(rec.ID, 10),
						rec.Source,
						rec.XMLURL,
						ts,
						strconv.FormatInt(rec.Size, 10),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Source", "URL", "Message time", "Bytes"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Only documents of this source")
	return cmd
}

func newXMLShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <url>",
		Short: "Print a logged document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				rec, err := svc.store.GetXML(c, args[0])
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("no document logged for %s", args[0])
				}
				_, err = cmd.OutOrStdout().Write(rec.XML)
				return err
			})
		},
	}
}

func newXMLReparseCommand(ctx *commandContext) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "reparse",
		Short: "Replay logged documents through the parser",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				if source != "" {
					if _, err := requireSource(svc.cfg, source); err != nil {
						return err
					}
				}
				n, err := svc.ingester.Reparse(c, source)
				fmt.Fprintf(cmd.OutOrStdout(), "Re-parsed %d document(s)\n", n)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Only documents of this source")
	return cmd
}

func newMarkersCommand(ctx *commandContext) *cobra.Command {
	markersCmd := &cobra.Command{
		Use:   "markers",
		Short: "Inspect or reset bucket poll positions",
	}

	markersCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show the last processed prefix of each bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				markers, err := svc.store.ListMarkers(c)
				if err != nil {
					return err
				}
				if len(markers) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No markers")
					return nil
				}
				rows := make([][]string, 0, len(markers))
				for _, m := range markers {
					rows = append(rows, []string{m.Bucket, m.Marker, m.UpdatedAt.Format(time.RFC3339)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Bucket", "Marker", "Updated"}, rows, nil))
				return nil
			})
		},
	})

	var source string
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget a source's marker so the next poll rescans its bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				src, err := requireSource(svc.cfg, source)
				if err != nil {
					return err
				}
				if !src.S3.Enabled() {
					return fmt.Errorf("source %s has no bucket configured", src.Name)
				}
				if err := svc.store.ResetMarker(c, src.S3.Bucket); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset marker for %s\n", src.S3.Bucket)
				return nil
			})
		},
	}
	resetCmd.Flags().StringVarP(&source, "source", "s", "", "Source whose bucket marker is cleared")
	markersCmd.AddCommand(resetCmd)

	return markersCmd
}
