package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSimulateCommand(ctx *commandContext) *cobra.Command {
	var source, user string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Ingest a generated one-track delivery for a registered account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				src, err := requireSource(svc.cfg, source)
				if err != nil {
					return err
				}
				dir, err := svc.store.ListUsers(c, src.SDK.APIKey)
				if err != nil {
					return err
				}
				var artist string
				for _, u := range dir {
					if u.ID == user || strings.EqualFold(u.Handle, user) || strings.EqualFold(u.Name, user) {
						artist = u.Name
						break
					}
				}
				if artist == "" {
					return fmt.Errorf("user %q is not registered for %s", user, src.Name)
				}

				sim, err := svc.ingester.Simulate(c, src, artist)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Release %s ingested from %s\n", sim.ISRC, sim.XMLURL)
				if d, ok := sim.Result.Decisions[sim.ISRC]; ok {
					fmt.Fprintf(out, "Decision: %s (%s)\n", d.Action, d.Reason)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Source to deliver as")
	cmd.Flags().StringVarP(&user, "user", "u", "", "Registered user id, handle or name")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
