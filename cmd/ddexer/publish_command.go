package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ddexer/internal/publisher"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish pending releases once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				summary, err := svc.publisher.Publish(c, uuid.NewString())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, outcome := range []publisher.Outcome{
					publisher.OutcomeCreated,
					publisher.OutcomeUpdated,
					publisher.OutcomeDeleted,
					publisher.OutcomeSkipped,
					publisher.OutcomeFailed,
				} {
					fmt.Fprintf(out, "%-8s %d\n", string(outcome)+":", summary[outcome])
				}
				return nil
			})
		},
	}
}
