package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ddexer/internal/daemon"
	"ddexer/internal/preflight"
	"ddexer/internal/store"
	"ddexer/internal/workflow"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency and release status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				lines := renderSectionHeader("Daemon", colorize)
				lines = append(lines, daemonStatusLine(svc, colorize))
				passLines, err := passStatusLines(c, svc, colorize)
				if err != nil {
					return err
				}
				lines = append(lines, passLines...)
				lines = append(lines, renderStatusLine("Database", statusInfo, svc.store.Path(), colorize))
				if ctx.configPath != "" {
					lines = append(lines, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
				}

				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
				for _, r := range preflight.RunAll(c, svc.cfg) {
					lines = append(lines, checkStatusLine(r, statusError, colorize))
				}
				if !offline {
					for _, src := range svc.cfg.Sources {
						for _, r := range preflight.CheckSource(c, svc.buckets, src) {
							if strings.HasSuffix(r.Name, "credentials") {
								continue
							}
							lines = append(lines, checkStatusLine(r, statusWarn, colorize))
						}
					}
				}

				stats, err := svc.store.Stats(c)
				if err != nil {
					return err
				}
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Releases", colorize)...)
				for _, status := range store.AllStatuses() {
					lines = append(lines, renderStatusLine(string(status), releaseStatusKind(status), strconv.Itoa(stats[status]), colorize))
				}

				for _, line := range lines {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip bucket and API reachability checks")
	return cmd
}

// daemonStatusLine reports whether another process holds the daemon lock.
func daemonStatusLine(svc *services, colorize bool) string {
	running, err := daemon.IsRunning(svc.cfg)
	switch {
	case err != nil:
		return renderStatusLine("Daemon", statusWarn, err.Error(), colorize)
	case running:
		return renderStatusLine("Daemon", statusOK, "Running", colorize)
	default:
		return renderStatusLine("Daemon", statusInfo, "Not running", colorize)
	}
}

// passStatusLines reports the most recent recorded pass of each lane.
func passStatusLines(ctx context.Context, svc *services, colorize bool) ([]string, error) {
	passes, err := workflow.RecordedPasses(ctx, svc.store)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, lane := range []string{"ingest", "publish"} {
		label := "Last " + lane + " pass"
		info, ok := passes[lane]
		switch {
		case !ok:
			lines = append(lines, renderStatusLine(label, statusInfo, "Never", colorize))
		case info.Err != "":
			lines = append(lines, renderStatusLine(label, statusWarn, info.FinishedAt.Format(time.RFC3339)+" ("+info.Err+")", colorize))
		default:
			lines = append(lines, renderStatusLine(label, statusOK, info.FinishedAt.Format(time.RFC3339), colorize))
		}
	}
	return lines, nil
}
