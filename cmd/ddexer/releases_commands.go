package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ddexer/internal/store"
)

func newReleasesCommand(ctx *commandContext) *cobra.Command {
	releasesCmd := &cobra.Command{
		Use:     "releases",
		Aliases: []string{"release"},
		Short:   "Inspect and repair stored releases",
	}
	releasesCmd.AddCommand(newReleasesListCommand(ctx))
	releasesCmd.AddCommand(newReleasesShowCommand(ctx))
	releasesCmd.AddCommand(newReleasesRetryCommand(ctx))
	return releasesCmd
}

func newReleasesListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var source string
	var pending bool
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List releases, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.ReleaseFilter{Source: source, PendingOnly: pending, Limit: limit}
			for _, raw := range statuses {
				status, ok := store.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				filter.Statuses = append(filter.Statuses, status)
			}
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				rows, err := svc.store.ListReleases(c, filter)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, jsonRows(rows, newReleaseView))
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No releases")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderReleaseTable(rows))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Filter by source")
	cmd.Flags().BoolVar(&pending, "pending", false, "Only releases the publisher would pick up")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum rows to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newReleasesShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Show one release with its parsed metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				row, err := svc.store.GetRelease(c, args[0])
				if err != nil {
					return err
				}
				if row == nil {
					return fmt.Errorf("release %s not found", args[0])
				}
				if asJSON {
					return writeJSON(cmd, struct {
						releaseView
						Release any `json:"release"`
					}{newReleaseView(row), row.Release})
				}
				renderReleaseDetail(cmd, row)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newReleasesRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <key>...",
		Short: "Clear publish errors so failed releases are attempted again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				n, err := svc.store.ResetPublishErrors(c, args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d of %d release(s)\n", n, len(args))
				if n == 0 {
					return errors.New("no matching releases were reset")
				}
				return nil
			})
		},
	}
}

type releaseView struct {
	Key               string     `json:"key"`
	Source            string     `json:"source"`
	Status            string     `json:"status"`
	Title             string     `json:"title"`
	Artist            string     `json:"artist"`
	User              string     `json:"user,omitempty"`
	MessageTimestamp  time.Time  `json:"messageTimestamp"`
	XMLURL            string     `json:"xmlUrl"`
	EntityType        string     `json:"entityType,omitempty"`
	EntityID          string     `json:"entityId,omitempty"`
	BlockHash         string     `json:"blockHash,omitempty"`
	BlockNumber       int64      `json:"blockNumber,omitempty"`
	Problems          []string   `json:"problems,omitempty"`
	PublishErrorCount int        `json:"publishErrorCount"`
	LastPublishError  string     `json:"lastPublishError,omitempty"`
	PublishedAt       *time.Time `json:"publishedAt,omitempty"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func newReleaseView(row *store.ReleaseRow) releaseView {
	v := releaseView{
		Key:               row.Key,
		Source:            row.Source,
		Status:            string(row.Status),
		Title:             row.Release.Title,
		Artist:            row.Release.ArtistName,
		User:              row.Release.AudiusUser,
		MessageTimestamp:  row.MessageTimestamp,
		XMLURL:            row.XMLURL,
		EntityType:        string(row.EntityType),
		EntityID:          row.EntityID,
		BlockHash:         row.BlockHash,
		BlockNumber:       row.BlockNumber,
		PublishErrorCount: row.PublishErrorCount,
		LastPublishError:  row.LastPublishError,
		PublishedAt:       row.PublishedAt,
		UpdatedAt:         row.UpdatedAt,
	}
	for _, p := range row.Release.Problems {
		v.Problems = append(v.Problems, string(p))
	}
	return v
}

func renderReleaseTable(rows []*store.ReleaseRow) string {
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		v := newReleaseView(row)
		table = append(table, []string{
			v.Key,
			v.Source,
			v.Status,
			truncate(v.Title, 40),
			truncate(v.Artist, 24),
			strings.Join(v.Problems, ","),
			strconv.Itoa(v.PublishErrorCount),
			v.EntityID,
		})
	}
	return renderTable(
		[]string{"Key", "Source", "Status", "Title", "Artist", "Problems", "Errors", "Entity"},
		table,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func renderReleaseDetail(cmd *cobra.Command, row *store.ReleaseRow) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	v := newReleaseView(row)

	for _, line := range renderSectionHeader(v.Key, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", releaseStatusKind(row.Status), v.Status, colorize))
	fields := [][2]string{
		{"Title", v.Title},
		{"Artist", v.Artist},
		{"User", v.User},
		{"Source", v.Source},
		{"Document", v.XMLURL},
		{"Message time", v.MessageTimestamp.Format(time.RFC3339)},
		{"Release date", row.Release.ReleaseDate.Format("2006-01-02")},
		{"Genre", string(row.Release.AudiusGenre)},
		{"Tracks", strconv.Itoa(len(row.Release.SoundRecordings))},
		{"Deals", strconv.Itoa(len(row.Release.Deals))},
		{"Problems", strings.Join(v.Problems, ", ")},
		{"Entity", strings.TrimSpace(v.EntityType + " " + v.EntityID)},
		{"Block", blockLabel(v.BlockHash, v.BlockNumber)},
		{"Publish errors", strconv.Itoa(v.PublishErrorCount)},
		{"Last error", v.LastPublishError},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		fmt.Fprintln(out, renderStatusLine(f[0], statusInfo, f[1], false))
	}
}

func blockLabel(hash string, number int64) string {
	if hash == "" && number == 0 {
		return ""
	}
	return fmt.Sprintf("#%d %s", number, hash)
}
