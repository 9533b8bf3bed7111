package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ddexer/internal/users"
)

func newUsersCommand(ctx *commandContext) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Manage the platform accounts releases are matched to",
	}
	usersCmd.AddCommand(newUsersAddCommand(ctx))
	usersCmd.AddCommand(newUsersListCommand(ctx))
	usersCmd.AddCommand(newUsersRemoveCommand(ctx))
	return usersCmd
}

func newUsersAddCommand(ctx *commandContext) *cobra.Command {
	var source, id, name, handle string
	var skipReparse bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an account and re-parse logged deliveries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(id) == "" || strings.TrimSpace(name) == "" {
				return errors.New("--id and --name are required")
			}
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				src, err := requireSource(svc.cfg, source)
				if err != nil {
					return err
				}
				if err := svc.store.AddUser(c, users.Entry{
					APIKey: src.SDK.APIKey,
					ID:     strings.TrimSpace(id),
					Handle: strings.TrimSpace(handle),
					Name:   strings.TrimSpace(name),
				}); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Registered %s (%s) for %s\n", name, id, src.Name)
				if skipReparse {
					return nil
				}
				n, err := svc.ingester.Reparse(c, src.Name)
				if err != nil {
					return fmt.Errorf("reparse: %w", err)
				}
				fmt.Fprintf(out, "Re-parsed %d logged document(s)\n", n)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Source whose API key the account belongs to")
	cmd.Flags().StringVar(&id, "id", "", "Platform user id")
	cmd.Flags().StringVar(&name, "name", "", "Display name matched against delivered artist names")
	cmd.Flags().StringVar(&handle, "handle", "", "Platform handle, also matched against artist names")
	cmd.Flags().BoolVar(&skipReparse, "no-reparse", false, "Skip replaying logged deliveries")
	return cmd
}

func newUsersListCommand(ctx *commandContext) *cobra.Command {
	var (
		source string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				apiKey := ""
				if source != "" {
					src, err := requireSource(svc.cfg, source)
					if err != nil {
						return err
					}
					apiKey = src.SDK.APIKey
				}
				dir, err := svc.store.ListUsers(c, apiKey)
				if err != nil {
					return err
				}
				views := jsonRows(dir, func(u users.Entry) userView {
					v := userView{Source: "?", ID: u.ID, Name: u.Name, Handle: u.Handle, AddedAt: u.CreatedAt}
					if src, ok := svc.cfg.SourceByAPIKey(u.APIKey); ok {
						v.Source = src.Name
					}
					return v
				})
				if asJSON {
					return writeJSON(cmd, views)
				}
				if len(views) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No users")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{v.Source, v.ID, v.Name, v.Handle, v.AddedAt.Format(time.DateOnly)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Source", "ID", "Name", "Handle", "Added"}, rows, nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Only accounts of this source")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

type userView struct {
	Source  string    `json:"source"`
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Handle  string    `json:"handle,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

func newUsersRemoveCommand(ctx *commandContext) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a registered account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, svc *services) error {
				src, err := requireSource(svc.cfg, source)
				if err != nil {
					return err
				}
				removed, err := svc.store.RemoveUser(c, src.SDK.APIKey, args[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("user %s is not registered for %s", args[0], src.Name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", args[0], src.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Source whose API key the account belongs to")
	return cmd
}
