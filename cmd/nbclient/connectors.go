package main

import (
	"context"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/rickgao/notebook-client/internal/api"
)

func newConnectorsCmd(a *app) *cobra.Command {
	var user, notebookID string

	cmd := &cobra.Command{
		Use:   "connectors",
		Short: "Inspect the data connectors of a notebook",
	}
	cmd.PersistentFlags().StringVar(&user, "user", "", "user ID (defaults to the credentials)")
	cmd.PersistentFlags().StringVar(&notebookID, "notebook", "", "notebook ID")
	_ = cmd.MarkPersistentFlagRequired("notebook")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List connectors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withAPI(cmd.Context(), user, func(ctx context.Context, c *api.Client) error {
				connectors, err := c.ListConnectors(ctx, lo.CoalesceOrEmpty(user, c.UserID()), notebookID)
				if err != nil {
					return err
				}
				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.Header("ID", "Type", "Created")
				for _, conn := range connectors {
					if err := table.Append([]string{conn.ID, conn.ConnectorType, conn.CreatedAt}); err != nil {
						return err
					}
				}
				return table.Render()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check <type>",
		Short: "Report whether a connector type is attached",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAPI(cmd.Context(), user, func(ctx context.Context, c *api.Client) error {
				ok, err := c.HasConnector(ctx, lo.CoalesceOrEmpty(user, c.UserID()), notebookID, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %t\n", args[0], ok)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "details",
		Short: "Show notebook metadata",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withAPI(cmd.Context(), user, func(ctx context.Context, c *api.Client) error {
				d, err := c.NotebookDetails(ctx, notebookID)
				if err != nil {
					return err
				}
				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.Header("Field", "Value")
				for _, row := range [][]string{
					{"id", d.ID},
					{"user", d.UserID},
					{"name", d.Name},
					{"description", d.Description},
					{"lambda_url", d.LambdaURL},
					{"created_at", d.CreatedAt},
				} {
					if err := table.Append(row); err != nil {
						return err
					}
				}
				return table.Render()
			})
		},
	})

	return cmd
}
