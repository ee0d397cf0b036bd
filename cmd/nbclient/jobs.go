package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rickgao/notebook-client/internal/api"
	"github.com/rickgao/notebook-client/internal/model"
)

func newJobsCmd(a *app) *cobra.Command {
	var user, notebookID, requestID string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List deployed notebook jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user == "" && notebookID == "" {
				return errors.New("one of --user or --notebook is required")
			}
			return a.withAPI(cmd.Context(), user, func(ctx context.Context, c *api.Client) error {
				jobs, err := listJobs(ctx, c, user, notebookID, requestID)
				if err != nil {
					return err
				}
				return renderJobs(cmd.OutOrStdout(), jobs)
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "list the jobs of this user")
	cmd.Flags().StringVar(&notebookID, "notebook", "", "list the jobs of this notebook")
	cmd.Flags().StringVar(&requestID, "request", "", "show a single job (with --user)")

	return cmd
}

func listJobs(ctx context.Context, c *api.Client, user, notebookID, requestID string) ([]model.Job, error) {
	switch {
	case requestID != "":
		if user == "" {
			return nil, errors.New("--request needs --user")
		}
		job, err := c.GetJob(ctx, user, requestID)
		if err != nil {
			return nil, err
		}
		return []model.Job{job}, nil
	case notebookID != "":
		return c.ListNotebookJobs(ctx, notebookID)
	default:
		return c.ListUserJobs(ctx, user)
	}
}

func renderJobs(w io.Writer, jobs []model.Job) error {
	table := tablewriter.NewWriter(w)
	table.Header("Request", "State", "Created", "Completed", "Error")
	for _, j := range jobs {
		if err := table.Append([]string{
			j.RequestID,
			string(j.State()),
			j.CreatedAt,
			j.CompletedAt,
			truncate(j.Error, 60),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// withAPI resolves credentials, builds the backend client and releases its
// cache afterwards.
func (a *app) withAPI(ctx context.Context, user string, fn func(context.Context, *api.Client) error) error {
	creds, err := a.credentials(user)
	if err != nil {
		return err
	}
	client, done, err := a.apiClient(ctx, creds)
	if err != nil {
		return err
	}
	return errors.Join(fn(ctx, client), shutdown(context.Background(), done))
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n-3])
}
