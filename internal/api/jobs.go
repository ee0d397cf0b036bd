package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rickgao/notebook-client/internal/model"
)

// ListUserJobs fetches every job the user has run.
func (c *Client) ListUserJobs(ctx context.Context, userID string) ([]model.Job, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	var resp JobsResponse
	if err := c.get(ctx, "/status/jobs/"+url.PathEscape(userID), nil, &resp); err != nil {
		return nil, fmt.Errorf("list jobs for user %s: %w", userID, err)
	}
	return resp.Jobs, nil
}

// GetJob fetches a single job by request ID.
func (c *Client) GetJob(ctx context.Context, userID, requestID string) (model.Job, error) {
	if userID == "" || requestID == "" {
		return model.Job{}, fmt.Errorf("user ID and request ID are required")
	}

	path := "/status/jobs/" + url.PathEscape(userID) + "/" + url.PathEscape(requestID)

	var job model.Job
	if err := c.get(ctx, path, nil, &job); err != nil {
		return model.Job{}, fmt.Errorf("get job %s: %w", requestID, err)
	}
	return job, nil
}

// ListNotebookJobs fetches every job run from a notebook's deployment.
func (c *Client) ListNotebookJobs(ctx context.Context, notebookID string) ([]model.Job, error) {
	if notebookID == "" {
		return nil, fmt.Errorf("notebook ID is required")
	}

	var resp JobsResponse
	if err := c.get(ctx, notebookJobsPath(notebookID), nil, &resp); err != nil {
		return nil, fmt.Errorf("list jobs for notebook %s: %w", notebookID, err)
	}
	return resp.Jobs, nil
}

func notebookJobsPath(notebookID string) string {
	return "/status/notebook/jobs/" + url.PathEscape(notebookID)
}
