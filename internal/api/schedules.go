package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rickgao/notebook-client/internal/model"
)

// ListSchedules fetches the job schedules for a notebook.
func (c *Client) ListSchedules(ctx context.Context, notebookID string) ([]model.Schedule, error) {
	if notebookID == "" {
		return nil, fmt.Errorf("notebook ID is required")
	}

	var resp SchedulesResponse
	if err := c.get(ctx, schedulesPath(notebookID), nil, &resp); err != nil {
		return nil, fmt.Errorf("list schedules for notebook %s: %w", notebookID, err)
	}

	for _, s := range resp {
		c.rememberSchedule(s, notebookID)
	}
	return resp, nil
}

// CreateSchedule creates a schedule for a notebook. The backend's copy is
// returned when it sends one.
func (c *Client) CreateSchedule(ctx context.Context, notebookID string, s model.Schedule) (model.Schedule, error) {
	if notebookID == "" {
		return model.Schedule{}, fmt.Errorf("notebook ID is required")
	}
	if !s.Frequency.Valid() {
		return model.Schedule{}, fmt.Errorf("invalid schedule frequency %q", s.Frequency)
	}
	s.NotebookID = notebookID

	created := s
	if err := c.send(ctx, http.MethodPost, schedulesPath(notebookID), s, &created, c.schedulesKey(notebookID)); err != nil {
		return model.Schedule{}, fmt.Errorf("create schedule for notebook %s: %w", notebookID, err)
	}
	if created.NotebookID == "" {
		created.NotebookID = notebookID
	}

	c.rememberSchedule(created, notebookID)
	return created, nil
}

// UpdateSchedule replaces an existing schedule.
func (c *Client) UpdateSchedule(ctx context.Context, s model.Schedule) error {
	if s.ID == "" {
		return fmt.Errorf("schedule ID is required")
	}
	if !s.Frequency.Valid() {
		return fmt.Errorf("invalid schedule frequency %q", s.Frequency)
	}

	var invalidate []string
	if s.NotebookID != "" {
		invalidate = append(invalidate, c.schedulesKey(s.NotebookID))
	}

	if err := c.send(ctx, http.MethodPut, "/notebook_job_schedule", s, nil, invalidate...); err != nil {
		return fmt.Errorf("update schedule %s: %w", s.ID, err)
	}
	return nil
}

// DeleteSchedule removes a schedule.
func (c *Client) DeleteSchedule(ctx context.Context, scheduleID string) error {
	if scheduleID == "" {
		return fmt.Errorf("schedule ID is required")
	}

	var invalidate []string
	if owner, ok := c.scheduleOwners.LoadAndDelete(scheduleID); ok {
		invalidate = append(invalidate, c.schedulesKey(owner.(string)))
	}

	var resp DeleteResponse
	path := "/notebook_job_schedule/" + url.PathEscape(scheduleID)
	if err := c.send(ctx, http.MethodDelete, path, nil, &resp, invalidate...); err != nil {
		return fmt.Errorf("delete schedule %s: %w", scheduleID, err)
	}
	return nil
}

func (c *Client) rememberSchedule(s model.Schedule, notebookID string) {
	if s.ID != "" {
		c.scheduleOwners.Store(s.ID, notebookID)
	}
}

func (c *Client) schedulesKey(notebookID string) string {
	return cacheKey(schedulesPath(notebookID), nil)
}

func schedulesPath(notebookID string) string {
	return "/notebook_job_schedule/" + url.PathEscape(notebookID)
}
