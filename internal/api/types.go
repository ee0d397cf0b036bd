package api

import "github.com/rickgao/notebook-client/internal/model"

// JobsResponse from GET /status/jobs/{user_id} and /status/notebook/jobs/{notebook_id}
type JobsResponse = model.JobList

// SchedulesResponse from GET /notebook_job_schedule/{notebook_id}
type SchedulesResponse []model.Schedule

// ConnectorsResponse from GET /connectors/{user_id}/{notebook_id}
type ConnectorsResponse []model.Connector

// DeleteResponse from DELETE /notebook_job_schedule/{schedule_id}
type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
