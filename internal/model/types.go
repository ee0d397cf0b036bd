package model

import "github.com/google/uuid"

// -----------------------------------------------------------------------------
// Notebook Types
// -----------------------------------------------------------------------------

// CellType is the kind of content a cell holds.
type CellType string

const (
	CellCode     CellType = "code"
	CellMarkdown CellType = "markdown"
	CellFile     CellType = "file"
)

// Valid reports whether t is one of the known cell types.
func (t CellType) Valid() bool {
	switch t {
	case CellCode, CellMarkdown, CellFile:
		return true
	}
	return false
}

// Cell is one unit of notebook content.
type Cell struct {
	ID             string   `json:"id"`             // Assigned client-side, immutable
	Code           string   `json:"code"`           // Source text (code or markdown)
	Output         string   `json:"output"`         // Last output received from the kernel
	ExecutionCount int      `json:"executionCount"` // Client-local epoch, bumped on output update
	Type           CellType `json:"type"`
}

// NewCell returns an empty cell of the given type with a fresh ID.
// Unknown types fall back to CellCode.
func NewCell(t CellType) Cell {
	if !t.Valid() {
		t = CellCode
	}
	return Cell{ID: NewCellID(), Type: t}
}

// NotebookRef identifies the notebook a session is bound to.
// Supplied externally by routing/auth.
type NotebookRef struct {
	ID     string
	UserID string
	Name   string
}

// SessionID identifies one mounted notebook view. It is not a credential.
type SessionID string

// NewSessionID generates a fresh session identity.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// NewCellID generates a fresh cell identity.
func NewCellID() string {
	return uuid.NewString()
}

// -----------------------------------------------------------------------------
// Backend (HTTP) Types
// -----------------------------------------------------------------------------

// Job is one execution of a deployed notebook.
type Job struct {
	RequestID   string         `json:"request_id"`
	InputParams map[string]any `json:"input_params"`
	Completed   *bool          `json:"completed"`
	Result      map[string]any `json:"result"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
	CompletedAt string         `json:"completed_at"`
	Error       string         `json:"error"`
}

// JobState is the display state derived from a job record.
type JobState string

const (
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// State derives the job state: completed wins over error, error over running.
func (j Job) State() JobState {
	if j.Completed != nil && *j.Completed {
		return JobCompleted
	}
	if j.Error != "" {
		return JobFailed
	}
	return JobRunning
}

// JobList is the envelope returned by the job status endpoints.
type JobList struct {
	Jobs []Job `json:"jobs"`
}

// ScheduleFrequency is how often a scheduled job runs.
type ScheduleFrequency string

const (
	FrequencyHourly  ScheduleFrequency = "hourly"
	FrequencyDaily   ScheduleFrequency = "daily"
	FrequencyWeekly  ScheduleFrequency = "weekly"
	FrequencyMonthly ScheduleFrequency = "monthly"
)

// Valid reports whether f is a supported frequency.
func (f ScheduleFrequency) Valid() bool {
	switch f {
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Schedule is a recurring job definition for a notebook.
type Schedule struct {
	ID         string            `json:"id,omitempty"`
	NotebookID string            `json:"notebook_id"`
	Name       string            `json:"name,omitempty"`
	Frequency  ScheduleFrequency `json:"schedule"`
	Payload    map[string]any    `json:"payload,omitempty"`
	CreatedAt  string            `json:"created_at,omitempty"`
}

// Connector is an external data source attached to a notebook.
type Connector struct {
	ID            string `json:"id,omitempty"`
	UserID        string `json:"user_id"`
	NotebookID    string `json:"notebook_id"`
	ConnectorType string `json:"connector_type"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// NotebookDetails is the notebook metadata served by the backend.
type NotebookDetails struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	LambdaURL   string `json:"lambda_url,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}
