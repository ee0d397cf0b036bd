package protocol

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/rickgao/notebook-client/internal/model"
)

// Command is an outbound frame.
type Command interface {
	Kind() Kind
	command()
}

// Execute runs a cell's code on the kernel. Answered by one Output naming CellID.
type Execute struct {
	CellID string `json:"cellId"`
	Code   string `json:"code"`
}

// SaveNotebook persists the full cell collection. Answered by NotebookSaved.
type SaveNotebook struct {
	Cells      []model.Cell `json:"cells"`
	Filename   string       `json:"filename"`
	NotebookID string       `json:"notebook_id"`
	UserID     string       `json:"user_id"`
}

// LoadNotebook fetches a saved notebook. Answered by NotebookLoaded.
type LoadNotebook struct {
	Filename   string `json:"filename"`
	NotebookID string `json:"notebook_id"`
	UserID     string `json:"user_id"`
}

// Restart restarts the kernel. No reply event.
type Restart struct{}

// DeployLambda packages the notebook's code for deployment.
// Answered by a stream of LambdaGenerated progress events.
type DeployLambda struct {
	AllCode      string `json:"all_code"`
	UserID       string `json:"user_id"`
	NotebookName string `json:"notebook_name"`
	NotebookID   string `json:"notebook_id"`
}

// PostHogSetup installs the PostHog connector. Answered by ConnectorStatus.
type PostHogSetup struct {
	UserID  string `json:"user_id"`
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

// CreateConnector registers a generic connector. Answered by ConnectorStatus
// progress and a final ConnectorCreated.
type CreateConnector struct {
	ConnectorType string            `json:"connector_type"`
	Credentials   map[string]string `json:"credentials"`
	UserID        string            `json:"user_id"`
	NotebookID    string            `json:"notebook_id"`
}

func (Execute) Kind() Kind         { return KindExecute }
func (SaveNotebook) Kind() Kind    { return KindSaveNotebook }
func (LoadNotebook) Kind() Kind    { return KindLoadNotebook }
func (Restart) Kind() Kind         { return KindRestart }
func (DeployLambda) Kind() Kind    { return KindDeployLambda }
func (PostHogSetup) Kind() Kind    { return KindPostHogSetup }
func (CreateConnector) Kind() Kind { return KindCreateConnector }

func (Execute) command()         {}
func (SaveNotebook) command()    {}
func (LoadNotebook) command()    {}
func (Restart) command()         {}
func (DeployLambda) command()    {}
func (PostHogSetup) command()    {}
func (CreateConnector) command() {}

// EncodeCommand serializes cmd as one frame with "type" as the first field.
func EncodeCommand(cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, fmt.Errorf("encode command: nil command")
	}

	body, err := sonic.ConfigStd.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.Kind(), err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("encode %s: payload is not an object", cmd.Kind())
	}

	frame := make([]byte, 0, len(body)+len(cmd.Kind())+12)
	frame = append(frame, `{"type":"`...)
	frame = append(frame, cmd.Kind()...)
	frame = append(frame, '"')
	if len(body) > 2 {
		frame = append(frame, ',')
	}
	frame = append(frame, body[1:]...)
	return frame, nil
}
