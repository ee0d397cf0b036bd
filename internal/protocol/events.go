package protocol

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"

	"github.com/rickgao/notebook-client/internal/model"
)

// Errors
var (
	ErrMalformed   = errors.New("malformed frame")
	ErrUnknownType = errors.New("unknown frame type")
)

// Event is an inbound frame.
type Event interface {
	Kind() Kind
	event()
}

// Init is informational: the kernel for this notebook is warming up.
type Init struct {
	Message string
}

// Output carries the result of an Execute.
type Output struct {
	CellID string
	Output string
}

// NotebookLoaded carries the full cell collection of a loaded notebook.
type NotebookLoaded struct {
	Success bool
	Message string
	Cells   []model.Cell
}

// NotebookSaved reports the outcome of a SaveNotebook.
type NotebookSaved struct {
	Success bool
	Message string
}

// LambdaGenerated is one progress step of a deploy. Several arrive per DeployLambda.
type LambdaGenerated struct {
	Success bool
	Message string
}

// ConnectorStatus reports connector setup progress. Source records which
// wire kind it arrived as (posthog_setup or connector_status).
type ConnectorStatus struct {
	Source  Kind
	Success bool
	Message string
}

// ConnectorCreated carries the generated code and docstring for a new connector.
type ConnectorCreated struct {
	Success       bool
	Message       string
	ConnectorType string
	Code          string
	Docstring     string
}

// Error is a business error reported by the kernel. It does not close the connection.
type Error struct {
	Message string
}

func (Init) Kind() Kind             { return KindInit }
func (Output) Kind() Kind           { return KindOutput }
func (NotebookLoaded) Kind() Kind   { return KindNotebookLoaded }
func (NotebookSaved) Kind() Kind    { return KindNotebookSaved }
func (LambdaGenerated) Kind() Kind  { return KindLambdaGenerated }
func (ConnectorCreated) Kind() Kind { return KindConnectorCreated }
func (Error) Kind() Kind            { return KindError }

// Kind returns the wire kind the status arrived as.
func (e ConnectorStatus) Kind() Kind {
	if e.Source == "" {
		return KindConnectorStatus
	}
	return e.Source
}

func (Init) event()             {}
func (Output) event()           {}
func (NotebookLoaded) event()   {}
func (NotebookSaved) event()    {}
func (LambdaGenerated) event()  {}
func (ConnectorStatus) event()  {}
func (ConnectorCreated) event() {}
func (Error) event()            {}

// Wire shapes. Pointer fields are required; a nil pointer fails decode.

type envelopeWire struct {
	Type *string `json:"type"`
}

type initWire struct {
	Message string `json:"message"`
}

type outputWire struct {
	CellID *string `json:"cellId"`
	Output *string `json:"output"`
}

type statusWire struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

type loadedWire struct {
	Success *bool        `json:"success"`
	Message string       `json:"message"`
	Cells   []model.Cell `json:"cells"`
}

type createdWire struct {
	Success       *bool  `json:"success"`
	Message       string `json:"message"`
	ConnectorType string `json:"connector_type"`
	Code          string `json:"code"`
	Docstring     string `json:"docstring"`
}

type errorWire struct {
	Message *string `json:"message"`
}

// PeekType extracts the "type" tag without decoding the payload.
func PeekType(frame []byte) (Kind, error) {
	var env envelopeWire
	if err := sonic.ConfigStd.Unmarshal(frame, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == nil || *env.Type == "" {
		return "", fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return Kind(*env.Type), nil
}

// PeekCellID returns the "cellId" of an execute or output frame without
// decoding the rest of it.
func PeekCellID(frame []byte) (string, bool) {
	node, err := sonic.Get(frame, "cellId")
	if err != nil || node.Type() != ast.V_STRING {
		return "", false
	}
	id, err := node.String()
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}

// DecodeEvent decodes one inbound frame into its typed Event.
// Fails with ErrMalformed or ErrUnknownType.
func DecodeEvent(frame []byte) (Event, error) {
	kind, err := PeekType(frame)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindInit:
		var w initWire
		if err := unmarshal(kind, frame, &w); err != nil {
			return nil, err
		}
		return Init{Message: w.Message}, nil

	case KindOutput:
		var w outputWire
		if err := unmarshal(kind, frame, &w); err != nil {
			return nil, err
		}
		if w.CellID == nil || *w.CellID == "" {
			return nil, missing(kind, "cellId")
		}
		if w.Output == nil {
			return nil, missing(kind, "output")
		}
		return Output{CellID: *w.CellID, Output: *w.Output}, nil

	case KindNotebookLoaded:
		var w loadedWire
		if err := unmarshal(kind, frame, &w); err != nil {
			return nil, err
		}
		if w.Success == nil {
			return nil, missing(kind, "success")
		}
		return NotebookLoaded{Success: *w.Success, Message: w.Message, Cells: normalizeCells(w.Cells)}, nil

	case KindNotebookSaved:
		w, err := decodeStatus(kind, frame)
		if err != nil {
			return nil, err
		}
		return NotebookSaved{Success: *w.Success, Message: w.Message}, nil

	case KindLambdaGenerated:
		w, err := decodeStatus(kind, frame)
		if err != nil {
			return nil, err
		}
		return LambdaGenerated{Success: *w.Success, Message: w.Message}, nil

	case KindPostHogSetup, KindConnectorStatus:
		w, err := decodeStatus(kind, frame)
		if err != nil {
			return nil, err
		}
		return ConnectorStatus{Source: kind, Success: *w.Success, Message: w.Message}, nil

	case KindConnectorCreated:
		var w createdWire
		if err := unmarshal(kind, frame, &w); err != nil {
			return nil, err
		}
		if w.Success == nil {
			return nil, missing(kind, "success")
		}
		return ConnectorCreated{
			Success:       *w.Success,
			Message:       w.Message,
			ConnectorType: w.ConnectorType,
			Code:          w.Code,
			Docstring:     w.Docstring,
		}, nil

	case KindError:
		var w errorWire
		if err := unmarshal(kind, frame, &w); err != nil {
			return nil, err
		}
		if w.Message == nil {
			return nil, missing(kind, "message")
		}
		return Error{Message: *w.Message}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownType, kind)
}

// AsErrorFrame recovers a message from a frame tagged "error" whose payload
// failed structural decode (wrong field types, missing message).
func AsErrorFrame(frame []byte) (string, bool) {
	var w struct {
		Type    string `json:"type"`
		Message any    `json:"message"`
		Error   any    `json:"error"`
	}
	if err := sonic.ConfigStd.Unmarshal(frame, &w); err != nil {
		return "", false
	}
	if Kind(w.Type) != KindError {
		return "", false
	}
	switch {
	case w.Message != nil:
		return fmt.Sprint(w.Message), true
	case w.Error != nil:
		return fmt.Sprint(w.Error), true
	}
	return "kernel reported an error", true
}

func decodeStatus(kind Kind, frame []byte) (statusWire, error) {
	var w statusWire
	if err := unmarshal(kind, frame, &w); err != nil {
		return w, err
	}
	if w.Success == nil {
		return w, missing(kind, "success")
	}
	return w, nil
}

func unmarshal(kind Kind, frame []byte, v any) error {
	if err := sonic.ConfigStd.Unmarshal(frame, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, kind, err)
	}
	return nil
}

func missing(kind Kind, field string) error {
	return fmt.Errorf("%w: %s: missing %s", ErrMalformed, kind, field)
}

// normalizeCells fills defaults the backend may omit. Never returns nil.
func normalizeCells(cells []model.Cell) []model.Cell {
	out := make([]model.Cell, 0, len(cells))
	for _, c := range cells {
		if !c.Type.Valid() {
			c.Type = model.CellCode
		}
		if c.ExecutionCount < 0 {
			c.ExecutionCount = 0
		}
		if c.ID == "" {
			c.ID = model.NewCellID()
		}
		out = append(out, c)
	}
	return out
}
