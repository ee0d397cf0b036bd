package protocol

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/rickgao/notebook-client/internal/model"
)

func TestEncodeCommand_Execute(t *testing.T) {
	frame, err := EncodeCommand(Execute{CellID: "c1", Code: "1+1"})
	if err != nil {
		t.Fatalf("EncodeCommand failed: %v", err)
	}

	want := `{"type":"execute","cellId":"c1","code":"1+1"}`
	if string(frame) != want {
		t.Errorf("frame = %s, want %s", frame, want)
	}
}

func TestEncodeCommand_Restart(t *testing.T) {
	frame, err := EncodeCommand(Restart{})
	if err != nil {
		t.Fatalf("EncodeCommand failed: %v", err)
	}
	if string(frame) != `{"type":"restart"}` {
		t.Errorf("frame = %s, want %s", frame, `{"type":"restart"}`)
	}
}

func TestEncodeCommand_Shapes(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want map[string]any
	}{
		{
			name: "save_notebook",
			cmd: SaveNotebook{
				Cells:      []model.Cell{{ID: "c1", Code: "x", Type: model.CellCode}},
				Filename:   "nb.ipynb",
				NotebookID: "n1",
				UserID:     "u1",
			},
			want: map[string]any{
				"type": "save_notebook",
				"cells": []any{map[string]any{
					"id": "c1", "code": "x", "output": "", "executionCount": float64(0), "type": "code",
				}},
				"filename":    "nb.ipynb",
				"notebook_id": "n1",
				"user_id":     "u1",
			},
		},
		{
			name: "load_notebook",
			cmd:  LoadNotebook{Filename: "nb.ipynb", NotebookID: "n1", UserID: "u1"},
			want: map[string]any{
				"type": "load_notebook", "filename": "nb.ipynb", "notebook_id": "n1", "user_id": "u1",
			},
		},
		{
			name: "deploy_lambda",
			cmd:  DeployLambda{AllCode: "print(1)", UserID: "u1", NotebookName: "demo", NotebookID: "n1"},
			want: map[string]any{
				"type": "deploy_lambda", "all_code": "print(1)", "user_id": "u1",
				"notebook_name": "demo", "notebook_id": "n1",
			},
		},
		{
			name: "posthog_setup",
			cmd:  PostHogSetup{UserID: "u1", APIKey: "phx", BaseURL: "https://app.posthog.com"},
			want: map[string]any{
				"type": "posthog_setup", "user_id": "u1", "api_key": "phx", "base_url": "https://app.posthog.com",
			},
		},
		{
			name: "create_connector",
			cmd: CreateConnector{
				ConnectorType: "posthog",
				Credentials:   map[string]string{"api_key": "phx"},
				UserID:        "u1",
				NotebookID:    "n1",
			},
			want: map[string]any{
				"type": "create_connector", "connector_type": "posthog",
				"credentials": map[string]any{"api_key": "phx"},
				"user_id":     "u1", "notebook_id": "n1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := EncodeCommand(tt.cmd)
			if err != nil {
				t.Fatalf("EncodeCommand failed: %v", err)
			}
			var got map[string]any
			if err := json.Unmarshal(frame, &got); err != nil {
				t.Fatalf("frame is not JSON: %v (%s)", err, frame)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("frame = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeCommand_Nil(t *testing.T) {
	if _, err := EncodeCommand(nil); err == nil {
		t.Error("expected error for nil command")
	}
}

func TestCommandKinds_Covered(t *testing.T) {
	cmds := []Command{Execute{}, SaveNotebook{}, LoadNotebook{}, Restart{}, DeployLambda{}, PostHogSetup{}, CreateConnector{}}
	if len(cmds) != len(CommandKinds) {
		t.Fatalf("have %d commands, CommandKinds lists %d", len(cmds), len(CommandKinds))
	}
	for i, c := range cmds {
		if c.Kind() != CommandKinds[i] {
			t.Errorf("command %d Kind() = %q, want %q", i, c.Kind(), CommandKinds[i])
		}
	}
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Event
	}{
		{
			name:  "init",
			frame: `{"type":"init","message":"Kernel initializing. Please wait."}`,
			want:  Init{Message: "Kernel initializing. Please wait."},
		},
		{
			name:  "output",
			frame: `{"type":"output","cellId":"c1","output":"2"}`,
			want:  Output{CellID: "c1", Output: "2"},
		},
		{
			name:  "output empty text",
			frame: `{"type":"output","cellId":"c1","output":""}`,
			want:  Output{CellID: "c1", Output: ""},
		},
		{
			name:  "notebook_saved",
			frame: `{"type":"notebook_saved","success":true,"message":"saved"}`,
			want:  NotebookSaved{Success: true, Message: "saved"},
		},
		{
			name:  "lambda_generated",
			frame: `{"type":"lambda_generated","success":false,"message":"Shipping your code to the cloud"}`,
			want:  LambdaGenerated{Success: false, Message: "Shipping your code to the cloud"},
		},
		{
			name:  "posthog_setup",
			frame: `{"type":"posthog_setup","success":true,"message":"PostHog setup complete"}`,
			want:  ConnectorStatus{Source: KindPostHogSetup, Success: true, Message: "PostHog setup complete"},
		},
		{
			name:  "connector_status",
			frame: `{"type":"connector_status","success":false,"message":"bad key","cell":null}`,
			want:  ConnectorStatus{Source: KindConnectorStatus, Success: false, Message: "bad key"},
		},
		{
			name:  "connector_created",
			frame: `{"type":"connector_created","success":true,"connector_type":"posthog","code":"ph = PostHog()","docstring":"# PostHog"}`,
			want: ConnectorCreated{
				Success: true, ConnectorType: "posthog", Code: "ph = PostHog()", Docstring: "# PostHog",
			},
		},
		{
			name:  "error",
			frame: `{"type":"error","message":"kernel died"}`,
			want:  Error{Message: "kernel died"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEvent([]byte(tt.frame))
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeEvent = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeEvent_NotebookLoaded(t *testing.T) {
	frame := `{"type":"notebook_loaded","success":true,"message":"ok","cells":[
		{"id":"a","code":"1+1","output":"2","executionCount":3,"type":"code"},
		{"id":"b","code":"# hi","output":"","executionCount":0}
	]}`

	ev, err := DecodeEvent([]byte(frame))
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	loaded, ok := ev.(NotebookLoaded)
	if !ok {
		t.Fatalf("event type = %T, want NotebookLoaded", ev)
	}
	if !loaded.Success || len(loaded.Cells) != 2 {
		t.Fatalf("loaded = %+v", loaded)
	}
	if loaded.Cells[0].ExecutionCount != 3 || loaded.Cells[0].Output != "2" {
		t.Errorf("cell a = %+v", loaded.Cells[0])
	}
	// Missing type defaults to code.
	if loaded.Cells[1].Type != model.CellCode {
		t.Errorf("cell b type = %q, want %q", loaded.Cells[1].Type, model.CellCode)
	}
}

func TestDecodeEvent_NotebookLoadedNullCells(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"notebook_loaded","success":false,"message":"not found","cells":null}`))
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	loaded := ev.(NotebookLoaded)
	if loaded.Cells == nil || len(loaded.Cells) != 0 {
		t.Errorf("Cells = %#v, want empty non-nil slice", loaded.Cells)
	}
}

func TestDecodeEvent_Errors(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  error
	}{
		{"not json", `not json {{{`, ErrMalformed},
		{"array", `[1,2,3]`, ErrMalformed},
		{"null", `null`, ErrMalformed},
		{"missing type", `{"cellId":"c1"}`, ErrMalformed},
		{"empty type", `{"type":""}`, ErrMalformed},
		{"type not string", `{"type":7}`, ErrMalformed},
		{"unknown type", `{"type":"telemetry","x":1}`, ErrUnknownType},
		{"output missing cellId", `{"type":"output","output":"2"}`, ErrMalformed},
		{"output missing output", `{"type":"output","cellId":"c1"}`, ErrMalformed},
		{"output wrong type", `{"type":"output","cellId":5,"output":"2"}`, ErrMalformed},
		{"saved missing success", `{"type":"notebook_saved","message":"x"}`, ErrMalformed},
		{"loaded missing success", `{"type":"notebook_loaded","cells":[]}`, ErrMalformed},
		{"error missing message", `{"type":"error"}`, ErrMalformed},
		{"error message not string", `{"type":"error","message":{"code":1}}`, ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tt.frame))
			if !errors.Is(err, tt.want) {
				t.Errorf("DecodeEvent err = %v, want %v", err, tt.want)
			}
			if ev != nil {
				t.Errorf("DecodeEvent event = %#v, want nil", ev)
			}
		})
	}
}

func TestEventKinds_AllDecodable(t *testing.T) {
	// A minimal valid frame for every kind; adding a kind without a decode
	// branch fails here.
	frames := map[Kind]string{
		KindInit:             `{"type":"init"}`,
		KindOutput:           `{"type":"output","cellId":"c","output":""}`,
		KindNotebookLoaded:   `{"type":"notebook_loaded","success":true}`,
		KindNotebookSaved:    `{"type":"notebook_saved","success":true}`,
		KindLambdaGenerated:  `{"type":"lambda_generated","success":true}`,
		KindPostHogSetup:     `{"type":"posthog_setup","success":true}`,
		KindConnectorStatus:  `{"type":"connector_status","success":true}`,
		KindConnectorCreated: `{"type":"connector_created","success":true}`,
		KindError:            `{"type":"error","message":"x"}`,
	}

	for _, kind := range EventKinds {
		frame, ok := frames[kind]
		if !ok {
			t.Errorf("no sample frame for kind %q", kind)
			continue
		}
		ev, err := DecodeEvent([]byte(frame))
		if err != nil {
			t.Errorf("kind %q: DecodeEvent failed: %v", kind, err)
			continue
		}
		if ev.Kind() != kind {
			t.Errorf("kind %q decoded as %q", kind, ev.Kind())
		}
	}
}

func TestPeekType(t *testing.T) {
	kind, err := PeekType([]byte(`{"type":"output","cellId":"c1","output":"2"}`))
	if err != nil {
		t.Fatalf("PeekType failed: %v", err)
	}
	if kind != KindOutput {
		t.Errorf("kind = %q, want %q", kind, KindOutput)
	}
}

func TestAsErrorFrame(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantMsg string
		wantOK  bool
	}{
		{"message object", `{"type":"error","message":{"code":1}}`, "map[code:1]", true},
		{"error field", `{"type":"error","error":"boom"}`, "boom", true},
		{"bare", `{"type":"error"}`, "kernel reported an error", true},
		{"other kind", `{"type":"output","message":"x"}`, "", false},
		{"not json", `{{`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := AsErrorFrame([]byte(tt.frame))
			if ok != tt.wantOK || msg != tt.wantMsg {
				t.Errorf("AsErrorFrame = (%q, %v), want (%q, %v)", msg, ok, tt.wantMsg, tt.wantOK)
			}
		})
	}
}

func TestPeekCellID(t *testing.T) {
	tests := []struct {
		frame  string
		want   string
		wantOK bool
	}{
		{`{"type":"output","cellId":"c1","output":"2"}`, "c1", true},
		{`{"type":"execute","cellId":"abc","code":"1+1"}`, "abc", true},
		{`{"type":"output","cellId":"","output":"2"}`, "", false},
		{`{"type":"output","cellId":7}`, "", false},
		{`{"type":"init","message":"hi"}`, "", false},
		{`garbage`, "", false},
	}

	for _, tt := range tests {
		got, ok := PeekCellID([]byte(tt.frame))
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("PeekCellID(%s) = (%q, %v), want (%q, %v)", tt.frame, got, ok, tt.want, tt.wantOK)
		}
	}
}
