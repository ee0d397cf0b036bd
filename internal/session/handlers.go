package session

import (
	"fmt"
	"strings"

	"github.com/rickgao/notebook-client/internal/connection"
	"github.com/rickgao/notebook-client/internal/journal"
	"github.com/rickgao/notebook-client/internal/model"
	"github.com/rickgao/notebook-client/internal/protocol"
)

func (s *Session) onInit(e protocol.Init) {
	s.notify(LevelInfo, "Kernel", e.Message)
}

// onOutput stores the output before the cell leaves the executing set, so a
// cell that is no longer executing always shows its new output.
func (s *Session) onOutput(e protocol.Output) {
	if !s.store.UpdateOutput(e.CellID, e.Output) {
		s.logger.Debug("output for unknown cell", "cell", e.CellID)
	}

	s.mu.Lock()
	delete(s.executing, e.CellID)
	s.mu.Unlock()
}

func (s *Session) onNotebookLoaded(e protocol.NotebookLoaded) {
	defer s.release(OpLoad)

	if !e.Success {
		s.notify(LevelError, "Notebook load failed", e.Message)
		return
	}

	s.mu.Lock()
	clear(s.executing)
	s.mu.Unlock()

	s.store.Replace(e.Cells)
	s.notify(LevelSuccess, "Notebook loaded", fmt.Sprintf("Loaded %d cells", len(e.Cells)))
}

func (s *Session) onNotebookSaved(e protocol.NotebookSaved) {
	s.release(OpSave)

	if e.Success {
		s.notify(LevelSuccess, "Notebook saved", e.Message)
		return
	}
	s.notify(LevelError, "Notebook save failed", e.Message)
}

// onLambdaGenerated handles one deploy step. Intermediate steps report
// success=false; the last step carries the outcome.
func (s *Session) onLambdaGenerated(e protocol.LambdaGenerated) {
	s.mu.Lock()
	s.deploySteps++
	step := s.deploySteps
	s.mu.Unlock()

	switch {
	case e.Success:
		s.release(OpDeploy)
		s.notify(LevelSuccess, "Deployed", e.Message)
	case step >= deploySteps:
		s.release(OpDeploy)
		s.notify(LevelError, "Deploy failed", e.Message)
	default:
		s.notify(LevelInfo, "Deploying", fmt.Sprintf("[%d/%d] %s", step, deploySteps, e.Message))
	}
}

// onConnectorStatus handles the posthog_setup reply and create_connector
// progress. A connector_status success is progress only; the operation stays
// pending until connector_created materializes the cells.
func (s *Session) onConnectorStatus(e protocol.ConnectorStatus) {
	title := "Connector"
	if e.Kind() == protocol.KindPostHogSetup {
		title = "PostHog"
		s.release(OpConnector)
	} else if !e.Success {
		s.release(OpConnector)
	}
	if e.Success {
		s.notify(LevelSuccess, title, e.Message)
		return
	}
	s.notify(LevelError, title+" setup failed", e.Message)
}

// onConnectorCreated adds the generated code cell (optionally executed) and
// a markdown cell with its documentation. The operation stays pending until
// the cells are in place.
func (s *Session) onConnectorCreated(e protocol.ConnectorCreated) {
	defer s.release(OpConnector)

	if !e.Success {
		s.notify(LevelError, "Connector setup failed", e.Message)
		return
	}

	var codeID string
	if strings.TrimSpace(e.Code) != "" {
		cell, err := s.store.AppendCell(model.Cell{Code: e.Code, Type: model.CellCode})
		if err != nil {
			s.logger.Warn("failed to add connector code cell", "error", err)
		} else {
			codeID = cell.ID
		}
	}
	if strings.TrimSpace(e.Docstring) != "" {
		if _, err := s.store.AppendCell(model.Cell{Code: e.Docstring, Type: model.CellMarkdown}); err != nil {
			s.logger.Warn("failed to add connector docs cell", "error", err)
		}
	}

	if codeID != "" && s.cfg.ExecuteConnectorCode {
		if err := s.ExecuteCell(codeID); err != nil {
			s.logger.Warn("failed to execute connector code", "cell", codeID, "error", err)
		}
	}

	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("%s connector ready", e.ConnectorType)
	}
	s.notify(LevelSuccess, "Connector created", msg)
}

// onError surfaces a kernel error. Keyless operations cannot be matched to
// it, so all of them are released.
func (s *Session) onError(e protocol.Error) {
	s.mu.Lock()
	clear(s.pending)
	s.mu.Unlock()

	s.notify(LevelError, "Error", e.Message)
}

func (s *Session) onStatus(c connection.StatusChange) {
	if c.To == connection.StatusOpen {
		return
	}

	msg := c.To.String()
	if c.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, c.Err)
	}

	if c.To != connection.StatusClosed || !c.Terminal {
		s.notify(LevelWarning, "Kernel Status", msg)
		return
	}

	ops, cells := s.releaseAll()
	if len(ops) > 0 || cells > 0 {
		s.logger.Warn("connection gone, abandoning outstanding work",
			"operations", ops,
			"executing_cells", cells,
		)
	}
	s.notify(LevelError, "Kernel Status", msg)
}

func (s *Session) recordOutbound(cmd protocol.Command) {
	if _, nop := s.recorder.(journal.Nop); nop {
		return
	}
	payload, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return
	}
	var cellID string
	if ex, ok := cmd.(protocol.Execute); ok {
		cellID = ex.CellID
	}
	s.recorder.Record(journal.Entry{
		Direction:  journal.Outbound,
		Kind:       cmd.Kind(),
		SessionID:  string(s.id),
		NotebookID: s.ref.ID,
		CellID:     cellID,
		Payload:    payload,
	})
}

func (s *Session) recordInbound(kind protocol.Kind, data []byte) {
	if _, nop := s.recorder.(journal.Nop); nop {
		return
	}
	cellID, _ := protocol.PeekCellID(data)
	s.recorder.Record(journal.Entry{
		Direction:  journal.Inbound,
		Kind:       kind,
		SessionID:  string(s.id),
		NotebookID: s.ref.ID,
		CellID:     cellID,
		Payload:    append([]byte(nil), data...),
	})
}
