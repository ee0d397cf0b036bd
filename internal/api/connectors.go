package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"

	"github.com/rickgao/notebook-client/internal/model"
)

// ListConnectors fetches the connectors attached to a notebook.
func (c *Client) ListConnectors(ctx context.Context, userID, notebookID string) ([]model.Connector, error) {
	if userID == "" || notebookID == "" {
		return nil, fmt.Errorf("user ID and notebook ID are required")
	}

	var resp ConnectorsResponse
	if err := c.get(ctx, connectorsPath(userID, notebookID), nil, &resp); err != nil {
		return nil, fmt.Errorf("list connectors for notebook %s: %w", notebookID, err)
	}
	return resp, nil
}

// HasConnector reports whether a connector of the given type is attached.
func (c *Client) HasConnector(ctx context.Context, userID, notebookID, connectorType string) (bool, error) {
	if userID == "" || notebookID == "" || connectorType == "" {
		return false, fmt.Errorf("user ID, notebook ID and connector type are required")
	}

	path := connectorsPath(userID, notebookID) + "/" + url.PathEscape(connectorType)
	body, err := c.doWithRetry(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return false, fmt.Errorf("check %s connector: %w", connectorType, err)
	}

	exists, err := connectorExists(body)
	if err != nil {
		return false, fmt.Errorf("check %s connector: %w", connectorType, err)
	}
	return exists, nil
}

// NotebookDetails fetches a notebook's metadata.
func (c *Client) NotebookDetails(ctx context.Context, notebookID string) (model.NotebookDetails, error) {
	if notebookID == "" {
		return model.NotebookDetails{}, fmt.Errorf("notebook ID is required")
	}

	var d model.NotebookDetails
	if err := c.get(ctx, "/notebook_details/"+url.PathEscape(notebookID), nil, &d); err != nil {
		return model.NotebookDetails{}, fmt.Errorf("notebook details %s: %w", notebookID, err)
	}
	return d, nil
}

// connectorExists interprets the existence reply: a bare boolean, an object
// with "exists" or "connected", a connector record, or a list of records.
func connectorExists(body []byte) (bool, error) {
	root, err := sonic.Get(body)
	if err != nil {
		return false, fmt.Errorf("unmarshal response: %w", err)
	}

	switch root.Type() {
	case ast.V_TRUE:
		return true, nil
	case ast.V_FALSE, ast.V_NULL:
		return false, nil
	case ast.V_ARRAY:
		var items []any
		if err := sonic.ConfigStd.Unmarshal(body, &items); err != nil {
			return false, fmt.Errorf("unmarshal response: %w", err)
		}
		return len(items) > 0, nil
	case ast.V_OBJECT:
		var obj struct {
			Exists    *bool `json:"exists"`
			Connected *bool `json:"connected"`
			ID        any   `json:"id"`
		}
		if err := sonic.ConfigStd.Unmarshal(body, &obj); err != nil {
			return false, fmt.Errorf("unmarshal response: %w", err)
		}
		switch {
		case obj.Exists != nil:
			return *obj.Exists, nil
		case obj.Connected != nil:
			return *obj.Connected, nil
		}
		return obj.ID != nil, nil
	}
	return false, fmt.Errorf("unexpected connector reply: %s", preview(body))
}

func connectorsPath(userID, notebookID string) string {
	return "/connectors/" + url.PathEscape(userID) + "/" + url.PathEscape(notebookID)
}

func preview(body []byte) string {
	const max = 128
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}
