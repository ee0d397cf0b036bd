package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/notebook-client/internal/connection"
	"github.com/rickgao/notebook-client/internal/model"
	"github.com/rickgao/notebook-client/internal/notebook"
)

// evalKernel answers execute frames for "1+1" with output "2".
func evalKernel(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()

	var (
		mu    sync.Mutex
		paths []string
	)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"init","message":"Kernel initializing"}`))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if strings.Contains(string(data), `"code":"1+1"`) {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"output","cellId":"c1","output":"2"}`))
			}
		}
	}))
	t.Cleanup(srv.Close)

	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), paths...)
	}
}

func TestSession_ExecuteAgainstKernel(t *testing.T) {
	srv, paths := evalKernel(t)

	store := notebook.NewStore(model.Cell{ID: "c1", Code: "1+1", ExecutionCount: 2, Type: model.CellCode})
	notices := &noticeLog{}

	cfg := DefaultConfig(model.NotebookRef{ID: "n1", UserID: "u1"})
	cfg.SessionID = "s1"
	cfg.Connection.Host = strings.TrimPrefix(srv.URL, "http://")
	cfg.Connection.ReconnectInterval = 10 * time.Millisecond

	s, err := New(cfg, store, WithNotifier(notices))
	require.NoError(t, err)
	assert.Equal(t, "ws://"+cfg.Connection.Host+"/ws/s1/n1", s.Target())

	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { s.Close(context.Background()) })

	require.Eventually(t, func() bool {
		return s.Status() == connection.StatusOpen
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.ExecuteCell("c1"))

	require.Eventually(t, func() bool {
		c, _ := store.Get("c1")
		return c.Output == "2"
	}, 2*time.Second, 5*time.Millisecond)

	c1, _ := store.Get("c1")
	assert.Equal(t, 3, c1.ExecutionCount)
	assert.Empty(t, s.Executing())
	assert.Equal(t, []string{"/ws/s1/n1"}, paths())

	require.Eventually(t, func() bool {
		for _, n := range notices.all() {
			if n.Title == "Kernel" && n.Message == "Kernel initializing" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, connection.StatusClosed, s.Status())
}
