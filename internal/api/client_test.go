package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/notebook-client/internal/auth"
	"github.com/rickgao/notebook-client/internal/cache"
	"github.com/rickgao/notebook-client/internal/model"
)

var testCreds = auth.Credentials{UserID: "u1", Token: "test-token"}

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://api.example.com/", testCreds)

		if c.baseURL != "https://api.example.com" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "https://api.example.com")
		}
		if c.creds != testCreds {
			t.Errorf("creds = %+v, want %+v", c.creds, testCreds)
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
		}
		if c.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 3)
		}
		if c.retryBackoff != time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, time.Second)
		}
		if _, ok := c.cache.(cache.Nop); !ok {
			t.Errorf("cache = %T, want cache.Nop", c.cache)
		}
	})

	t.Run("with options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		hc := &http.Client{Timeout: 10 * time.Second}
		mem := cache.NewMemory(nil)

		c := NewClient("https://api.example.com", testCreds,
			WithHTTPClient(hc),
			WithTimeout(15*time.Second),
			WithRetries(10, 500*time.Millisecond),
			WithLogger(logger),
			WithCache(mem, time.Minute),
		)
		if c.httpClient != hc || hc.Timeout != 15*time.Second {
			t.Errorf("http client not configured: %v", c.httpClient.Timeout)
		}
		if c.maxRetries != 10 || c.retryBackoff != 500*time.Millisecond {
			t.Errorf("retries = %d/%v", c.maxRetries, c.retryBackoff)
		}
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
		if c.cache != mem || c.cacheTTL != time.Minute {
			t.Error("cache not set correctly")
		}
	})

	t.Run("cache with zero ttl is disabled", func(t *testing.T) {
		c := NewClient("https://api.example.com", testCreds, WithCache(cache.NewMemory(nil), 0))
		if _, ok := c.cache.(cache.Nop); !ok || c.cacheTTL != 0 {
			t.Errorf("cache = %T ttl %v, want disabled", c.cache, c.cacheTTL)
		}
	})
}

// TestAPIError tests the APIError type.
func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 404, Message: "Not Found"}
	if err.Error() != "notebook api error 404: Not Found" {
		t.Errorf("Error() = %q", err.Error())
	}

	tests := []struct {
		code     int
		expected bool
	}{
		{500, true},
		{502, true},
		{503, true},
		{429, true},
		{400, false},
		{401, false},
		{404, false},
		{200, false},
	}
	for _, tt := range tests {
		err := &APIError{StatusCode: tt.code}
		if got := err.IsRetryable(); got != tt.expected {
			t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
		}
	}

	wrapped := errors.Join(errors.New("outer"), &APIError{StatusCode: 404})
	if !IsNotFound(wrapped) {
		t.Error("IsNotFound should see through wrapping")
	}
	if IsNotFound(&APIError{StatusCode: 500}) || IsNotFound(errors.New("x")) {
		t.Error("IsNotFound false positive")
	}
}

// TestDoRequest tests the HTTP request functionality.
func TestDoRequest(t *testing.T) {
	t.Run("sends bearer token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Accept") != "application/json" {
				t.Errorf("Accept header = %q", r.Header.Get("Accept"))
			}
			if r.Header.Get("Authorization") != "Bearer test-token" {
				t.Errorf("Authorization header = %q", r.Header.Get("Authorization"))
			}
			w.Write([]byte(`{"status": "ok"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds)
		body, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"status": "ok"}` {
			t.Errorf("body = %q", string(body))
		}
	})

	t.Run("no token no header", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "" {
				t.Errorf("Authorization header should be empty, got %q", r.Header.Get("Authorization"))
			}
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, auth.Credentials{UserID: "u1"})
		if _, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("payload sets content type", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"a":1}` {
				t.Errorf("body = %q", string(body))
			}
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds)
		if _, err := c.doRequest(context.Background(), http.MethodPost, "/test", nil, []byte(`{"a":1}`)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("4xx error uses detail message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail": "Notebook not found"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds)
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil, nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.StatusCode != 404 || apiErr.Message != "Notebook not found" {
			t.Errorf("apiErr = %d %q", apiErr.StatusCode, apiErr.Message)
		}
	})

	t.Run("5xx plain text falls back to status text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`internal error`))
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds)
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil, nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.Message != "Internal Server Error" {
			t.Errorf("Message = %q", apiErr.Message)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.doRequest(ctx, http.MethodGet, "/test", nil, nil)
		if err == nil || !strings.Contains(err.Error(), "context canceled") {
			t.Errorf("error should contain 'context canceled', got %v", err)
		}
	})
}

// TestUnwrap tests handling of the {"statusCode", "body"} envelope.
func TestUnwrap(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		want       string
		wantStatus int
	}{
		{name: "plain object", body: `{"jobs": []}`, want: `{"jobs": []}`},
		{name: "array", body: `[1,2]`, want: `[1,2]`},
		{name: "envelope with object", body: `{"statusCode": 200, "body": {"jobs": []}}`, want: `{"jobs": []}`},
		{name: "envelope with string", body: `{"statusCode": 200, "body": "{\"jobs\": []}"}`, want: `{"jobs": []}`},
		{name: "envelope error", body: `{"statusCode": 500, "body": "{\"error\": \"db down\"}"}`, wantStatus: 500},
		{name: "envelope not found", body: `{"statusCode": 404, "body": {"error": "Job not found"}}`, wantStatus: 404},
		{name: "statusCode is data", body: `{"id": "x", "body": "text"}`, want: `{"id": "x", "body": "text"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unwrap([]byte(tt.body))
			if tt.wantStatus != 0 {
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("expected *APIError, got %v", err)
				}
				if apiErr.StatusCode != tt.wantStatus {
					t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.wantStatus)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("unwrap() = %s, want %s", got, tt.want)
			}
		})
	}

	_, err := unwrap([]byte(`{"statusCode": 500, "body": "{\"error\": \"db down\"}"}`))
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "db down" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "db down")
	}
}

// TestDoWithRetry tests the retry logic.
func TestDoWithRetry(t *testing.T) {
	t.Run("retries on 5xx and succeeds", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds, WithRetries(3, 10*time.Millisecond))
		body, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"ok": true}` {
			t.Errorf("body = %q", string(body))
		}
		if n := atomic.LoadInt32(&attempts); n != 3 {
			t.Errorf("attempts = %d, want 3", n)
		}
	})

	t.Run("retries enveloped 5xx", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				w.Write([]byte(`{"statusCode": 500, "body": "{\"error\": \"flaky\"}"}`))
				return
			}
			w.Write([]byte(`{"statusCode": 200, "body": {"ok": true}}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds, WithRetries(3, 10*time.Millisecond))
		body, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"ok": true}` {
			t.Errorf("body = %q", string(body))
		}
	})

	t.Run("does not retry on 4xx", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds, WithRetries(3, 10*time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil, nil); err == nil {
			t.Fatal("expected error, got nil")
		}
		if n := atomic.LoadInt32(&attempts); n != 1 {
			t.Errorf("attempts = %d, want 1", n)
		}
	})

	t.Run("does not retry POST", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds, WithRetries(3, 10*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodPost, "/test", nil, []byte(`{}`))
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("expected 503 APIError, got %v", err)
		}
		if n := atomic.LoadInt32(&attempts); n != 1 {
			t.Errorf("attempts = %d, want 1", n)
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds, WithRetries(2, 10*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil, nil)
		if err == nil || !strings.Contains(err.Error(), "max retries exceeded") {
			t.Errorf("error should contain 'max retries exceeded', got %v", err)
		}
		if n := atomic.LoadInt32(&attempts); n != 3 {
			t.Errorf("attempts = %d, want 3", n)
		}
	})

	t.Run("context cancellation during retry", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds, WithRetries(5, 50*time.Millisecond))
		ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
		defer cancel()

		_, err := c.doWithRetry(ctx, http.MethodGet, "/test", nil, nil)
		if err == nil || !strings.Contains(err.Error(), "context") {
			t.Errorf("error should be context-related, got %v", err)
		}
	})
}

func TestListUserJobs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status/jobs/u1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"statusCode": 200, "body": {"jobs": [
			{"request_id": "r1", "completed": true, "created_at": "2024-01-01T00:00:00Z"},
			{"request_id": "r2", "completed": false, "error": "boom"},
			{"request_id": "r3", "completed": null}
		]}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testCreds)
	jobs, err := c.ListUserJobs(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListUserJobs failed: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("len(jobs) = %d, want 3", len(jobs))
	}

	want := []model.JobState{model.JobCompleted, model.JobFailed, model.JobRunning}
	for i, j := range jobs {
		if j.State() != want[i] {
			t.Errorf("jobs[%d].State() = %s, want %s", i, j.State(), want[i])
		}
	}
}

func TestListUserJobs_StringBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"statusCode": 200, "body": "{\"jobs\": []}"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testCreds)
	jobs, err := c.ListUserJobs(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListUserJobs failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("len(jobs) = %d, want 0", len(jobs))
	}
}

func TestGetJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status/jobs/u1/r1":
			w.Write([]byte(`{"statusCode": 200, "body": {"request_id": "r1", "input_params": {"n": 3}, "completed": true, "result": {"sum": 6}}}`))
		default:
			w.Write([]byte(`{"statusCode": 404, "body": {"error": "Job not found"}}`))
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, testCreds)

	job, err := c.GetJob(context.Background(), "u1", "r1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.RequestID != "r1" || job.Result["sum"] != float64(6) {
		t.Errorf("job = %+v", job)
	}

	_, err = c.GetJob(context.Background(), "u1", "missing")
	if !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}

	if _, err := c.GetJob(context.Background(), "", "r1"); err == nil {
		t.Error("expected error for empty user ID")
	}
}

func TestListNotebookJobs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status/notebook/jobs/n1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"jobs": [{"request_id": "r1"}]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testCreds)
	jobs, err := c.ListNotebookJobs(context.Background(), "n1")
	if err != nil {
		t.Fatalf("ListNotebookJobs failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].RequestID != "r1" {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestSchedules(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []string
		lastBody map[string]any
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		requests = append(requests, r.Method+" "+r.URL.Path)
		if r.Body != nil {
			data, _ := io.ReadAll(r.Body)
			if len(data) > 0 {
				lastBody = nil
				json.Unmarshal(data, &lastBody)
			}
		}

		switch {
		case r.Method == http.MethodGet:
			w.Write([]byte(`[{"id": "s1", "notebook_id": "n1", "schedule": "daily"}]`))
		case r.Method == http.MethodPost:
			w.Write([]byte(`{"id": "s2", "notebook_id": "n1", "schedule": "hourly"}`))
		case r.Method == http.MethodPut:
			w.Write([]byte(`{"success": true}`))
		case r.Method == http.MethodDelete:
			w.Write([]byte(`{"success": true}`))
		}
	}))
	defer server.Close()

	ctx := context.Background()
	c := NewClient(server.URL, testCreds)

	list, err := c.ListSchedules(ctx, "n1")
	if err != nil {
		t.Fatalf("ListSchedules failed: %v", err)
	}
	if len(list) != 1 || list[0].Frequency != model.FrequencyDaily {
		t.Errorf("list = %+v", list)
	}

	created, err := c.CreateSchedule(ctx, "n1", model.Schedule{Frequency: model.FrequencyHourly, Payload: map[string]any{"n": 1}})
	if err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}
	if created.ID != "s2" {
		t.Errorf("created.ID = %q, want s2", created.ID)
	}
	mu.Lock()
	if lastBody["notebook_id"] != "n1" || lastBody["schedule"] != "hourly" {
		t.Errorf("create body = %v", lastBody)
	}
	mu.Unlock()

	if err := c.UpdateSchedule(ctx, model.Schedule{ID: "s2", NotebookID: "n1", Frequency: model.FrequencyWeekly}); err != nil {
		t.Fatalf("UpdateSchedule failed: %v", err)
	}
	if err := c.DeleteSchedule(ctx, "s2"); err != nil {
		t.Fatalf("DeleteSchedule failed: %v", err)
	}

	want := []string{
		"GET /notebook_job_schedule/n1",
		"POST /notebook_job_schedule/n1",
		"PUT /notebook_job_schedule",
		"DELETE /notebook_job_schedule/s2",
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(requests, ",") != strings.Join(want, ",") {
		t.Errorf("requests = %v, want %v", requests, want)
	}
}

func TestSchedules_Validation(t *testing.T) {
	c := NewClient("http://unused", testCreds)
	ctx := context.Background()

	if _, err := c.CreateSchedule(ctx, "n1", model.Schedule{Frequency: "yearly"}); err == nil {
		t.Error("expected error for invalid frequency")
	}
	if err := c.UpdateSchedule(ctx, model.Schedule{Frequency: model.FrequencyDaily}); err == nil {
		t.Error("expected error for missing ID")
	}
	if err := c.DeleteSchedule(ctx, ""); err == nil {
		t.Error("expected error for missing ID")
	}
}

func TestCache_ReadThroughAndInvalidate(t *testing.T) {
	var gets int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			atomic.AddInt32(&gets, 1)
			w.Write([]byte(`[{"id": "s1", "notebook_id": "n1", "schedule": "daily"}]`))
		default:
			w.Write([]byte(`{"success": true}`))
		}
	}))
	defer server.Close()

	ctx := context.Background()
	mem := cache.NewMemory(nil)
	c := NewClient(server.URL, testCreds, WithCache(mem, time.Minute))

	for i := 0; i < 3; i++ {
		if _, err := c.ListSchedules(ctx, "n1"); err != nil {
			t.Fatalf("ListSchedules failed: %v", err)
		}
	}
	if n := atomic.LoadInt32(&gets); n != 1 {
		t.Errorf("GETs = %d, want 1 (cached)", n)
	}

	if err := c.DeleteSchedule(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSchedule failed: %v", err)
	}
	if _, err := c.ListSchedules(ctx, "n1"); err != nil {
		t.Fatalf("ListSchedules failed: %v", err)
	}
	if n := atomic.LoadInt32(&gets); n != 2 {
		t.Errorf("GETs = %d, want 2 after invalidation", n)
	}

	if err := c.UpdateSchedule(ctx, model.Schedule{ID: "s1", NotebookID: "n1", Frequency: model.FrequencyDaily}); err != nil {
		t.Fatalf("UpdateSchedule failed: %v", err)
	}
	if _, err := c.ListSchedules(ctx, "n1"); err != nil {
		t.Fatalf("ListSchedules failed: %v", err)
	}
	if n := atomic.LoadInt32(&gets); n != 3 {
		t.Errorf("GETs = %d, want 3 after update", n)
	}
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	var gets int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&gets, 1) == 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"id": "n1", "name": "Revenue"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testCreds, WithCache(cache.NewMemory(nil), time.Minute))

	if _, err := c.NotebookDetails(context.Background(), "n1"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	d, err := c.NotebookDetails(context.Background(), "n1")
	if err != nil {
		t.Fatalf("NotebookDetails failed: %v", err)
	}
	if d.Name != "Revenue" {
		t.Errorf("Name = %q", d.Name)
	}
}

func TestListConnectors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/connectors/u1/n1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`[{"id": "c1", "user_id": "u1", "notebook_id": "n1", "connector_type": "posthog"}]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testCreds)
	conns, err := c.ListConnectors(context.Background(), "u1", "n1")
	if err != nil {
		t.Fatalf("ListConnectors failed: %v", err)
	}
	if len(conns) != 1 || conns[0].ConnectorType != "posthog" {
		t.Errorf("connectors = %+v", conns)
	}
}

func TestHasConnector(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  bool
	}{
		{name: "bare true", reply: `true`, want: true},
		{name: "bare false", reply: `false`, want: false},
		{name: "null", reply: `null`, want: false},
		{name: "exists field", reply: `{"exists": true}`, want: true},
		{name: "connected field", reply: `{"connected": false}`, want: false},
		{name: "record", reply: `{"id": "c1", "connector_type": "posthog"}`, want: true},
		{name: "empty object", reply: `{}`, want: false},
		{name: "non-empty list", reply: `[{"id": "c1"}]`, want: true},
		{name: "empty list", reply: `[]`, want: false},
		{name: "enveloped", reply: `{"statusCode": 200, "body": {"exists": true}}`, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/connectors/u1/n1/posthog" {
					t.Errorf("path = %q", r.URL.Path)
				}
				w.Write([]byte(tt.reply))
			}))
			defer server.Close()

			c := NewClient(server.URL, testCreds)
			got, err := c.HasConnector(context.Background(), "u1", "n1", "posthog")
			if err != nil {
				t.Fatalf("HasConnector failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("HasConnector() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasConnector_BadReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"yes"`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testCreds)
	if _, err := c.HasConnector(context.Background(), "u1", "n1", "posthog"); err == nil {
		t.Error("expected error for string reply")
	}
}

func TestJSONUnmarshalErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{invalid json`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testCreds)
	ctx := context.Background()

	if _, err := c.ListUserJobs(ctx, "u1"); err == nil || !strings.Contains(err.Error(), "unmarshal") {
		t.Errorf("ListUserJobs: expected unmarshal error, got %v", err)
	}
	if _, err := c.ListSchedules(ctx, "n1"); err == nil || !strings.Contains(err.Error(), "unmarshal") {
		t.Errorf("ListSchedules: expected unmarshal error, got %v", err)
	}
	if _, err := c.NotebookDetails(ctx, "n1"); err == nil || !strings.Contains(err.Error(), "unmarshal") {
		t.Errorf("NotebookDetails: expected unmarshal error, got %v", err)
	}
}
