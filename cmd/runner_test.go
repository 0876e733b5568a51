package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/barclip/internal/models"
	"github.com/desertthunder/barclip/internal/repositories"
	"github.com/desertthunder/barclip/internal/shared"
	"github.com/desertthunder/barclip/internal/tasks"
	tu "github.com/desertthunder/barclip/internal/testing"
	"github.com/desertthunder/barclip/internal/workflow"
	"github.com/gorilla/websocket"
)

const accessToken = "valid-access-token"

// backend fakes the trimming API: credential endpoint, blob storage and the SignalR hub.
type backend struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader
	done     chan struct{}

	mu           sync.Mutex
	conn         *websocket.Conn
	blobs        map[string][]byte
	credStatus   int
	silent       bool
	credRequests int
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{t: t, blobs: map[string][]byte{}, done: make(chan struct{})}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/video/upload-sas-url", b.credential)
	mux.HandleFunc("/blobs/", b.blob)
	mux.HandleFunc("/videoStatus/negotiate", b.negotiate)
	mux.HandleFunc("/videoStatus", b.accept)
	b.server = httptest.NewServer(mux)
	t.Cleanup(func() {
		close(b.done)
		b.server.Close()
	})
	return b
}

func (b *backend) credential(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.credRequests++
	status := b.credStatus
	b.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+accessToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if status != 0 {
		w.WriteHeader(status)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{
		"userId":       "user-1",
		"uploadSasUrl": b.server.URL + "/blobs/" + shared.GenerateID() + "?sig=secret",
	})
}

func (b *backend) blob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut || r.Header.Get("x-ms-blob-type") != "BlockBlob" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	data, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.blobs[r.URL.Path] = data
	conn, silent := b.conn, b.silent
	b.mu.Unlock()

	w.WriteHeader(http.StatusCreated)
	if conn != nil && !silent {
		go b.announce(conn, b.server.URL+"/trimmed"+strings.TrimPrefix(r.URL.Path, "/blobs"))
	}
}

// announce repeats TrimSucceeded on conn until the client goes away; early copies are ignored.
func (b *backend) announce(conn *websocket.Conn, url string) {
	frame := fmt.Sprintf(`{"type":1,"target":"TrimSucceeded","arguments":[%q]}`, url) + "\x1e"
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.mu.Lock()
			err := conn.WriteMessage(websocket.TextMessage, []byte(frame))
			b.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (b *backend) negotiate(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+accessToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"connectionId":     shared.GenerateID(),
		"connectionToken":  "ctok",
		"negotiateVersion": 1,
		"availableTransports": []map[string]any{
			{"transport": "WebSockets", "transferFormats": []string{"Text"}},
		},
	})
}

func (b *backend) accept(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.t.Errorf("upgrade failed: %v", err)
		return
	}
	if _, _, err := conn.ReadMessage(); err != nil {
		conn.Close()
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	conn.WriteMessage(websocket.TextMessage, []byte("{}\x1e"))
	b.conn = conn
}

func (b *backend) blobCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blobs)
}

// newTestRunner wires a runner to b with a signed-in session.
func newTestRunner(t *testing.T, b *backend, signedIn bool) (*Runner, *bytes.Buffer) {
	t.Helper()
	db := tu.NewTestDatabase(t)

	if signedIn {
		sessions := repositories.NewSessionRepository(db)
		err := sessions.Save(context.Background(), &models.Session{
			Principal:   models.Principal{AccountID: "user-1", Username: "alice@example.com", DisplayName: "Alice"},
			AccessToken: accessToken,
			TokenType:   "Bearer",
			Expiry:      time.Now().Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("failed to save session: %v", err)
		}
	}

	config := shared.DefaultConfig()
	config.API.BaseURL = b.server.URL
	config.Workflow.ReconnectDelays = []shared.Duration{}
	config.Workflow.CompletionTimeout = shared.Duration{Duration: 5 * time.Second}
	config.Batch.Interval = shared.Duration{}

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:  config,
		Logger:  shared.NewDiscardLogger(),
		Output:  output,
		DB:      db,
		OpenURL: func(string) error { return errors.New("no browser in tests") },
		Copy:    func(string) error { return nil },
	})
	return runner, output
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			db := tu.NewTestDatabase(t)

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				DB:         db,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.db != db || runner.sessions == nil || runner.attempts == nil || runner.auth == nil {
				t.Error("expected database dependencies to be wired")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config: nil,
			})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Logger: nil,
			})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Output: nil,
			})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				HTTPClient: nil,
			})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("without DB defers opening", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.db != nil || runner.auth != nil {
				t.Error("expected database to be opened lazily")
			}
			if err := runner.Close(); err != nil {
				t.Errorf("expected Close without a database to succeed, got %v", err)
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				ConfigPath: "/test/path/config.toml",
			})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			if err := runner.writeJSON(data, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if !strings.Contains(output.String(), "  \"key\": \"value\"") {
				t.Errorf("expected indented JSON, got %s", output.String())
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if output.String() != "{\"key\":\"value\"}\n" {
				t.Errorf("expected compact JSON, got %q", output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("Hello %s", "World"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "Hello World" {
				t.Errorf("expected 'Hello World', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "auth", "upload", "batch", "history", "tui"} {
			if !names[want] {
				t.Errorf("expected %q command to be registered", want)
			}
		}
	})

	t.Run("reconnectDelays", func(t *testing.T) {
		config := shared.DefaultConfig()
		runner := NewRunner(RunnerOpts{Config: config})
		if got := runner.reconnectDelays(); len(got) != 4 || got[2] != 10*time.Second {
			t.Errorf("expected configured delays, got %v", got)
		}

		config.Workflow.ReconnectDelays = nil
		if got := runner.reconnectDelays(); got != nil {
			t.Errorf("expected nil delays to be kept, got %v", got)
		}

		config.Workflow.ReconnectDelays = []shared.Duration{}
		if got := runner.reconnectDelays(); got == nil || len(got) != 0 {
			t.Errorf("expected empty delays to disable reconnects, got %v", got)
		}
	})
}

func TestUpload(t *testing.T) {
	t.Run("uploads clip.mp4 and reports the trimmed video", func(t *testing.T) {
		b := newBackend(t)
		runner, output := newTestRunner(t, b, true)
		path := tu.WriteVideo(t, t.TempDir(), "clip.mp4")

		var copied string
		runner.copy = func(s string) error { copied = s; return nil }

		err := uploadCommand(runner).Run(context.Background(), []string{"upload", "--copy", path})
		if err != nil {
			t.Fatalf("expected upload to succeed, got %v\n%s", err, output.String())
		}

		out := output.String()
		if !strings.Contains(out, "✓ Trimmed video ready") {
			t.Errorf("expected completion message, got %s", out)
		}
		if !strings.Contains(copied, b.server.URL+"/trimmed/") {
			t.Errorf("expected result link to be copied, got %q", copied)
		}
		if b.blobCount() != 1 {
			t.Errorf("expected one blob upload, got %d", b.blobCount())
		}

		attempts, err := runner.attempts.List(context.Background(), 0)
		if err != nil {
			t.Fatalf("failed to list attempts: %v", err)
		}
		if len(attempts) != 1 {
			t.Fatalf("expected one recorded attempt, got %d", len(attempts))
		}
		if attempts[0].Status != models.AttemptCompleted || attempts[0].ResultURL != copied {
			t.Errorf("unexpected attempt record: %+v", attempts[0])
		}
		if attempts[0].FileName != "clip.mp4" || attempts[0].OwnerID != "user-1" {
			t.Errorf("unexpected attempt file or owner: %+v", attempts[0])
		}
	})

	t.Run("writes JSON", func(t *testing.T) {
		b := newBackend(t)
		runner, output := newTestRunner(t, b, true)
		path := tu.WriteVideo(t, t.TempDir(), "clip.mp4")

		if err := uploadCommand(runner).Run(context.Background(), []string{"upload", "--json", path}); err != nil {
			t.Fatalf("expected upload to succeed, got %v", err)
		}

		var res uploadResult
		if err := json.Unmarshal(output.Bytes(), &res); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", output.String(), err)
		}
		if res.Phase != "completed" || res.File != "clip.mp4" || res.Type != "video/mp4" {
			t.Errorf("unexpected result: %+v", res)
		}
		if res.ResultURL == "" || res.AttemptID == "" {
			t.Errorf("expected result link and attempt id, got %+v", res)
		}
	})

	t.Run("rejects non-video files", func(t *testing.T) {
		b := newBackend(t)
		runner, _ := newTestRunner(t, b, true)
		path := tu.WriteFile(t, "notes.txt", "just some text")

		err := uploadCommand(runner).Run(context.Background(), []string{"upload", path})
		if !errors.Is(err, shared.ErrInvalidFileKind) {
			t.Errorf("expected ErrInvalidFileKind, got %v", err)
		}
		if b.blobCount() != 0 {
			t.Error("expected nothing to be uploaded")
		}
	})

	t.Run("requires a path", func(t *testing.T) {
		runner, _ := newTestRunner(t, newBackend(t), true)

		err := uploadCommand(runner).Run(context.Background(), []string{"upload"})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("reports credential failures", func(t *testing.T) {
		b := newBackend(t)
		b.credStatus = http.StatusInternalServerError
		runner, output := newTestRunner(t, b, true)
		path := tu.WriteVideo(t, t.TempDir(), "clip.mp4")

		err := uploadCommand(runner).Run(context.Background(), []string{"upload", path})

		we, ok := workflow.AsError(err)
		if !ok || we.Kind != workflow.CredentialRequestFailed || we.Status != http.StatusInternalServerError {
			t.Fatalf("expected CredentialRequestFailed with status 500, got %v", err)
		}
		if !strings.Contains(output.String(), "Failed to get upload SAS URL") {
			t.Errorf("expected failure message, got %s", output.String())
		}
		if !strings.Contains(output.String(), "retry") {
			t.Errorf("expected retry hint, got %s", output.String())
		}
	})

	t.Run("times out waiting for completion", func(t *testing.T) {
		b := newBackend(t)
		b.silent = true
		runner, _ := newTestRunner(t, b, true)
		path := tu.WriteVideo(t, t.TempDir(), "clip.mp4")

		err := uploadCommand(runner).Run(context.Background(), []string{"upload", "--timeout", "200ms", path})

		we, ok := workflow.AsError(err)
		if !ok || we.Kind != workflow.CompletionTimeout {
			t.Fatalf("expected CompletionTimeout, got %v", err)
		}
		if b.blobCount() != 1 {
			t.Errorf("expected the blob to be uploaded, got %d", b.blobCount())
		}
	})

	t.Run("signs in when nobody is signed in", func(t *testing.T) {
		b := newBackend(t)
		runner, _ := newTestRunner(t, b, false)
		runner.config.Identity.ClientID = ""
		runner.useDatabase(runner.db)
		path := tu.WriteVideo(t, t.TempDir(), "clip.mp4")

		err := uploadCommand(runner).Run(context.Background(), []string{"upload", path})

		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.credRequests != 0 {
			t.Error("expected no credential request without a token")
		}
	})
}

func TestBatch(t *testing.T) {
	t.Run("uploads every video in a directory", func(t *testing.T) {
		b := newBackend(t)
		runner, output := newTestRunner(t, b, true)

		dir := t.TempDir()
		tu.WriteVideo(t, dir, "a.mp4")
		tu.WriteVideo(t, dir, "b.mp4")
		if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("plain text"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := batchCommand(runner).Run(context.Background(), []string{"batch", "--json", dir}); err != nil {
			t.Fatalf("expected batch to succeed, got %v", err)
		}

		var result tasks.BatchResult
		if err := json.Unmarshal(output.Bytes(), &result); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", output.String(), err)
		}
		if result.Total != 2 || result.Succeeded != 2 || result.Skipped != 1 {
			t.Errorf("unexpected batch result: %+v", result)
		}
		if b.blobCount() != 2 {
			t.Errorf("expected two blob uploads, got %d", b.blobCount())
		}
	})

	t.Run("prints a summary", func(t *testing.T) {
		b := newBackend(t)
		runner, output := newTestRunner(t, b, true)

		dir := t.TempDir()
		tu.WriteVideo(t, dir, "a.mp4")

		if err := batchCommand(runner).Run(context.Background(), []string{"batch", dir}); err != nil {
			t.Fatalf("expected batch to succeed, got %v", err)
		}
		for _, want := range []string{"Batch Summary", "1 completed", "a.mp4"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("expected %q in output, got %s", want, output.String())
			}
		}
	})

	t.Run("fails on an empty directory", func(t *testing.T) {
		runner, _ := newTestRunner(t, newBackend(t), true)

		err := batchCommand(runner).Run(context.Background(), []string{"batch", t.TempDir()})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestHistory(t *testing.T) {
	seed := func(t *testing.T, runner *Runner) {
		t.Helper()
		for _, name := range []string{"first.mp4", "second.mp4"} {
			a := models.NewUploadAttempt(
				&models.Principal{AccountID: "user-1"},
				tu.VideoFile(name, "video bytes"),
			)
			a.Status = models.AttemptCompleted
			a.ResultURL = "https://example.com/trimmed/" + name
			if err := runner.attempts.Create(context.Background(), a); err != nil {
				t.Fatalf("failed to seed attempt: %v", err)
			}
		}
	}

	t.Run("prints text by default", func(t *testing.T) {
		runner, output := newTestRunner(t, newBackend(t), true)
		seed(t, runner)

		if err := historyCommand(runner).Run(context.Background(), []string{"history"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, want := range []string{"first.mp4", "second.mp4"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("expected %q in output, got %s", want, output.String())
			}
		}
	})

	t.Run("prints CSV", func(t *testing.T) {
		runner, output := newTestRunner(t, newBackend(t), true)
		seed(t, runner)

		if err := historyCommand(runner).Run(context.Background(), []string{"history", "--format", "csv"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		lines := strings.Split(strings.TrimSpace(output.String()), "\n")
		if len(lines) != 3 || !strings.HasPrefix(lines[0], "ID,Created,File") {
			t.Errorf("unexpected CSV output: %s", output.String())
		}
	})

	t.Run("limits and filters by account", func(t *testing.T) {
		runner, output := newTestRunner(t, newBackend(t), true)
		seed(t, runner)

		err := historyCommand(runner).Run(context.Background(), []string{"history", "--mine", "--limit", "1", "--format", "json"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var records []map[string]any
		if err := json.Unmarshal(output.Bytes(), &records); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", output.String(), err)
		}
		if len(records) != 1 {
			t.Errorf("expected one record, got %d", len(records))
		}
	})

	t.Run("writes an export file", func(t *testing.T) {
		runner, output := newTestRunner(t, newBackend(t), true)
		seed(t, runner)
		path := filepath.Join(t.TempDir(), "history.md")

		err := historyCommand(runner).Run(context.Background(), []string{"history", "--format", "markdown", "--output", path})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Exported 2 attempts") {
			t.Errorf("unexpected output: %s", output.String())
		}
		if !strings.Contains(tu.MustReadFile(t, path), "# Upload History") {
			t.Error("expected markdown export")
		}
	})

	t.Run("rejects unknown formats", func(t *testing.T) {
		runner, _ := newTestRunner(t, newBackend(t), true)

		err := historyCommand(runner).Run(context.Background(), []string{"history", "--format", "xml"})
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestAuth(t *testing.T) {
	t.Run("status reports the active account", func(t *testing.T) {
		runner, output := newTestRunner(t, newBackend(t), true)

		if err := authCommand(runner).Run(context.Background(), []string{"auth", "status"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Signed in as Alice") {
			t.Errorf("unexpected output: %s", output.String())
		}
	})

	t.Run("status as JSON when signed out", func(t *testing.T) {
		runner, output := newTestRunner(t, newBackend(t), false)

		if err := authCommand(runner).Run(context.Background(), []string{"auth", "status", "--json"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var status authStatus
		if err := json.Unmarshal(output.Bytes(), &status); err != nil {
			t.Fatalf("expected JSON output: %v", err)
		}
		if status.Authenticated {
			t.Error("expected no active account")
		}
	})

	t.Run("logout removes the session", func(t *testing.T) {
		runner, _ := newTestRunner(t, newBackend(t), true)

		if err := authCommand(runner).Run(context.Background(), []string{"auth", "logout"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		principal, err := runner.activePrincipal(context.Background())
		if err != nil || principal != nil {
			t.Errorf("expected nobody signed in, got %v, %v", principal, err)
		}

		err = authCommand(runner).Run(context.Background(), []string{"auth", "logout"})
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated on second logout, got %v", err)
		}
	})
}

func TestSetup(t *testing.T) {
	t.Run("writes the config template", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conf", "config.toml")
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{ConfigPath: path, Output: output, Logger: shared.NewDiscardLogger()})

		if err := setupCommand(runner).Run(context.Background(), []string{"setup", "config"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := shared.LoadConfig(path); err != nil {
			t.Errorf("expected a loadable config, got %v", err)
		}

		if err := setupCommand(runner).Run(context.Background(), []string{"setup", "config"}); err == nil {
			t.Error("expected an error when the config already exists")
		}
	})

	t.Run("fills in flags", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		runner := NewRunner(RunnerOpts{ConfigPath: path, Output: &bytes.Buffer{}, Logger: shared.NewDiscardLogger()})

		err := setupCommand(runner).Run(context.Background(), []string{"setup", "config", "--client-id", "abc", "--base-url", "https://api.example.com"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		config, err := shared.LoadConfig(path)
		if err != nil {
			t.Fatalf("expected a loadable config, got %v", err)
		}
		if config.Identity.ClientID != "abc" || config.API.BaseURL != "https://api.example.com" {
			t.Errorf("expected flags to be saved, got %+v %+v", config.Identity, config.API)
		}
		if config.API.Hub != "videoStatus" {
			t.Errorf("expected template values to be kept, got hub %q", config.API.Hub)
		}
	})

	t.Run("migrates the database", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Database.Path = filepath.Join(t.TempDir(), "barclip.db")
		runner := NewRunner(RunnerOpts{Config: config, Output: &bytes.Buffer{}, Logger: shared.NewDiscardLogger()})

		if err := setupCommand(runner).Run(context.Background(), []string{"setup", "database"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := os.Stat(config.Database.Path); err != nil {
			t.Errorf("expected database file, got %v", err)
		}

		if err := setupCommand(runner).Run(context.Background(), []string{"setup", "database", "--rollback"}); err != nil {
			t.Errorf("expected rollback to succeed, got %v", err)
		}
	})
}
