package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/barclip/internal/shared"
	tu "github.com/desertthunder/barclip/internal/testing"
)

// endlessBody yields filler forever and counts what was read.
type endlessBody struct {
	read int
}

func (b *endlessBody) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'x'
	}
	b.read += len(p)
	return len(p), nil
}

func (b *endlessBody) Close() error { return nil }

func TestCredentialClient(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("Trims Trailing Slash", func(t *testing.T) {
			c := NewCredentialClient("http://example.com/", nil, nil)
			if c.baseURL != "http://example.com" {
				t.Errorf("expected baseURL 'http://example.com', got %s", c.baseURL)
			}
		})

		t.Run("With Nil Client", func(t *testing.T) {
			c := NewCredentialClient("http://example.com", nil, nil)
			if c.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})
	})

	t.Run("RequestCredential", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			var calls int
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				if r.URL.Path != UploadCredentialPath {
					t.Errorf("expected path %s, got %s", UploadCredentialPath, r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer T1" {
					t.Errorf("expected bearer T1, got %q", got)
				}
				if got := r.Header.Get("Content-Type"); got != "application/json" {
					t.Errorf("expected json content type, got %q", got)
				}

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{
					"userId":       "u-42",
					"uploadSasUrl": "https://blob.example/c/u-42/x?sig=abc",
				})
			}))
			defer server.Close()

			c := NewCredentialClient(server.URL, nil, nil)
			cred, err := c.RequestCredential(context.Background(), "T1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if cred.OwnerID != "u-42" {
				t.Errorf("expected owner u-42, got %s", cred.OwnerID)
			}
			if cred.UploadURL != "https://blob.example/c/u-42/x?sig=abc" {
				t.Errorf("unexpected upload URL %s", cred.UploadURL)
			}
			if cred.Consumed() {
				t.Error("expected fresh credential")
			}
			if calls != 1 {
				t.Errorf("expected exactly one request, got %d", calls)
			}
		})

		t.Run("Each Call Returns A Distinct Credential", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"userId":"u","uploadSasUrl":"https://blob.example/x"}`))
			}))
			defer server.Close()

			c := NewCredentialClient(server.URL, nil, nil)
			first, _ := c.RequestCredential(context.Background(), "T")
			second, _ := c.RequestCredential(context.Background(), "T")
			if first == second {
				t.Error("expected independent credentials")
			}
		})

		statuses := []struct {
			name   string
			status int
		}{
			{"Unauthorized", http.StatusUnauthorized},
			{"Forbidden", http.StatusForbidden},
			{"Server Error", http.StatusInternalServerError},
		}
		for _, tc := range statuses {
			t.Run(tc.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tc.status)
					w.Write([]byte("nope"))
				}))
				defer server.Close()

				c := NewCredentialClient(server.URL, nil, nil)
				_, err := c.RequestCredential(context.Background(), "T")
				if !errors.Is(err, shared.ErrCredentialRequest) {
					t.Fatalf("expected ErrCredentialRequest, got %v", err)
				}
				if StatusCode(err) != tc.status {
					t.Errorf("expected status %d, got %d", tc.status, StatusCode(err))
				}
				if !strings.Contains(err.Error(), "nope") {
					t.Errorf("expected body in error, got %v", err)
				}
			})
		}

		t.Run("Missing Upload URL", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"userId":"u"}`))
			}))
			defer server.Close()

			c := NewCredentialClient(server.URL, nil, nil)
			_, err := c.RequestCredential(context.Background(), "T")
			if !errors.Is(err, shared.ErrCredentialRequest) {
				t.Fatalf("expected ErrCredentialRequest, got %v", err)
			}
			if StatusCode(err) != http.StatusOK {
				t.Errorf("expected status 200 to be kept, got %d", StatusCode(err))
			}
		})

		t.Run("Invalid JSON", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			}))
			defer server.Close()

			c := NewCredentialClient(server.URL, nil, nil)
			_, err := c.RequestCredential(context.Background(), "T")
			if !errors.Is(err, shared.ErrCredentialRequest) {
				t.Fatalf("expected ErrCredentialRequest, got %v", err)
			}
		})

		t.Run("Transport Error", func(t *testing.T) {
			rt := tu.NewMockRoundTripper(nil, errors.New("connection refused"))
			c := NewCredentialClient("http://example.com", &http.Client{Transport: rt}, nil)

			_, err := c.RequestCredential(context.Background(), "T")
			if !errors.Is(err, shared.ErrCredentialRequest) {
				t.Fatalf("expected ErrCredentialRequest, got %v", err)
			}
			if StatusCode(err) != 0 {
				t.Errorf("expected no status, got %d", StatusCode(err))
			}
			if len(rt.Requests) != 1 {
				t.Errorf("expected one request, got %d", len(rt.Requests))
			}
		})

		t.Run("Body Read Error", func(t *testing.T) {
			rt := tu.NewMockRoundTripper(&http.Response{
				StatusCode: http.StatusOK,
				Body:       &tu.FCloser{},
			}, nil)
			c := NewCredentialClient("http://example.com", &http.Client{Transport: rt}, nil)

			_, err := c.RequestCredential(context.Background(), "T")
			if !errors.Is(err, shared.ErrCredentialRequest) {
				t.Fatalf("expected ErrCredentialRequest, got %v", err)
			}
		})

		t.Run("Bounds Error Pages", func(t *testing.T) {
			body := &endlessBody{}
			rt := tu.NewMockRoundTripper(&http.Response{StatusCode: http.StatusBadGateway, Body: body}, nil)
			c := NewCredentialClient("http://example.com", &http.Client{Transport: rt}, nil)

			_, err := c.RequestCredential(context.Background(), "T")
			if StatusCode(err) != http.StatusBadGateway {
				t.Fatalf("expected status 502, got %v", err)
			}
			if body.read > maxErrorBody {
				t.Errorf("expected at most %d bytes read, got %d", maxErrorBody, body.read)
			}
		})

		t.Run("Bounds Success Bodies", func(t *testing.T) {
			body := &endlessBody{}
			rt := tu.NewMockRoundTripper(&http.Response{StatusCode: http.StatusOK, Body: body}, nil)
			c := NewCredentialClient("http://example.com", &http.Client{Transport: rt}, nil)

			_, err := c.RequestCredential(context.Background(), "T")
			if !errors.Is(err, shared.ErrCredentialRequest) || !strings.Contains(err.Error(), "larger than") {
				t.Fatalf("expected an oversized response error, got %v", err)
			}
			if body.read > maxCredentialBody+1 {
				t.Errorf("expected at most %d bytes read, got %d", maxCredentialBody+1, body.read)
			}
		})

		t.Run("Cancelled Context", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"userId":"u","uploadSasUrl":"https://blob.example/x"}`)
			}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			c := NewCredentialClient(server.URL, nil, nil)
			_, err := c.RequestCredential(ctx, "T")
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		})
	})
}

func TestStatusError(t *testing.T) {
	t.Run("Message Includes Status And Body", func(t *testing.T) {
		err := &StatusError{Kind: shared.ErrBlobUpload, StatusCode: 403, Body: "denied"}
		got := err.Error()
		if !strings.Contains(got, "status 403") || !strings.Contains(got, "denied") {
			t.Errorf("unexpected message %q", got)
		}
	})

	t.Run("Unwraps Kind And Cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := &StatusError{Kind: shared.ErrBlobUpload, Err: cause}
		if !errors.Is(err, shared.ErrBlobUpload) || !errors.Is(err, cause) {
			t.Error("expected both kind and cause to match")
		}
	})

	t.Run("Truncates Long Bodies", func(t *testing.T) {
		got := truncate([]byte(strings.Repeat("x", maxErrorBody+10)))
		if !strings.HasSuffix(got, "…") || len(got) <= maxErrorBody {
			t.Errorf("expected truncated body, got length %d", len(got))
		}
	})
}
