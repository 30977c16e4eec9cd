package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sqlassist/sqlassist/internal/apperr"
)

func TestChatClientExtractsFirstChoice(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"SELECT 1;"}},{"message":{"content":"SELECT 2;"}}]}`))
	}))
	defer srv.Close()

	client, err := NewChatClient(Config{BaseURL: srv.URL, APIToken: "hf_abc", Model: "m1"})
	if err != nil {
		t.Fatalf("NewChatClient() error = %v", err)
	}
	got, err := client.Generate(context.Background(), "prompt text")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "SELECT 1;" {
		t.Fatalf("Generate() = %q", got)
	}
	if gotPath != "/v1/chat/completions" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer hf_abc" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotBody.Model != "m1" || len(gotBody.Messages) != 1 || gotBody.Messages[0].Role != "user" || gotBody.Messages[0].Content != "prompt text" {
		t.Fatalf("request body = %#v", gotBody)
	}
}

func TestTextClientSendsGenerationParameters(t *testing.T) {
	var gotPath string
	var gotBody textRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`[{"generated_text":"  SELECT * FROM orders;\n"}]`))
	}))
	defer srv.Close()

	client, err := NewTextClient(Config{
		BaseURL:           srv.URL + "/",
		APIToken:          "hf_abc",
		Temperature:       0.3,
		RepetitionPenalty: 1.2,
	})
	if err != nil {
		t.Fatalf("NewTextClient() error = %v", err)
	}
	got, err := client.Generate(context.Background(), "p")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "SELECT * FROM orders;" {
		t.Fatalf("Generate() = %q", got)
	}
	if gotPath != "/models/"+DefaultTextModel {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody.Inputs != "p" {
		t.Fatalf("inputs = %q", gotBody.Inputs)
	}
	if gotBody.Parameters.MaxNewTokens != DefaultMaxNewTokens || gotBody.Parameters.Temperature != 0.3 || gotBody.Parameters.RepetitionPenalty != 1.2 {
		t.Fatalf("parameters = %#v", gotBody.Parameters)
	}
}

func TestParseTextGenerationShapes(t *testing.T) {
	tests := map[string]string{
		`[{"generated_text":"a"}]`: "a",
		`{"generated_text":"b"}`:   "b",
		`"c"`:                      "c",
	}
	for body, want := range tests {
		got, err := parseTextGeneration([]byte(body))
		if err != nil {
			t.Fatalf("parseTextGeneration(%s) error = %v", body, err)
		}
		if got != want {
			t.Fatalf("parseTextGeneration(%s) = %q", body, got)
		}
	}
}

func TestGenerateReportsInferenceFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		chat   bool
	}{
		{name: "http 500", status: http.StatusInternalServerError, body: `{"error":"Model is overloaded"}`},
		{name: "chat http 500", status: http.StatusInternalServerError, body: `{"error":{"message":"upstream"}}`, chat: true},
		{name: "malformed body", status: http.StatusOK, body: `not json`, chat: true},
		{name: "empty body", status: http.StatusOK, body: ``},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, chat: true},
		{name: "blank content", status: http.StatusOK, body: `{"choices":[{"message":{"content":"  "}}]}`, chat: true},
		{name: "empty list", status: http.StatusOK, body: `[]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			backend := BackendText
			if tc.chat {
				backend = BackendChat
			}
			gen, err := New(Config{Backend: backend, BaseURL: srv.URL, APIToken: "t"})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			_, err = gen.Generate(context.Background(), "p")
			var failure *apperr.InferenceFailure
			if !errors.As(err, &failure) {
				t.Fatalf("Generate() error = %v, want InferenceFailure", err)
			}
			if tc.status >= 400 && failure.StatusCode != tc.status {
				t.Fatalf("StatusCode = %d", failure.StatusCode)
			}
		})
	}
}

func TestGenerateErrorIncludesUpstreamMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Model google/flan-t5-xl is currently loading"}`))
	}))
	defer srv.Close()

	client, _ := NewTextClient(Config{BaseURL: srv.URL, APIToken: "t"})
	_, err := client.Generate(context.Background(), "p")
	if err == nil || !strings.Contains(err.Error(), "currently loading") {
		t.Fatalf("error = %v", err)
	}
}

func TestGenerateWithoutTokenSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	for _, backend := range []string{BackendText, BackendChat} {
		gen, err := New(Config{Backend: backend, BaseURL: srv.URL, APIToken: "  "})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		_, err = gen.Generate(context.Background(), "p")
		var configErr *apperr.ConfigError
		if !errors.As(err, &configErr) {
			t.Fatalf("Generate() error = %v, want ConfigError", err)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("network calls = %d", calls.Load())
	}
}

func TestNetworkErrorIsInferenceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, _ := NewChatClient(Config{BaseURL: url, APIToken: "t"})
	_, err := client.Generate(context.Background(), "p")
	var failure *apperr.InferenceFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Generate() error = %v, want InferenceFailure", err)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	if _, err := New(Config{Backend: "grpc", BaseURL: "http://x"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := New(Config{Backend: BackendChat}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
}
