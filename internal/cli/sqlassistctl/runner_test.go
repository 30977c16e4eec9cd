package sqlassistctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRunHealthCommand(t *testing.T) {
	var gotMethod, gotPath, gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-base-url", srv.URL,
		"-api-key", "k1",
		"health",
	}, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotMethod != http.MethodGet || gotPath != "/v1/health" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotAPIKey != "k1" {
		t.Fatalf("api key header = %q", gotAPIKey)
	}
	if !strings.Contains(stdout.String(), `"status": "ok"`) {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestRunConvertImportsSchemaIntoSameSession(t *testing.T) {
	var importedBody string
	var convertQuestion string
	var convertCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/schema/import":
			raw, _ := io.ReadAll(r.Body)
			importedBody = string(raw)
			http.SetCookie(w, &http.Cookie{Name: defaultCookieName, Value: "sess-1", Path: "/"})
			_, _ = w.Write([]byte(`{"schema":{},"tables":[]}`))
		case "/v1/convert":
			if cookie, err := r.Cookie(defaultCookieName); err == nil {
				convertCookie = cookie.Value
			}
			var req map[string]string
			_ = json.NewDecoder(r.Body).Decode(&req)
			convertQuestion = req["question"]
			_, _ = w.Write([]byte(`{"sql":"SELECT COUNT(*) FROM orders;","backend":"text","model":"m","latency_ms":3}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-base-url", srv.URL,
		"convert", "-schema", "shop.json", "-question", "how many orders?",
	}, Options{
		Stdout: &stdout,
		Stderr: &stderr,
		ReadFile: func(name string) ([]byte, error) {
			if name != "shop.json" {
				return nil, errors.New("unexpected file")
			}
			return []byte(`{"orders":["id"]}`), nil
		},
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if importedBody != `{"orders":["id"]}` {
		t.Fatalf("imported body = %q", importedBody)
	}
	if convertCookie != "sess-1" {
		t.Fatalf("convert cookie = %q", convertCookie)
	}
	if convertQuestion != "how many orders?" {
		t.Fatalf("question = %q", convertQuestion)
	}
	if stdout.String() != "SELECT COUNT(*) FROM orders;\n" {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestRunConvertReportsErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error_code":"NOT_CONFIGURED","message":"inference API token is not set"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "convert", "-question", "q"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "NOT_CONFIGURED") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunSchemaExportReusesSession(t *testing.T) {
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(defaultCookieName); err == nil {
			gotCookie = cookie.Value
		}
		_, _ = w.Write([]byte(`{"orders":["id"]}`))
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"-base-url", srv.URL, "-session", "abc", "schema-export"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotCookie != "abc" {
		t.Fatalf("cookie = %q", gotCookie)
	}
}

func TestRunHistoryPassesLimit(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"records":[]}`))
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"-base-url", srv.URL, "history", "-limit", "5"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotQuery != "limit=5" {
		t.Fatalf("query = %q", gotQuery)
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`not ready`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "ready"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "http 503") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"unknown"}, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if stderr.Len() == 0 {
		t.Fatal("expected usage output")
	}
}

func TestRunConvertRequiresQuestion(t *testing.T) {
	code := Run(context.Background(), []string{"convert"}, Options{})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
}
