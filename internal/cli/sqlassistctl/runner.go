// Package sqlassistctl implements the command-line client for the sqlassist
// API.
package sqlassistctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultCookieName = "sqlassist_session"

type Options struct {
	BaseURL    string
	APIKey     string
	SessionID  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
	// ReadFile loads schema files for convert; defaults to os.ReadFile.
	ReadFile func(name string) ([]byte, error)
}

type client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	readFile := defaults.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}

	fs := flag.NewFlagSet("sqlassistctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "sqlassist API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	sessionID := fs.String("session", defaults.SessionID, "existing session id to reuse")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 30s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	base, err := url.Parse(strings.TrimRight(*baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		_, _ = fmt.Fprintf(stderr, "invalid base URL %q\n", *baseURL)
		return 2
	}

	httpClient := defaults.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: *timeout}
	}
	if httpClient.Jar == nil {
		jar, _ := cookiejar.New(nil)
		clone := *httpClient
		clone.Jar = jar
		httpClient = &clone
	}
	if id := strings.TrimSpace(*sessionID); id != "" {
		httpClient.Jar.SetCookies(base, []*http.Cookie{{Name: defaultCookieName, Value: id, Path: "/"}})
	}
	c := &client{http: httpClient, baseURL: base.String(), apiKey: strings.TrimSpace(*apiKey)}

	command := strings.TrimSpace(fs.Arg(0))
	rest := fs.Args()[1:]
	switch command {
	case "health":
		return c.printJSON(ctx, stdout, stderr, http.MethodGet, "/v1/health")
	case "ready":
		return c.printJSON(ctx, stdout, stderr, http.MethodGet, "/v1/ready")
	case "examples":
		return c.printJSON(ctx, stdout, stderr, http.MethodGet, "/v1/examples")
	case "schema-export":
		return c.printJSON(ctx, stdout, stderr, http.MethodGet, "/v1/schema/export")
	case "history":
		return runHistory(ctx, c, rest, stdout, stderr)
	case "convert":
		return runConvert(ctx, c, rest, readFile, stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
}

// runConvert optionally imports a schema file into the session and then asks
// for a conversion. Only the SQL is written to stdout.
func runConvert(ctx context.Context, c *client, args []string, readFile func(string) ([]byte, error), stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	question := fs.String("question", "", "natural-language question")
	schemaFile := fs.String("schema", "", "schema JSON file to import before converting")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*question) == "" && fs.NArg() > 0 {
		*question = strings.Join(fs.Args(), " ")
	}
	if strings.TrimSpace(*question) == "" {
		_, _ = fmt.Fprintln(stderr, "convert requires -question")
		return 2
	}

	if *schemaFile != "" {
		doc, err := readFile(*schemaFile)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "read schema file: %v\n", err)
			return 1
		}
		code, body, err := c.do(ctx, http.MethodPost, "/v1/schema/import", doc)
		if exit := reportFailure(stderr, code, body, err); exit != 0 {
			return exit
		}
	}

	payload, err := json.Marshal(map[string]string{"question": *question})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "encode request: %v\n", err)
		return 1
	}
	code, body, err := c.do(ctx, http.MethodPost, "/v1/convert", payload)
	if exit := reportFailure(stderr, code, body, err); exit != 0 {
		return exit
	}
	var result struct {
		SQL string `json:"sql"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		_, _ = fmt.Fprintf(stderr, "decode response: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, result.SQL)
	return 0
}

func runHistory(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	limit := fs.Int("limit", 0, "maximum number of records")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	path := "/v1/history"
	if *limit > 0 {
		path += "?limit=" + strconv.Itoa(*limit)
	}
	return c.printJSON(ctx, stdout, stderr, http.MethodGet, path)
}

func (c *client) printJSON(ctx context.Context, stdout, stderr io.Writer, method, path string) int {
	code, body, err := c.do(ctx, method, path, nil)
	if exit := reportFailure(stderr, code, body, err); exit != 0 {
		return exit
	}
	if pretty, ok := prettyJSON(body); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(body) > 0 {
		_, _ = fmt.Fprintln(stdout, string(body))
	}
	return 0
}

func (c *client) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func reportFailure(stderr io.Writer, code int, body []byte, err error) int {
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 {
		var envelope struct {
			ErrorCode string `json:"error_code"`
			Message   string `json:"message"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Message != "" {
			_, _ = fmt.Fprintf(stderr, "http %d %s: %s\n", code, envelope.ErrorCode, envelope.Message)
			return 1
		}
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(body)))
		return 1
	}
	return 0
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: sqlassistctl [flags] <command> [command flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                                   GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                                    GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  examples                                 GET /v1/examples")
	_, _ = fmt.Fprintln(w, "  schema-export                            GET /v1/schema/export")
	_, _ = fmt.Fprintln(w, "  history [-limit N]                       GET /v1/history")
	_, _ = fmt.Fprintln(w, "  convert [-schema file] -question text    POST /v1/convert")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
