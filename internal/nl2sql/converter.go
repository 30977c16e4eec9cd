// Package nl2sql turns a question about a session's schema into a SQL query
// by prompting a remote language model.
package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sqlassist/sqlassist/internal/apperr"
	"github.com/sqlassist/sqlassist/internal/history"
	"github.com/sqlassist/sqlassist/internal/inference"
	"github.com/sqlassist/sqlassist/internal/observability"
	"github.com/sqlassist/sqlassist/internal/prompt"
	"github.com/sqlassist/sqlassist/internal/session"
)

// ErrBusy is returned when the session already has a conversion in flight.
var ErrBusy = errors.New("a conversion is already running for this session")

const historyWriteTimeout = 5 * time.Second

type Options struct {
	Generator     inference.Generator
	Backend       string
	Model         string
	RequireSchema bool
	Recorder      history.Recorder
	Logger        *slog.Logger
	Now           func() time.Time
}

type Converter struct {
	generator     inference.Generator
	backend       string
	model         string
	requireSchema bool
	recorder      history.Recorder
	logger        *slog.Logger
	now           func() time.Time
}

type Request struct {
	Question string `json:"question"`
	// RequireSchema overrides the server default when set.
	RequireSchema *bool `json:"require_schema,omitempty"`
}

type Result struct {
	SQL       string `json:"sql"`
	Backend   string `json:"backend"`
	Model     string `json:"model"`
	LatencyMs int64  `json:"latency_ms"`
}

func NewConverter(opts Options) (*Converter, error) {
	if opts.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	c := &Converter{
		generator:     opts.Generator,
		backend:       opts.Backend,
		model:         opts.Model,
		requireSchema: opts.RequireSchema,
		recorder:      opts.Recorder,
		logger:        opts.Logger,
		now:           opts.Now,
	}
	if c.recorder == nil {
		c.recorder = history.Nop{}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Convert runs one submission for sess. Input is validated before the model
// is contacted, and the session schema is never modified. On failure the
// session keeps its previous query and records the error message.
func (c *Converter) Convert(ctx context.Context, sess *session.Session, req Request) (Result, error) {
	if !sess.TryBegin() {
		observability.IncrementBusyRejection()
		return Result{}, ErrBusy
	}
	defer sess.End()

	started := c.now()
	snapshot := sess.Schema.Snapshot()
	question := strings.TrimSpace(req.Question)
	rec := history.Record{
		SessionID:  sess.ID,
		Question:   question,
		Backend:    c.backend,
		Model:      c.model,
		TableCount: snapshot.Len(),
		CreatedAt:  started.UTC(),
	}

	requireSchema := c.requireSchema
	if req.RequireSchema != nil {
		requireSchema = *req.RequireSchema
	}

	var err error
	switch {
	case question == "":
		err = apperr.Validation("question", "please enter a question")
	case requireSchema && snapshot.IsEmpty():
		err = apperr.Validation("schema", "please add your database schema first")
	}
	if err != nil {
		return Result{}, c.fail(ctx, sess, rec, err)
	}

	text := prompt.Build(question, snapshot)
	c.logger.DebugContext(ctx, "sending conversion prompt",
		slog.String("session_id", sess.ID),
		slog.Int("tables", snapshot.Len()),
		slog.Int("prompt_chars", len(text)),
	)

	sql, err := c.generator.Generate(ctx, text)
	elapsed := c.now().Sub(started)
	rec.LatencyMs = elapsed.Milliseconds()
	if apperr.Kind(err) != "config" {
		observability.ObserveInferenceLatency(c.backend, elapsed)
	}
	if err != nil {
		return Result{}, c.fail(ctx, sess, rec, err)
	}

	sess.RecordSuccess(sql)
	rec.SQL = sql
	observability.ObserveConversion("ok")
	c.record(ctx, rec)
	c.logger.InfoContext(ctx, "conversion succeeded",
		slog.String("session_id", sess.ID),
		slog.Int64("latency_ms", rec.LatencyMs),
	)
	return Result{SQL: sql, Backend: c.backend, Model: c.model, LatencyMs: rec.LatencyMs}, nil
}

func (c *Converter) fail(ctx context.Context, sess *session.Session, rec history.Record, err error) error {
	kind := apperr.Kind(err)
	sess.RecordFailure(err.Error())
	rec.ErrorKind = kind
	rec.ErrorMessage = err.Error()
	observability.ObserveConversion(kind)
	c.record(ctx, rec)

	level := slog.LevelWarn
	if kind == "validation" {
		level = slog.LevelDebug
	}
	c.logger.Log(ctx, level, "conversion failed",
		slog.String("session_id", sess.ID),
		slog.String("error_kind", kind),
		slog.String("error", err.Error()),
	)
	return err
}

// record writes rec on a context detached from the request so a client
// disconnect does not drop the entry. Failures are logged, not returned.
func (c *Converter) record(ctx context.Context, rec history.Record) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	defer cancel()
	if err := c.recorder.Record(writeCtx, rec); err != nil {
		c.logger.WarnContext(ctx, "failed to record conversion history", slog.String("error", err.Error()))
	}
}
