// Package server exposes the debate engine over JSON-RPC 2.0 on
// stdin/stdout, so editors and agent harnesses can drive debates without
// shelling out to the CLI for every call. One connection serves one
// client; requests on a connection are handled sequentially.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/parleyhq/parley/internal/complexity"
	"github.com/parleyhq/parley/internal/debate"
	"github.com/parleyhq/parley/internal/history"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/orchestrator"
	"github.com/parleyhq/parley/internal/perrors"
)

// JSON-RPC error codes beyond the standard range.
const (
	codeSessionNotFound     = -32001
	codeDebateNotRequired   = -32002
	codeProviderUnavailable = -32003
	codeStateViolation      = -32004
)

// DebateParams are the arguments of debate.run and debate.start.
type DebateParams struct {
	Topic           string   `json:"topic"`
	Files           []string `json:"files,omitempty"`
	FocusAreas      []string `json:"focus_areas,omitempty"`
	TargetConsensus int      `json:"target_consensus,omitempty"`
	Force           bool     `json:"force,omitempty"`
	NoCache         bool     `json:"no_cache,omitempty"`
}

func (p DebateParams) request() debate.Request {
	return debate.Request{
		Topic:           p.Topic,
		Files:           p.Files,
		FocusAreas:      p.FocusAreas,
		TargetConsensus: p.TargetConsensus,
	}
}

// CompleteParams are the arguments of debate.complete.
type CompleteParams struct {
	SessionID string `json:"session_id"`
	Analysis  string `json:"analysis"`
}

// CancelParams are the arguments of debate.cancel.
type CancelParams struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

// OverrideParams are the arguments of session.override.
type OverrideParams struct {
	SessionID     string `json:"session_id"`
	Actor         string `json:"actor"`
	Justification string `json:"justification"`
}

// PackParams are the arguments of session.pack.
type PackParams struct {
	SessionID string `json:"session_id"`
}

// CheckParams are the arguments of complexity.check.
type CheckParams struct {
	Topic      string   `json:"topic"`
	Files      []string `json:"files,omitempty"`
	FocusAreas []string `json:"focus_areas,omitempty"`
}

// CheckResult is the response of complexity.check.
type CheckResult struct {
	Complexity complexity.Result         `json:"complexity"`
	Risk       complexity.RiskAssessment `json:"risk"`
}

// RecentParams are the arguments of history.recent.
type RecentParams struct {
	Limit int `json:"limit,omitempty"`
}

// Server dispatches JSON-RPC methods onto the orchestrator.
type Server struct {
	orch *orchestrator.Orchestrator
	log  *logging.Logger
}

// New creates a Server over the given orchestrator.
func New(orch *orchestrator.Orchestrator, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Server{orch: orch, log: log}
}

// ServeStdio handles JSON-RPC over stdin/stdout until the client
// disconnects or ctx is canceled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stream := jsonrpc2.NewBufferedStream(stdrwc{}, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))
	s.log.Info("server listening on stdio")

	select {
	case <-ctx.Done():
		conn.Close()
		return ctx.Err()
	case <-conn.DisconnectNotify():
		return nil
	}
}

// handle dispatches one request.
func (s *Server) handle(ctx context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	s.log.Debug("rpc request", "method", req.Method)

	result, err := s.dispatch(ctx, req)
	if err != nil {
		return nil, rpcError(err)
	}
	return result, nil
}

func (s *Server) dispatch(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	switch req.Method {
	case "debate.run":
		var p DebateParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return s.orch.Run(ctx, p.request(), orchestrator.RunOptions{
			Force:   p.Force,
			NoCache: p.NoCache,
		})

	case "debate.start":
		var p DebateParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return s.orch.StartExternal(ctx, p.request(), orchestrator.RunOptions{Force: p.Force})

	case "debate.complete":
		var p CompleteParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return s.orch.CompleteExternal(ctx, p.SessionID, p.Analysis)

	case "debate.cancel":
		var p CancelParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		if err := s.orch.Cancel(ctx, p.SessionID, p.Reason); err != nil {
			return nil, err
		}
		return map[string]bool{"canceled": true}, nil

	case "session.override":
		var p OverrideParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return s.orch.Override(ctx, p.SessionID, p.Actor, p.Justification)

	case "session.pack":
		var p PackParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		return s.orch.Pack(ctx, p.SessionID)

	case "complexity.check":
		var p CheckParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		dreq := debate.Request{Topic: p.Topic, Files: p.Files, FocusAreas: p.FocusAreas}
		if err := dreq.Validate(); err != nil {
			return nil, err
		}
		out := CheckResult{Complexity: s.orch.Complexity().Assess(dreq)}
		if s.orch.History() != nil {
			if records, err := s.orch.History().All(); err == nil {
				out.Risk = s.orch.Complexity().PredictRisk(dreq, records)
			}
		}
		return out, nil

	case "history.recent":
		var p RecentParams
		if req.Params != nil {
			if err := unmarshalParams(req, &p); err != nil {
				return nil, err
			}
		}
		if s.orch.History() == nil {
			return []history.Record{}, nil
		}
		records, err := s.orch.History().Recent(p.Limit)
		if err != nil {
			return nil, err
		}
		if records == nil {
			records = []history.Record{}
		}
		return records, nil

	case "history.stats":
		if s.orch.History() == nil {
			return history.Stats{}, nil
		}
		return s.orch.History().LogStats()

	default:
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: fmt.Sprintf("method %q not found", req.Method),
		}
	}
}

// unmarshalParams decodes request params, mapping decode failures to the
// standard invalid-params code.
func unmarshalParams(req *jsonrpc2.Request, v any) error {
	if req.Params == nil {
		return &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInvalidParams,
			Message: "missing params",
		}
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInvalidParams,
			Message: err.Error(),
		}
	}
	return nil
}

// rpcError maps engine errors onto JSON-RPC error codes.
func rpcError(err error) error {
	var rpcErr *jsonrpc2.Error
	if perrors.As(err, &rpcErr) {
		return rpcErr
	}

	code := int64(jsonrpc2.CodeInternalError)
	switch {
	case perrors.Is(err, perrors.ErrInvalidRequest):
		code = jsonrpc2.CodeInvalidParams
	case perrors.Is(err, perrors.ErrSessionNotFound):
		code = codeSessionNotFound
	case perrors.Is(err, perrors.ErrDebateNotRequired):
		code = codeDebateNotRequired
	case perrors.Is(err, perrors.ErrProviderUnavailable):
		code = codeProviderUnavailable
	case perrors.Is(err, perrors.ErrStateViolation):
		code = codeStateViolation
	}

	return &jsonrpc2.Error{Code: code, Message: err.Error()}
}

// stdrwc glues stdin and stdout into one ReadWriteCloser for the stream.
type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdrwc) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}

var _ io.ReadWriteCloser = stdrwc{}
