package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/parleyhq/parley/internal/cache"
	"github.com/parleyhq/parley/internal/consensus"
	"github.com/parleyhq/parley/internal/debate"
	"github.com/parleyhq/parley/internal/history"
	"github.com/parleyhq/parley/internal/orchestrator"
	"github.com/parleyhq/parley/internal/provider"
	"github.com/parleyhq/parley/internal/store"
)

type fixedProvider struct {
	name  string
	persp debate.Perspective
}

func (f *fixedProvider) Identity() string  { return f.name }
func (f *fixedProvider) IsAvailable() bool { return true }

func (f *fixedProvider) Invoke(ctx context.Context, req debate.Request, role provider.Role) (debate.Perspective, error) {
	p := f.persp
	p.Provider = f.name
	p.CompletedAt = time.Now().UTC()
	return p, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	scorer, err := consensus.NewScorer(consensus.DefaultWeights())
	if err != nil {
		t.Fatalf("NewScorer() error = %v", err)
	}
	hist, err := history.NewLog(t.TempDir())
	if err != nil {
		t.Fatalf("NewLog() error = %v", err)
	}

	a := &fixedProvider{name: "bridge", persp: debate.Perspective{
		Position: debate.Position{
			Stance:     debate.StanceApprove,
			Concerns:   []string{"cache invalidation"},
			Confidence: 0.9,
		},
	}}
	b := &fixedProvider{name: "cli", persp: debate.Perspective{
		Position: debate.Position{
			Stance:     debate.StanceApprove,
			Concerns:   []string{"cache invalidation"},
			Confidence: 0.9,
		},
	}}

	orch := orchestrator.New(orchestrator.Config{
		Providers: provider.Pair{Primary: a, Counter: b},
		Sessions:  debate.NewSessions(fs),
		Scorer:    scorer,
		Cache:     cache.New(fs, 0),
		History:   hist,
	})
	return New(orch, nil)
}

// contextFiles writes two source files to a temp dir and returns their
// paths, since requests naming unreadable files are rejected.
func contextFiles(t *testing.T) []string {
	t.Helper()

	dir := t.TempDir()
	files := make([]string, 0, 2)
	for _, name := range []string{"cache.go", "db.go"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("package storage\n"), 0644); err != nil {
			t.Fatalf("write context file: %v", err)
		}
		files = append(files, path)
	}
	return files
}

func call(t *testing.T, s *Server, method string, params any) (any, error) {
	t.Helper()

	req := &jsonrpc2.Request{Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		msg := json.RawMessage(raw)
		req.Params = &msg
	}
	return s.handle(context.Background(), nil, req)
}

func TestDebateRun(t *testing.T) {
	s := newTestServer(t)

	result, err := call(t, s, "debate.run", DebateParams{
		Topic: "Add caching layer",
		Files: contextFiles(t),
	})
	if err != nil {
		t.Fatalf("debate.run error = %v", err)
	}

	out, ok := result.(*orchestrator.Outcome)
	if !ok {
		t.Fatalf("result type = %T, want *orchestrator.Outcome", result)
	}
	if out.Consensus == nil || out.Consensus.Score != 100 {
		t.Errorf("Consensus = %+v, want score 100 for identical positions", out.Consensus)
	}
	if !out.CanProceed {
		t.Error("CanProceed = false")
	}
}

func TestDebateRunRejectsMissingFile(t *testing.T) {
	s := newTestServer(t)

	_, err := call(t, s, "debate.run", DebateParams{
		Topic: "Add caching layer",
		Files: []string{"/definitely/not/a/real/file.go"},
		Force: true,
	})
	rpcErr, ok := err.(*jsonrpc2.Error)
	if !ok {
		t.Fatalf("error type = %T, want *jsonrpc2.Error", err)
	}
	if rpcErr.Code != jsonrpc2.CodeInvalidParams {
		t.Errorf("Code = %d, want %d", rpcErr.Code, jsonrpc2.CodeInvalidParams)
	}
}

func TestDebateRunRefusedBelowThreshold(t *testing.T) {
	s := newTestServer(t)

	_, err := call(t, s, "debate.run", DebateParams{Topic: "Fix typo in README"})
	rpcErr, ok := err.(*jsonrpc2.Error)
	if !ok {
		t.Fatalf("error type = %T, want *jsonrpc2.Error", err)
	}
	if rpcErr.Code != codeDebateNotRequired {
		t.Errorf("Code = %d, want %d", rpcErr.Code, codeDebateNotRequired)
	}
}

func TestTwoPhaseOverRPC(t *testing.T) {
	s := newTestServer(t)

	started, err := call(t, s, "debate.start", DebateParams{
		Topic: "Add caching layer",
		Files: contextFiles(t),
	})
	if err != nil {
		t.Fatalf("debate.start error = %v", err)
	}
	sr, ok := started.(*orchestrator.StartResult)
	if !ok {
		t.Fatalf("result type = %T, want *orchestrator.StartResult", started)
	}

	completed, err := call(t, s, "debate.complete", CompleteParams{
		SessionID: sr.SessionID,
		Analysis:  "STANCE: approve\nCONFIDENCE: 90\nCONCERNS:\n- cache invalidation",
	})
	if err != nil {
		t.Fatalf("debate.complete error = %v", err)
	}
	out := completed.(*orchestrator.Outcome)
	if out.SessionID != sr.SessionID {
		t.Errorf("SessionID = %q, want %q", out.SessionID, sr.SessionID)
	}
	if out.Consensus == nil {
		t.Fatal("no consensus after completion")
	}
}

func TestSessionPack(t *testing.T) {
	s := newTestServer(t)

	result, err := call(t, s, "debate.run", DebateParams{
		Topic: "Add caching layer",
		Files: contextFiles(t),
	})
	if err != nil {
		t.Fatalf("debate.run error = %v", err)
	}
	out := result.(*orchestrator.Outcome)

	got, err := call(t, s, "session.pack", PackParams{SessionID: out.SessionID})
	if err != nil {
		t.Fatalf("session.pack error = %v", err)
	}
	pack, ok := got.(*debate.Pack)
	if !ok {
		t.Fatalf("result type = %T, want *debate.Pack", got)
	}
	if pack.Consensus == nil || pack.Consensus.Score != out.Consensus.Score {
		t.Errorf("pack consensus = %+v, want score %d", pack.Consensus, out.Consensus.Score)
	}
}

func TestCompleteUnknownSessionCode(t *testing.T) {
	s := newTestServer(t)

	_, err := call(t, s, "debate.complete", CompleteParams{
		SessionID: "missing", Analysis: "STANCE: approve",
	})
	rpcErr, ok := err.(*jsonrpc2.Error)
	if !ok {
		t.Fatalf("error type = %T, want *jsonrpc2.Error", err)
	}
	if rpcErr.Code != codeSessionNotFound {
		t.Errorf("Code = %d, want %d", rpcErr.Code, codeSessionNotFound)
	}
}

func TestComplexityCheck(t *testing.T) {
	s := newTestServer(t)

	result, err := call(t, s, "complexity.check", CheckParams{
		Topic: "Add caching layer",
		Files: []string{"cache.go", "db.go"},
	})
	if err != nil {
		t.Fatalf("complexity.check error = %v", err)
	}

	out, ok := result.(CheckResult)
	if !ok {
		t.Fatalf("result type = %T, want CheckResult", result)
	}
	if !out.Complexity.Required {
		t.Errorf("Required = false at score %d", out.Complexity.Score)
	}
}

func TestHistoryRecentAfterRun(t *testing.T) {
	s := newTestServer(t)

	if _, err := call(t, s, "debate.run", DebateParams{
		Topic: "Add caching layer",
		Files: contextFiles(t),
	}); err != nil {
		t.Fatalf("debate.run error = %v", err)
	}

	result, err := call(t, s, "history.recent", RecentParams{Limit: 5})
	if err != nil {
		t.Fatalf("history.recent error = %v", err)
	}
	records := result.([]history.Record)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Topic != "Add caching layer" {
		t.Errorf("Topic = %q", records[0].Topic)
	}
}

func TestInvalidParams(t *testing.T) {
	s := newTestServer(t)

	_, err := call(t, s, "debate.run", nil)
	rpcErr, ok := err.(*jsonrpc2.Error)
	if !ok {
		t.Fatalf("error type = %T, want *jsonrpc2.Error", err)
	}
	if rpcErr.Code != jsonrpc2.CodeInvalidParams {
		t.Errorf("Code = %d, want %d", rpcErr.Code, jsonrpc2.CodeInvalidParams)
	}
}

func TestUnknownMethod(t *testing.T) {
	s := newTestServer(t)

	_, err := call(t, s, "debate.explode", map[string]string{})
	rpcErr, ok := err.(*jsonrpc2.Error)
	if !ok {
		t.Fatalf("error type = %T, want *jsonrpc2.Error", err)
	}
	if rpcErr.Code != jsonrpc2.CodeMethodNotFound {
		t.Errorf("Code = %d, want %d", rpcErr.Code, jsonrpc2.CodeMethodNotFound)
	}
}
