package complexity

import (
	"testing"

	"github.com/parleyhq/parley/internal/debate"
	"github.com/parleyhq/parley/internal/history"
)

func TestTrivialChangeBelowThreshold(t *testing.T) {
	e := New(0, 0)

	req := debate.Request{Topic: "Fix typo in README"}
	result := e.Assess(req)

	if result.Score >= DefaultThreshold {
		t.Errorf("Score = %d, want below threshold %d", result.Score, DefaultThreshold)
	}
	if result.Required {
		t.Error("Required = true for trivial change")
	}
}

func TestRiskyChangeAboveThreshold(t *testing.T) {
	e := New(0, 0)

	req := debate.Request{
		Topic: "Add caching layer",
		Files: []string{"cache.go", "db.go"},
	}
	result := e.Assess(req)

	if result.Score < DefaultThreshold {
		t.Errorf("Score = %d, want at least threshold %d", result.Score, DefaultThreshold)
	}
	if !result.Required {
		t.Error("Required = false for caching change across code files")
	}
	if len(result.Reasons) == 0 {
		t.Error("Assess() returned no reasons")
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	e := New(0, 0)
	req := debate.Request{
		Topic: "Migrate user schema to new database",
		Files: []string{"migrations/001.sql", "models/user.go"},
	}

	first := e.Score(req)
	for i := 0; i < 5; i++ {
		if got := e.Score(req); got != first {
			t.Fatalf("Score() = %d on repeat, want %d", got, first)
		}
	}
}

func TestKeywordPointsAreCapped(t *testing.T) {
	e := New(0, 0)

	// Every keyword in one topic must not blow past the cap.
	req := debate.Request{
		Topic: "auth security migration schema database concurrency race lock delete payment cache refactor",
	}
	result := e.Assess(req)
	// 10 words (+10) plus capped keywords (+30).
	if result.Score != 40 {
		t.Errorf("Score = %d, want 40 (keyword cap applied)", result.Score)
	}
}

func TestScoreCappedAt100(t *testing.T) {
	e := New(0, 0)

	files := make([]string, 10)
	for i := range files {
		files[i] = "pkg/file.go"
	}
	words := ""
	for i := 0; i < 120; i++ {
		words += "word "
	}
	req := debate.Request{Topic: words + " auth schema payment cache", Files: files}

	if got := e.Score(req); got > 100 {
		t.Errorf("Score = %d, want <= 100", got)
	}
}

func TestCustomThreshold(t *testing.T) {
	e := New(80, 0)

	req := debate.Request{Topic: "Add caching layer", Files: []string{"cache.go", "db.go"}}
	result := e.Assess(req)
	if result.Required {
		t.Errorf("Required = true with threshold 80 and score %d", result.Score)
	}
	if result.Threshold != 80 {
		t.Errorf("Threshold = %d, want 80", result.Threshold)
	}
}

func TestPredictRiskFindsSimilarDebates(t *testing.T) {
	e := New(0, 0)

	records := []history.Record{
		{Topic: "Add caching layer for session lookups", Files: []string{"cache.go"}, Score: 35},
		{Topic: "Update contributor guidelines", Score: 95},
	}
	req := debate.Request{
		Topic: "Add caching layer for user lookups",
		Files: []string{"cache.go"},
	}

	risk := e.PredictRisk(req, records)
	if risk.Score == 0 {
		t.Fatal("PredictRisk() = 0 with a similar low-consensus debate on record")
	}
	if len(risk.Patterns) != 1 {
		t.Fatalf("Patterns = %v, want exactly the similar topic", risk.Patterns)
	}
	if risk.Patterns[0] != "Add caching layer for session lookups" {
		t.Errorf("Patterns[0] = %q, want the similar topic", risk.Patterns[0])
	}
}

func TestPredictRiskNoSimilarHistory(t *testing.T) {
	e := New(0, 0)

	records := []history.Record{
		{Topic: "Completely unrelated subject matter", Score: 20},
	}
	req := debate.Request{Topic: "Add caching layer", Files: []string{"cache.go"}}

	risk := e.PredictRisk(req, records)
	if risk.Score != 0 || len(risk.Patterns) != 0 {
		t.Errorf("PredictRisk() = %+v, want zero assessment", risk)
	}
}

func TestPredictRiskEmptyHistory(t *testing.T) {
	e := New(0, 0)
	req := debate.Request{Topic: "Add caching layer"}

	risk := e.PredictRisk(req, nil)
	if risk.Score != 0 {
		t.Errorf("PredictRisk() with empty history = %d, want 0", risk.Score)
	}
}
