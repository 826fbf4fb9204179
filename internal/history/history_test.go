package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := NewLog(t.TempDir())
	if err != nil {
		t.Fatalf("NewLog() error = %v", err)
	}
	return l
}

func TestAppendAndAll(t *testing.T) {
	l := newTestLog(t)

	recs := []Record{
		{SessionID: "s1", Topic: "first", Score: 82, Band: "Good Agreement"},
		{SessionID: "s2", Topic: "second", Score: 45, Band: "Mixed"},
	}
	for _, r := range recs {
		if err := l.Append(r); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := l.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("All() returned %d records, want 2", len(got))
	}
	if got[0].Topic != "first" || got[1].Topic != "second" {
		t.Errorf("All() order = [%s, %s], want append order", got[0].Topic, got[1].Topic)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("Append() did not stamp timestamp")
	}
}

func TestRecentNewestFirst(t *testing.T) {
	l := newTestLog(t)
	for i, topic := range []string{"oldest", "middle", "newest"} {
		l.Append(Record{Topic: topic, Score: 50 + i})
	}

	got, err := l.Recent(2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d records, want 2", len(got))
	}
	if got[0].Topic != "newest" || got[1].Topic != "middle" {
		t.Errorf("Recent(2) = [%s, %s], want [newest, middle]", got[0].Topic, got[1].Topic)
	}

	all, _ := l.Recent(0)
	if len(all) != 3 {
		t.Errorf("Recent(0) returned %d records, want all 3", len(all))
	}
}

func TestEmptyLog(t *testing.T) {
	l := newTestLog(t)

	records, err := l.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("All() on empty log = %d records, want 0", len(records))
	}

	stats, err := l.LogStats()
	if err != nil {
		t.Fatalf("LogStats() error = %v", err)
	}
	if stats.TotalDebates != 0 {
		t.Errorf("TotalDebates = %d, want 0", stats.TotalDebates)
	}
}

func TestLogStats(t *testing.T) {
	l := newTestLog(t)
	l.Append(Record{Topic: "a", Score: 80})
	l.Append(Record{Topic: "b", Score: 60, Overridden: true})
	l.Append(Record{Topic: "c", Score: 40, Partial: true})
	l.Append(Record{Topic: "d", Score: 100})

	stats, err := l.LogStats()
	if err != nil {
		t.Fatalf("LogStats() error = %v", err)
	}
	if stats.TotalDebates != 4 {
		t.Errorf("TotalDebates = %d, want 4", stats.TotalDebates)
	}
	if stats.AverageConsensus != 70 {
		t.Errorf("AverageConsensus = %v, want 70", stats.AverageConsensus)
	}
	if stats.OverrideRate != 0.25 {
		t.Errorf("OverrideRate = %v, want 0.25", stats.OverrideRate)
	}
	if stats.PartialRate != 0.25 {
		t.Errorf("PartialRate = %v, want 0.25", stats.PartialRate)
	}
}

func TestCorruptLineSkipped(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLog(dir)
	if err != nil {
		t.Fatalf("NewLog() error = %v", err)
	}

	l.Append(Record{Topic: "good", Score: 75})

	f, err := os.OpenFile(filepath.Join(dir, "history.jsonl"), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("opening log: %v", err)
	}
	f.WriteString("{ not valid json\n")
	f.Close()

	l.Append(Record{Topic: "also good", Score: 85})

	records, err := l.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("All() returned %d records, want 2 (corrupt line skipped)", len(records))
	}
}

func TestRecordString(t *testing.T) {
	r := Record{
		Topic:      "add caching layer",
		Score:      82,
		Band:       "Good Agreement",
		Overridden: true,
		Timestamp:  time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC),
	}

	s := r.String()
	for _, want := range []string{"82/100", "add caching layer", "[overridden]", "2026-08-30"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}
