// Package history keeps an append-only log of completed debates. Each
// debate appends one JSON line; the log feeds the history CLI surface and
// the risk predictor's similarity scan. A corrupt line is skipped on read
// rather than failing the whole log.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parleyhq/parley/internal/perrors"
)

// Record summarizes one completed debate.
type Record struct {
	SessionID  string    `json:"session_id"`
	Topic      string    `json:"topic"`
	Files      []string  `json:"files,omitempty"`
	FocusAreas []string  `json:"focus_areas,omitempty"`
	Score      int       `json:"score"`
	Band       string    `json:"band"`
	Partial    bool      `json:"partial,omitempty"`
	Overridden bool      `json:"overridden,omitempty"`
	Cached     bool      `json:"cached,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Stats aggregates the log.
type Stats struct {
	TotalDebates     int     `json:"total_debates"`
	AverageConsensus float64 `json:"average_consensus"`
	OverrideRate     float64 `json:"override_rate"`
	PartialRate      float64 `json:"partial_rate"`
}

// Log is a file-backed debate history. Safe for concurrent use within one
// process; appends are O_APPEND single writes.
type Log struct {
	mu   sync.Mutex
	path string
}

// NewLog creates a history log at dir/history.jsonl.
func NewLog(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, perrors.NewStorageError("failed to create history directory", err).WithOp("init")
	}
	return &Log{path: filepath.Join(dir, "history.jsonl")}, nil
}

// Append adds a record to the log.
func (l *Log) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return perrors.NewStorageError("failed to marshal history record", err).
			WithOp("append").WithRetryable(false)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return perrors.NewStorageError("failed to open history log", err).WithOp("append")
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return perrors.NewStorageError("failed to write history record", err).WithOp("append")
	}
	return nil
}

// All returns every readable record in append order. Unparseable lines are
// skipped.
func (l *Log) All() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, perrors.NewStorageError("failed to open history log", err).WithOp("read")
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, perrors.NewStorageError("failed to scan history log", err).WithOp("read")
	}
	return records, nil
}

// Recent returns up to n records, newest first.
func (l *Log) Recent(n int) ([]Record, error) {
	records, err := l.All()
	if err != nil {
		return nil, err
	}
	if n <= 0 || n > len(records) {
		n = len(records)
	}

	out := make([]Record, 0, n)
	for i := len(records) - 1; i >= len(records)-n; i-- {
		out = append(out, records[i])
	}
	return out, nil
}

// LogStats computes aggregate statistics over the whole log.
func (l *Log) LogStats() (Stats, error) {
	records, err := l.All()
	if err != nil {
		return Stats{}, err
	}
	if len(records) == 0 {
		return Stats{}, nil
	}

	var scoreSum, overrides, partials int
	for _, rec := range records {
		scoreSum += rec.Score
		if rec.Overridden {
			overrides++
		}
		if rec.Partial {
			partials++
		}
	}

	total := float64(len(records))
	return Stats{
		TotalDebates:     len(records),
		AverageConsensus: float64(scoreSum) / total,
		OverrideRate:     float64(overrides) / total,
		PartialRate:      float64(partials) / total,
	}, nil
}

// String renders a record as a single log line for the history command.
func (r Record) String() string {
	flags := ""
	if r.Overridden {
		flags += " [overridden]"
	}
	if r.Partial {
		flags += " [partial]"
	}
	if r.Cached {
		flags += " [cached]"
	}
	return fmt.Sprintf("%s  %3d/100 %-20s %s%s",
		r.Timestamp.Format("2006-01-02 15:04"), r.Score, r.Band, r.Topic, flags)
}
