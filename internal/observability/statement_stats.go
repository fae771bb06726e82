// Package observability provides statement statistics and metrics for the
// executor.
package observability

import (
	"sort"
	"sync"
	"time"
)

// StatementStats tracks how often each statement kind runs and how often each
// template field is read or written.
type StatementStats struct {
	mu         sync.RWMutex
	statements map[string]int64
	fieldFreq  map[string]*FieldStats
	window     time.Duration
}

// FieldStats holds access statistics for one field of one template.
type FieldStats struct {
	Template   string         `json:"template"`
	Field      string         `json:"field"`
	Frequency  int64          `json:"frequency"`
	LastSeen   time.Time      `json:"last_seen"`
	Operations map[string]int `json:"operations"` // operation → count (e.g., "get" → 5, "set" → 2)
}

// Snapshot is a copy of the statement counters.
type Snapshot struct {
	Statements map[string]int64 `json:"statements"`
	TopFields  []FieldStats     `json:"top_fields"`
}

// NewStatementStats creates a new statistics tracker.
// window: time duration for pruning old field entries (e.g., 1 hour)
func NewStatementStats(window time.Duration) *StatementStats {
	return &StatementStats{
		statements: make(map[string]int64),
		fieldFreq:  make(map[string]*FieldStats),
		window:     window,
	}
}

// RecordStatement counts one executed statement of the given kind.
func (s *StatementStats) RecordStatement(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statements[kind]++
}

// RecordFieldAccess records a read or write of template.field.
// This method is O(1) and thread-safe.
func (s *StatementStats) RecordFieldAccess(template, field, operation string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := template + "." + field
	stats, exists := s.fieldFreq[key]
	if !exists {
		stats = &FieldStats{
			Template:   template,
			Field:      field,
			Operations: make(map[string]int),
		}
		s.fieldFreq[key] = stats
	}

	stats.Frequency++
	stats.LastSeen = time.Now()
	stats.Operations[operation]++
}

// StatementCount returns how many statements of kind have run.
func (s *StatementStats) StatementCount(kind string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statements[kind]
}

// TopFields returns the top N fields by access frequency.
// Returns a copy of the stats sorted by frequency (descending).
func (s *StatementStats) TopFields(n int) []FieldStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.fieldFreq) == 0 {
		return []FieldStats{}
	}

	stats := make([]FieldStats, 0, len(s.fieldFreq))
	for _, f := range s.fieldFreq {
		cp := *f
		cp.Operations = make(map[string]int, len(f.Operations))
		for op, count := range f.Operations {
			cp.Operations[op] = count
		}
		stats = append(stats, cp)
	}

	// Sort by frequency descending, then by name for a stable order
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		if stats[i].Template != stats[j].Template {
			return stats[i].Template < stats[j].Template
		}
		return stats[i].Field < stats[j].Field
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Snapshot copies the statement counters and the top n fields.
func (s *StatementStats) Snapshot(n int) Snapshot {
	top := s.TopFields(n)

	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int64, len(s.statements))
	for k, v := range s.statements {
		counts[k] = v
	}
	return Snapshot{Statements: counts, TopFields: top}
}

// Prune removes field entries where time.Since(LastSeen) > window.
// This should be called periodically (e.g., every 5 minutes).
func (s *StatementStats) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := time.Now().Add(-s.window)
	for key, stats := range s.fieldFreq {
		if stats.LastSeen.Before(threshold) {
			delete(s.fieldFreq, key)
		}
	}
}
