// Package diagnostics pulls the target tool's self-reported timing through its
// daemon diagnostics commands. Every part of it is optional: a tool that does
// not support the commands yields a nil or partial Summary, never an error.
package diagnostics

import "time"

// ModeTiming is the internally measured aggregate for one execution mode.
type ModeTiming struct {
	AverageMs float64 `json:"averageMs"`
	Samples   int     `json:"samples"`
}

// Record is one row of the raw timing export.
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	Mode         string    `json:"mode"`
	TotalMs      float64   `json:"totalMs"`
	ConfigMs     float64   `json:"configMs"`
	IPCMs        float64   `json:"ipcMs"`
	ProcessingMs float64   `json:"processingMs"`
}

// Summary is the parsed diagnostics of one run.
type Summary struct {
	// Daemon and Direct come from the free-text timing summary only.
	Daemon             *ModeTiming `json:"daemon,omitempty"`
	Direct             *ModeTiming `json:"direct,omitempty"`
	ImprovementMs      *float64    `json:"improvementMs,omitempty"`
	ImprovementPercent *float64    `json:"improvementPercent,omitempty"`

	// ExportStats are derived from the raw CSV export.
	ExportStats    map[string]ModeTiming `json:"exportStats,omitempty"`
	Records        []Record              `json:"records,omitempty"`
	SkippedRecords int                   `json:"skippedRecords,omitempty"`

	SummaryText string `json:"summaryText,omitempty"`
	RawCSV      string `json:"-"`
}

// HasTiming reports whether the timing summary yielded at least one mode.
func (s *Summary) HasTiming() bool {
	return s != nil && (s.Daemon != nil || s.Direct != nil)
}

// HasExport reports whether the raw export was captured.
func (s *Summary) HasExport() bool {
	return s != nil && s.RawCSV != ""
}
