package diagnostics

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mwiater/daemonbench/internal/labelscan"
)

var (
	daemonHeader = labelscan.Contains("daemon", "mode")
	directHeader = labelscan.Any(
		labelscan.Contains("direct", "mode"),
		labelscan.Contains("fallback", "mode"),
	)
	anyHeader = labelscan.Any(daemonHeader, directHeader)
)

// ParseSummary extracts per-mode averages and sample counts from the output of
// `daemon --timing-summary`. It reports false when neither mode was found.
func ParseSummary(text string) (Summary, bool) {
	var sum Summary
	if strings.TrimSpace(text) == "" {
		return sum, false
	}

	root := labelscan.New(text)
	sections := map[string]**ModeTiming{"daemon": &sum.Daemon, "direct": &sum.Direct}
	for {
		block, ok := root.Block(anyHeader, anyHeader)
		if !ok {
			break
		}
		header := block.Lines()[0]
		key := "direct"
		if daemonHeader(header) {
			key = "daemon"
		}
		if *sections[key] != nil {
			continue
		}
		*sections[key] = parseSection(block, header)
	}

	assignLooseSampleCounts(text, &sum)

	if ms, ok := labelscan.New(text).FindNumber("improvement", labelscan.Millis); ok {
		sum.ImprovementMs = &ms
	}
	if pct, ok := labelscan.New(text).FindNumber("improvement", labelscan.Percent); ok {
		sum.ImprovementPercent = &pct
	}

	sum.SummaryText = text
	return sum, sum.HasTiming()
}

// parseSection reads one mode block. The average may sit on an "Average:" line
// or on the header itself ("Daemon mode: 1.234ms").
func parseSection(block *labelscan.Scanner, header string) *ModeTiming {
	var mt ModeTiming
	found := false

	if avg, ok := block.FindNumber("average", labelscan.Millis); ok {
		mt.AverageMs = avg
		found = true
	} else if avg, ok := labelscan.NumberAfter(header, "mode", labelscan.Millis); ok {
		mt.AverageMs = avg
		found = true
	}

	// Samples may precede the average, so scan the block again from its start.
	rescan := labelscan.New(strings.Join(block.Lines(), "\n"))
	if n, ok := rescan.FindNumber("samples", labelscan.Count); ok {
		mt.Samples = int(n)
		found = true
	}

	if !found {
		return nil
	}
	return &mt
}

// assignLooseSampleCounts handles summaries that print the sample counts after
// both mode lines instead of inside each section: the first count belongs to
// the daemon and the second to direct mode.
func assignLooseSampleCounts(text string, sum *Summary) {
	if sum.Daemon == nil || sum.Direct == nil {
		return
	}
	if sum.Daemon.Samples != 0 || sum.Direct.Samples == 0 {
		return
	}
	s := labelscan.New(text)
	first, ok1 := s.FindNumber("samples", labelscan.Count)
	second, ok2 := s.FindNumber("samples", labelscan.Count)
	if ok1 && ok2 {
		sum.Daemon.Samples = int(first)
		sum.Direct.Samples = int(second)
	}
}

// exportColumns is the column order written by the target when its export has
// no header row.
var exportColumns = []string{"timestamp", "mode", "total_ms", "config_ms", "ipc_ms", "processing_ms"}

// ParseExport parses the CSV produced by `daemon --export-timing`. Columns are
// located by header name; malformed rows are skipped and counted.
func ParseExport(text string) ([]Record, int, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	index := columnIndex(exportColumns)
	var (
		records []Record
		skipped int
		first   = true
	)
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				continue
			}
			return records, skipped, fmt.Errorf("read timing export: %w", err)
		}
		if first {
			first = false
			if isHeader(row) {
				index = columnIndex(row)
				continue
			}
		}
		rec, err := parseRecord(row, index)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// SummarizeRecords averages total_ms per mode.
func SummarizeRecords(records []Record) map[string]ModeTiming {
	if len(records) == 0 {
		return nil
	}
	sums := make(map[string]float64)
	out := make(map[string]ModeTiming)
	for _, rec := range records {
		mt := out[rec.Mode]
		mt.Samples++
		out[rec.Mode] = mt
		sums[rec.Mode] += rec.TotalMs
	}
	for mode, mt := range out {
		mt.AverageMs = sums[mode] / float64(mt.Samples)
		out[mode] = mt
	}
	return out
}

func isHeader(row []string) bool {
	for _, cell := range row {
		if strings.EqualFold(strings.TrimSpace(cell), "timestamp") || strings.EqualFold(strings.TrimSpace(cell), "mode") {
			return true
		}
	}
	return false
}

func columnIndex(names []string) map[string]int {
	idx := make(map[string]int, len(names))
	for i, name := range names {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return idx
}

func parseRecord(row []string, index map[string]int) (Record, error) {
	var rec Record

	cell := func(name string) (string, bool) {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[i]), true
	}
	number := func(name string, required bool) (float64, error) {
		raw, ok := cell(name)
		if !ok || raw == "" {
			if required {
				return 0, fmt.Errorf("missing %s", name)
			}
			return 0, nil
		}
		return strconv.ParseFloat(raw, 64)
	}

	modeRaw, ok := cell("mode")
	if !ok {
		return rec, errors.New("missing mode")
	}
	mode, err := normalizeMode(modeRaw)
	if err != nil {
		return rec, err
	}
	rec.Mode = mode

	if raw, ok := cell("timestamp"); ok && raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return rec, fmt.Errorf("timestamp: %w", err)
		}
		rec.Timestamp = time.UnixMilli(ms).UTC()
	}

	if rec.TotalMs, err = number("total_ms", true); err != nil {
		return rec, err
	}
	if rec.ConfigMs, err = number("config_ms", false); err != nil {
		return rec, err
	}
	if rec.IPCMs, err = number("ipc_ms", false); err != nil {
		return rec, err
	}
	if rec.ProcessingMs, err = number("processing_ms", false); err != nil {
		return rec, err
	}
	return rec, nil
}

func normalizeMode(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "daemon":
		return "daemon", nil
	case "direct", "fallback":
		return "direct", nil
	default:
		return "", fmt.Errorf("unknown mode %q", raw)
	}
}
