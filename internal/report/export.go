package report

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/mwiater/daemonbench/internal/benchmark"
	"github.com/mwiater/daemonbench/internal/logging"
	"github.com/mwiater/daemonbench/internal/util"
)

// SchemaVersion is written into every export.
const SchemaVersion = 1

// DefaultExportName is the JSON export file name inside the output directory.
const DefaultExportName = "benchmark_results.json"

//go:embed export_schema.json
var exportSchema []byte

// Export is the on-disk form of a run.
type Export struct {
	SchemaVersion int       `json:"schemaVersion"`
	GeneratedAt   time.Time `json:"generatedAt"`
	benchmark.Run
}

// Artifacts lists the files written for a run.
type Artifacts struct {
	JSONPath string
	// CSVPath is empty when the tool produced no raw timing export.
	CSVPath string
}

// WriteExport validates and writes the JSON export of run into dir, plus the
// tool's raw timing CSV when one was captured.
func WriteExport(dir string, run *benchmark.Run) (Artifacts, error) {
	var art Artifacts
	if run == nil {
		return art, fmt.Errorf("no run to export")
	}
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return art, fmt.Errorf("error creating output directory: %w", err)
	}

	doc := Export{SchemaVersion: SchemaVersion, GeneratedAt: time.Now().UTC(), Run: *run}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return art, fmt.Errorf("error encoding export: %w", err)
	}
	if err := validateExport(data); err != nil {
		return art, err
	}

	art.JSONPath = filepath.Join(dir, DefaultExportName)
	if err := util.WriteFile(art.JSONPath, append(data, '\n')); err != nil {
		return art, fmt.Errorf("error writing export: %w", err)
	}
	logging.LogEvent("Benchmark results written to %s", art.JSONPath)

	if run.Diagnostics.HasExport() {
		art.CSVPath = filepath.Join(dir, csvName(run.StartedAt))
		if err := util.WriteFile(art.CSVPath, []byte(run.Diagnostics.RawCSV)); err != nil {
			return art, fmt.Errorf("error writing timing export: %w", err)
		}
		logging.LogEvent("Raw timing export written to %s", art.CSVPath)
	}
	return art, nil
}

// LoadExport reads a previously written export back into a run.
func LoadExport(path string) (*benchmark.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	if err := validateExport(data); err != nil {
		return nil, err
	}
	var doc Export
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode export %s: %w", path, err)
	}
	if doc.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("export %s has schema version %d, newest supported is %d", path, doc.SchemaVersion, SchemaVersion)
	}
	run := doc.Run
	return &run, nil
}

func validateExport(data []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(exportSchema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return fmt.Errorf("export validation failed: %s", strings.Join(errs, ", "))
}

func csvName(started time.Time) string {
	if started.IsZero() {
		started = time.Now()
	}
	return fmt.Sprintf("timing-%s.csv", started.UTC().Format("20060102-150405"))
}
