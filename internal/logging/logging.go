// Package logging tees the standard logger to stdout and an optional log file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/mwiater/daemonbench/internal/util"
)

var (
	mu      sync.Mutex
	logFile *os.File
	console io.Writer = os.Stdout
	debug   bool
)

// Init routes log output to the console writer and, when logPath is set, to
// an append-only log file. Calling Init again replaces the previous file.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writers []io.Writer
	if console != nil {
		writers = append(writers, console)
	}

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = file
		writers = append(writers, logFile)
	}

	if len(writers) == 0 {
		log.SetOutput(io.Discard)
		return nil
	}
	log.SetOutput(io.MultiWriter(writers...))
	return nil
}

// SetConsole replaces the console writer used by the next Init call. A nil
// writer keeps log lines out of the terminal, which the live view needs.
func SetConsole(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	console = w
}

// SetDebug toggles LogDebug output.
func SetDebug(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	debug = enabled
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := logFile.Close()
	logFile = nil
	return err
}

func LogEvent(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Println(msg)
}

// LogWarn logs a non-fatal condition the run recovered from.
func LogWarn(format string, args ...any) {
	log.Println("[WARN] " + fmt.Sprintf(format, args...))
}

func LogDebug(format string, args ...any) {
	mu.Lock()
	enabled := debug
	mu.Unlock()
	if !enabled {
		return
	}
	log.Println("[DEBUG] " + fmt.Sprintf(format, args...))
}

// LogTrial records one measured invocation as a key=value line.
func LogTrial(mode, query string, iteration int, durationMs float64, exitStatus int, detail string) {
	log.Println(buildTrialMessage(mode, query, iteration, durationMs, exitStatus, detail))
}

func buildTrialMessage(mode, query string, iteration int, durationMs float64, exitStatus int, detail string) string {
	modeValue := strings.TrimSpace(mode)
	if modeValue == "" {
		modeValue = "unknown"
	}
	modeValue = strings.ToUpper(modeValue)

	parts := []string{fmt.Sprintf("[%s]", modeValue)}
	parts = append(parts, fmt.Sprintf("iteration=%d", iteration))
	parts = append(parts, "query="+strconv.Quote(query))
	parts = append(parts, fmt.Sprintf("duration_ms=%.2f", durationMs))
	parts = append(parts, fmt.Sprintf("exit=%d", exitStatus))
	if detail = strings.TrimSpace(detail); detail != "" {
		parts = append(parts, "detail="+formatDetail(detail))
	}
	return strings.Join(parts, " ")
}

// formatDetail keeps trial output on a single log line.
func formatDetail(detail string) string {
	const maxDetail = 200
	return strconv.Quote(util.OneLine(detail, maxDetail))
}
