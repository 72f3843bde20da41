// Package logging builds the root zerolog logger: colored console output
// plus a daily log file. Components receive child loggers from this root
// instead of using the global zerolog singleton.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Setup creates the root logger. The log file is named per day and gets a
// dryrun_ prefix in dry-run mode so simulated sessions never mix with real
// ones. The returned closer owns the file handle.
func Setup(logDir string, dryRun, debug bool) (zerolog.Logger, io.Closer, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
	}

	prefix := ""
	if dryRun {
		prefix = "dryrun_"
	}
	name := fmt.Sprintf("exitwave_%s%s.log", prefix, time.Now().Format("2006-01-02"))

	file, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	multi := zerolog.MultiLevelWriter(console, file)

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(multi).Level(level).With().Timestamp().Logger()
	return logger, file, nil
}
