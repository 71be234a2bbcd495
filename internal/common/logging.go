package common

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

const logTimeFormat = "15:04:05"

var (
	logger arbor.ILogger
	mu     sync.RWMutex
)

// GetLogger returns the process logger, creating one from the default
// [logging] section when InitLogger was never called
func GetLogger() arbor.ILogger {
	mu.RLock()
	if logger != nil {
		mu.RUnlock()
		return logger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	if logger == nil {
		l, err := createLogger(&DefaultConfig().Logging)
		if err != nil {
			fmt.Printf("Warning: Failed to initialize default logger: %v\n", err)
			l = arbor.NewLogger()
		}
		logger = l
	}
	return logger
}

// InitLogger builds the process logger from the [logging] section. Later
// calls keep the first logger.
func InitLogger(config *LoggingConfig) error {
	mu.Lock()
	defer mu.Unlock()

	if logger != nil {
		return nil
	}

	l, err := createLogger(config)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// GetLogFilePath returns the file the logger writes to, or where the default
// configuration would put it
func GetLogFilePath() string {
	mu.RLock()
	current := logger
	mu.RUnlock()

	if current != nil {
		if path := current.GetLogFilePath(); path != "" {
			return path
		}
	}
	return LogFilePath(&DefaultConfig().Logging)
}

// LogFilePath resolves the log file of a [logging] section; an empty
// directory means logs/ beside the executable
func LogFilePath(config *LoggingConfig) string {
	dir := config.Directory
	if dir == "" {
		execDir, _ := executableLocation()
		dir = filepath.Join(execDir, "logs")
	}
	name := config.FileName
	if name == "" {
		name = "snow-extractor.log"
	}
	return filepath.Join(dir, name)
}

func writesFile(output string) bool {
	return output == "both" || output == "file" || output == ""
}

func writesConsole(output string) bool {
	return output == "both" || output == "console" || output == ""
}

func createLogger(config *LoggingConfig) (arbor.ILogger, error) {
	l := arbor.NewLogger()
	text := config.Format != "json"

	if writesFile(config.Output) {
		path := LogFilePath(config)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, WrapError(err, ErrorTypeConfiguration, "log_directory", "failed to create log directory")
		}

		l = l.WithFileWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeFile,
			FileName:   path,
			TimeFormat: logTimeFormat,
			MaxSize:    int64(config.MaxSize) * 1024 * 1024,
			MaxBackups: config.MaxBackups,
			TextOutput: text,
		})
	}

	if writesConsole(config.Output) {
		l = l.WithConsoleWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeConsole,
			TimeFormat: logTimeFormat,
			TextOutput: text,
		})
	}

	l = l.WithLevelFromString(config.Level)
	l.Debug().Str("level", config.Level).Str("output", config.Output).Str("format", config.Format).Msg("Logger initialized")

	return l, nil
}
