package common

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "extract.log"), LogFilePath(&LoggingConfig{Directory: dir, FileName: "extract.log"}))
	assert.Equal(t, filepath.Join(dir, "snow-extractor.log"), LogFilePath(&LoggingConfig{Directory: dir}))

	execDir, _ := executableLocation()
	assert.Equal(t, filepath.Join(execDir, "logs", "x.log"), LogFilePath(&LoggingConfig{FileName: "x.log"}))
}

func TestCreateLoggerUsesConfiguredDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	l, err := createLogger(&LoggingConfig{Level: "info", Format: "json", Output: "file", Directory: dir, FileName: "run.log", MaxSize: 1, MaxBackups: 1})
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.DirExists(t, dir)

	consoleDir := filepath.Join(t.TempDir(), "unused")
	_, err = createLogger(&LoggingConfig{Level: "info", Output: "console", Directory: consoleDir})
	require.NoError(t, err)
	assert.NoDirExists(t, consoleDir)
}
