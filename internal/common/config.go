package common

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Extractor ExtractorConfig `toml:"extractor"`
	Instance  InstanceConfig  `toml:"instance"`
	API       APIConfig       `toml:"api"`
	Browser   BrowserConfig   `toml:"browser"`
	DOM       DOMConfig       `toml:"dom"`
	Export    ExportConfig    `toml:"export"`
	Storage   StorageConfig   `toml:"storage"`
	Logging   LoggingConfig   `toml:"logging"`
}

type ExtractorConfig struct {
	Name        string `toml:"name"`
	Environment string `toml:"environment"`
	Port        int    `toml:"port"`
}

// InstanceConfig identifies the host instance and the ambient session to reuse
type InstanceConfig struct {
	BaseURL      string `toml:"base_url"`
	SessionToken string `toml:"session_token"`
	Cookie       string `toml:"cookie"`
	UserAgent    string `toml:"user_agent"`
}

type APIConfig struct {
	TimeoutSeconds       int      `toml:"timeout_seconds"`
	BackoffMillis        int      `toml:"backoff_ms"`
	MaxLimit             int      `toml:"max_limit"`
	DisplayValue         string   `toml:"display_value"`
	ExcludeReferenceLink bool     `toml:"exclude_reference_link"`
	Shapes               []string `toml:"shapes"`
}

type BrowserConfig struct {
	RemoteDebugPort int    `toml:"remote_debug_port"`
	PageURL         string `toml:"page_url"`
	WaitMillis      int    `toml:"wait_ms"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

type DOMConfig struct {
	Enhanced bool `toml:"enhanced"`
}

type ExportConfig struct {
	Directory string `toml:"directory"`
	Prefix    string `toml:"prefix"`
	SheetName string `toml:"sheet_name"`
	Summary   bool   `toml:"summary"`
}

type StorageConfig struct {
	DatabasePath string `toml:"database_path"`
}

type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Output     string `toml:"output"`
	Directory  string `toml:"directory"`
	FileName   string `toml:"file_name"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
}

// Endpoint shape names accepted in [api] shapes
const (
	ShapeTable     = "table"
	ShapeLegacy    = "legacy"
	ShapeVersioned = "versioned"
)

func DefaultConfig() *Config {
	execDir, execName := executableLocation()

	return &Config{
		Extractor: ExtractorConfig{
			Name:        execName,
			Environment: "development",
			Port:        8085,
		},
		Instance: InstanceConfig{
			UserAgent: "snow-extractor/" + GetVersion(),
		},
		API: APIConfig{
			TimeoutSeconds:       30,
			BackoffMillis:        1000,
			MaxLimit:             500,
			DisplayValue:         "all",
			ExcludeReferenceLink: true,
			Shapes:               []string{ShapeTable, ShapeLegacy, ShapeVersioned},
		},
		Browser: BrowserConfig{
			RemoteDebugPort: 9222,
			WaitMillis:      0,
			TimeoutSeconds:  45,
		},
		DOM: DOMConfig{
			Enhanced: true,
		},
		Export: ExportConfig{
			Directory: ".",
			Prefix:    "servicenow",
			SheetName: "ServiceNow Tickets",
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join(execDir, "data", execName+".db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "both",
			Directory:  filepath.Join(execDir, "logs"),
			FileName:   execName + ".log",
			MaxSize:    100,
			MaxBackups: 3,
		},
	}
}

func executableLocation() (string, string) {
	execPath, err := os.Executable()
	if err != nil {
		return ".", "snow-extractor"
	}
	execName := filepath.Base(execPath)
	execName = execName[:len(execName)-len(filepath.Ext(execName))]
	return filepath.Dir(execPath), execName
}

func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	if configFile == "" {
		execDir, execName := executableLocation()

		possiblePaths := []string{
			filepath.Join(execDir, execName+".toml"),
			filepath.Join(execDir, "config.toml"),
			"config.toml",
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if baseURL := os.Getenv("SN_BASE_URL"); baseURL != "" {
		config.Instance.BaseURL = baseURL
	}
	if token := os.Getenv("SN_SESSION_TOKEN"); token != "" {
		config.Instance.SessionToken = token
	}
	if cookie := os.Getenv("SN_COOKIE"); cookie != "" {
		config.Instance.Cookie = cookie
	}

	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		config.Storage.DatabasePath = dbPath
	}
	if exportDir := os.Getenv("EXPORT_DIR"); exportDir != "" {
		config.Export.Directory = exportDir
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}
	if logOutput := os.Getenv("LOG_OUTPUT"); logOutput != "" {
		config.Logging.Output = logOutput
	}
	if logDir := os.Getenv("LOG_DIR"); logDir != "" {
		config.Logging.Directory = logDir
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		if portNum, err := strconv.Atoi(port); err == nil {
			config.Extractor.Port = portNum
		}
	}
}

func (c *Config) Validate() error {
	if c.Storage.DatabasePath == "" {
		return NewConfigurationError("missing_database_path", "storage database_path is required")
	}

	if c.Extractor.Port <= 0 {
		c.Extractor.Port = 8085
	}

	if c.Instance.BaseURL != "" {
		u, err := url.Parse(c.Instance.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return NewConfigurationError("invalid_base_url", "instance base_url must be an absolute URL").
				WithContext("base_url", c.Instance.BaseURL)
		}
		c.Instance.BaseURL = strings.TrimRight(c.Instance.BaseURL, "/")
	}

	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = 30
	}
	if c.API.BackoffMillis < 0 {
		c.API.BackoffMillis = 0
	}
	if c.API.MaxLimit <= 0 || c.API.MaxLimit > 1000 {
		c.API.MaxLimit = 500
	}
	if len(c.API.Shapes) == 0 {
		return NewConfigurationError("no_api_shapes", "api shapes must list at least one endpoint shape")
	}
	for _, shape := range c.API.Shapes {
		switch shape {
		case ShapeTable, ShapeLegacy, ShapeVersioned:
		default:
			return NewConfigurationError("invalid_api_shape", fmt.Sprintf("unknown api shape: %s", shape))
		}
	}
	switch c.API.DisplayValue {
	case "", "true", "false", "all":
	default:
		return NewConfigurationError("invalid_display_value", fmt.Sprintf("invalid api display_value: %s", c.API.DisplayValue))
	}

	if c.Export.Prefix == "" {
		c.Export.Prefix = "servicenow"
	}
	if c.Export.SheetName == "" {
		c.Export.SheetName = "ServiceNow Tickets"
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	validLevel := false
	for _, level := range validLogLevels {
		if c.Logging.Level == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return NewConfigurationError("invalid_log_level", fmt.Sprintf("invalid log level: %s", c.Logging.Level))
	}

	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.FileName == "" {
		c.Logging.FileName = "snow-extractor.log"
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return NewConfigurationError("invalid_log_format", fmt.Sprintf("invalid log format: %s", c.Logging.Format))
	}

	validOutputs := []string{"console", "file", "both"}
	validOutput := false
	for _, output := range validOutputs {
		if c.Logging.Output == output {
			validOutput = true
			break
		}
	}
	if !validOutput {
		return NewConfigurationError("invalid_log_output", fmt.Sprintf("invalid log output: %s", c.Logging.Output))
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Extractor.Environment == "production"
}
