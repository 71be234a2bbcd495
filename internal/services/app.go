package services

import (
	"github.com/ternarybob/arbor"

	. "snow-extractor/internal/common"
	"snow-extractor/internal/interfaces"
)

// App wires the extraction pipeline for the CLI and the web server
type App struct {
	Config    *Config
	Storage   interfaces.Storage
	Settings  *SettingsService
	Client    *ServiceNowClient
	Extractor *Extractor
	logger    arbor.ILogger
}

// NewApp opens storage and builds every service from configuration
func NewApp(cfg *Config, logger arbor.ILogger) (*App, error) {
	store, err := NewStorage(&cfg.Storage)
	if err != nil {
		return nil, err
	}

	settings := NewSettingsService(store, logger)
	client := NewServiceNowClient(cfg, logger)
	dom := NewDOMExtractor(logger, cfg.DOM.Enhanced)
	exporter := NewWorkbookExporter(&cfg.Export, NewExcelWriter(), logger)
	extractor := NewExtractor(dom, client, settings, store, exporter, NewLogReporter(logger), logger)

	return &App{
		Config:    cfg,
		Storage:   store,
		Settings:  settings,
		Client:    client,
		Extractor: extractor,
		logger:    logger,
	}, nil
}

// PageSource returns a file source when path is set, else the browser source
func (a *App) PageSource(path, url string) interfaces.PageSource {
	if path != "" {
		return NewFilePageSource(path, url, a.Config.Instance.SessionToken)
	}
	return NewBrowserPageSource(a.Config, a.logger)
}

// Close releases storage
func (a *App) Close() error {
	return a.Storage.Close()
}
