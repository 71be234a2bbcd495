package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"snow-extractor/internal/common"
	"snow-extractor/internal/handlers"
	"snow-extractor/internal/interfaces"
	"snow-extractor/internal/middleware"
)

// webServer exposes the operator commands over HTTP and streams status
// lines over a WebSocket
type webServer struct {
	config      *common.Config
	server      *http.Server
	logger      arbor.ILogger
	apiHandlers *handlers.APIHandlers
	wsHub       *handlers.WebSocketHub
	running     bool
	startTime   time.Time
}

// NewWebServer creates a new web server instance. Extractor status lines are
// reported to the log and to WebSocket clients.
func NewWebServer(cfg *common.Config, storage interfaces.Storage, extractor *Extractor, logger arbor.ILogger) (interfaces.WebService, error) {
	mux := http.NewServeMux()

	assessor := NewPageAssessor(logger)

	wsHub := handlers.NewWebSocketHub(logger)
	extractor.SetReporter(NewMultiReporter(NewLogReporter(logger), wsHub))

	apiHandlers := handlers.NewAPIHandlers(cfg, storage, extractor, extractor.Settings(), assessor, logger, wsHub)

	ws := &webServer{
		config:      cfg,
		logger:      logger,
		apiHandlers: apiHandlers,
		wsHub:       wsHub,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Extractor.Port),
			Handler: mux,
		},
	}

	logMiddleware := middleware.Logging(logger)
	corsMiddleware := middleware.CORS(cfg.Instance.BaseURL)

	routes := map[string]http.HandlerFunc{
		"/health":        apiHandlers.HealthHandler,
		"/version":       apiHandlers.VersionHandler,
		"/status":        apiHandlers.StatusHandler,
		"/catalog":       apiHandlers.CatalogHandler,
		"/extract/view":  apiHandlers.ExtractViewHandler,
		"/extract/query": apiHandlers.ExtractQueryHandler,
		"/export":        apiHandlers.ExportHandler,
		"/clear":         apiHandlers.ClearHandler,
		"/tickets":       apiHandlers.TicketsHandler,
		"/settings":      apiHandlers.SettingsHandler,
		"/filters":       apiHandlers.FiltersHandler,
		"/assess":        apiHandlers.AssessHandler,
	}
	for path, handler := range routes {
		mux.HandleFunc(path, logMiddleware(corsMiddleware(handler)))
	}

	mux.HandleFunc("/ws", corsMiddleware(wsHub.WebSocketHandler))

	return ws, nil
}

// Start starts the web server
func (ws *webServer) Start(ctx context.Context) error {
	ws.running = true
	ws.startTime = time.Now()

	go func() {
		ws.logger.Info().Int("port", ws.config.Extractor.Port).Msg("Starting web server")
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Error().Err(err).Msg("Web server error")
		}
	}()
	return nil
}

// Stop stops the web server
func (ws *webServer) Stop() error {
	ws.running = false
	ws.wsHub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws.logger.Info().Msg("Shutting down web server")
	return ws.server.Shutdown(ctx)
}

// IsRunning returns true if the web server is running
func (ws *webServer) IsRunning() bool {
	return ws.running
}
