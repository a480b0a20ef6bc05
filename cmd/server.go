package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wavscribe/clipboard"
	"wavscribe/config"
	"wavscribe/handlers"
	"wavscribe/metrics"
	"wavscribe/middleware"
	"wavscribe/progress"
	"wavscribe/services"
	"wavscribe/websocket"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload page",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			config.Set("server_port", servePort)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return StartWebServer(ctx, config.GetServerPort())
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", config.DefaultServerPort, "port to listen on")
}

// Services bundles what the router needs
type Services struct {
	Page    services.Page
	Hub     websocket.Hub
	Metrics *metrics.Metrics
}

// NewServices builds the page and its collaborators. Uploads go to the
// endpoint configured at the time each upload starts.
func NewServices(ctx context.Context, clip clipboard.Writer) *Services {
	hub := websocket.NewHub()
	go hub.Run(ctx)

	m := metrics.New()
	page := services.NewPage(ctx, services.PageConfig{
		Files:       services.NewFileService(),
		Previews:    services.NewPreviewRegistry(),
		Transcript:  services.NewTranscript(clip),
		NewUploader: newConfiguredUploader,
		Hub:         hub,
		Metrics:     m,
	})

	return &Services{Page: page, Hub: hub, Metrics: m}
}

func newConfiguredUploader() services.Uploader {
	return services.NewUploader(
		config.GetUploadEndpoint(),
		services.WithHTTPClient(&http.Client{Timeout: config.GetUploadTimeout()}),
		services.WithEstimatorOptions(progress.WithSmoothing(config.GetSmoothing())),
	)
}

// StartWebServer serves the page on port until ctx is done
func StartWebServer(ctx context.Context, port int) error {
	gin.SetMode(config.GetGinMode())

	svc := NewServices(ctx, clipboard.New(os.Stdout))
	router := NewRouter(svc, slog.Default())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("wavscribe web server starting", "port", port, "endpoint", config.GetUploadEndpoint())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// NewRouter configures the middleware and routes of the page server
func NewRouter(svc *Services, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(config.GetCORSOrigins()))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Security())

	setupRoutes(r, svc)
	return r
}

// setupRoutes configures all the HTTP routes
func setupRoutes(r *gin.Engine, svc *Services) {
	pageHandler := handlers.NewPageHandler(svc.Page)
	selectionHandler := handlers.NewSelectionHandler(svc.Page)
	previewHandler := handlers.NewPreviewHandler(svc.Page)
	uploadHandler := handlers.NewUploadHandler(svc.Page, svc.Hub)
	transcriptHandler := handlers.NewTranscriptHandler(svc.Page, svc.Metrics)
	healthHandler := handlers.NewHealthHandler("wavscribe")
	settingsHandler := handlers.NewSettingsHandler()

	r.GET("/", pageHandler.Index)
	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/metrics", gin.WrapH(svc.Metrics.Handler()))

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/status", healthHandler.APIStatus)
		apiGroup.GET("/state", pageHandler.GetState)

		selectionGroup := apiGroup.Group("/selection")
		{
			selectionGroup.GET("", selectionHandler.GetSelection)
			selectionGroup.POST("", selectionHandler.SelectFiles)
			selectionGroup.DELETE("", selectionHandler.ClearSelection)
		}

		apiGroup.GET("/previews/:id", previewHandler.StreamPreview)

		uploadsGroup := apiGroup.Group("/uploads")
		{
			uploadsGroup.POST("", uploadHandler.StartUpload)
			uploadsGroup.GET("", uploadHandler.GetAllUploads)
			uploadsGroup.GET("/:uploadId", uploadHandler.GetUpload)
		}

		wsGroup := apiGroup.Group("/ws")
		{
			wsGroup.GET("/uploads/:uploadId", uploadHandler.HandleWebSocketConnection)
			wsGroup.GET("/uploads", uploadHandler.HandleWebSocketAllConnection)
		}

		transcriptGroup := apiGroup.Group("/transcript")
		{
			transcriptGroup.GET("", transcriptHandler.GetTranscript)
			transcriptGroup.PUT("", transcriptHandler.UpdateTranscript)
			transcriptGroup.POST("/copy", transcriptHandler.CopyTranscript)
		}

		apiGroup.GET("/settings", settingsHandler.GetSettings)
		apiGroup.POST("/settings", settingsHandler.UpdateSettings)
	}
}
