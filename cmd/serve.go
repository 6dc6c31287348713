package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/helmcode/cropdoc/pkg/config"
	"github.com/helmcode/cropdoc/pkg/metrics"
	"github.com/helmcode/cropdoc/pkg/thumbnail"
	"github.com/helmcode/cropdoc/pkg/web"
	"github.com/helmcode/cropdoc/pkg/workflow"
)

const (
	sessionIdle   = 30 * time.Minute
	pruneInterval = 5 * time.Minute
)

var serveCompress bool

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the browser-facing diagnosis API",
		Long: `Serve a JSON API that runs the same analysis workflow as the CLI, one
workflow per browser session.

Examples:
  # Front the service configured in ~/.cropdoc.yaml
  cropdoc serve

  # Against the simulated backend
  cropdoc stub-backend --addr :8000 &
  cropdoc serve --addr :8080 --api-url http://localhost:8000`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default :8080)")
	cmd.Flags().Int("rate-limit", 0, "Requests per minute per client IP (default 30)")
	cmd.Flags().BoolVar(&serveCompress, "compress", false, "Downscale uploads before forwarding them")
	_ = v.BindPFlag(config.KeyServeAddr, cmd.Flags().Lookup("addr"))
	_ = v.BindPFlag(config.KeyRateLimit, cmd.Flags().Lookup("rate-limit"))

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := config.SetupLogging(os.Stderr, settings.LogLevel, true); err != nil {
		return err
	}
	gin.SetMode(gin.ReleaseMode)
	metrics.Register()

	svc, err := newService()
	if err != nil {
		return err
	}

	srv := web.New(svc, web.Config{
		RequestsPerMinute: v.GetInt(config.KeyRateLimit),
		Compress:          serveCompress,
		Workflow: workflow.Options{
			StatusInterval:   settings.StatusInterval,
			Thumbnails:       thumbnail.NewLoader(settings.Timeout),
			Predictor:        newPredictor(),
			PredictThreshold: settings.ModelThreshold,
		},
	})

	go func() {
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-cmd.Context().Done():
				return
			case <-ticker.C:
				if n := srv.Prune(sessionIdle); n > 0 {
					log.WithField("sessions", n).Info("pruned idle sessions")
				}
			}
		}
	}()

	log.WithFields(log.Fields{
		"addr":    v.GetString(config.KeyServeAddr),
		"backend": settings.BaseURL,
		"variant": settings.Variant,
	}).Info("starting diagnosis API")
	return listenAndServe(cmd.Context(), v.GetString(config.KeyServeAddr), srv.Router())
}

// listenAndServe runs handler until ctx is cancelled, then shuts down
// gracefully.
func listenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server on %s: %w", addr, err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
