package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/gemini-vogue/internal/api"
	"github.com/fpang/gemini-vogue/internal/logging"
	"github.com/fpang/gemini-vogue/internal/session"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the outfit workflow HTTP API",
	Long: `Serve starts a local HTTP server exposing the workflow under /api. Each browser
session gets its own upload, style selection, and result.

Examples:
  gemini-vogue serve
  gemini-vogue serve --port 9090 --timeout 90s`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (default from VOGUE_PORT or 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	if cmd.Flags().Changed("port") && portFlag > 0 {
		cfg.Port = portFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := newImageService(ctx)
	registry := session.NewRegistry(svc, cfg.SessionTTL, controllerOptions("http")...)
	go registry.Run(ctx, 0)

	server := api.New(registry, api.Options{
		ProductName:        cfg.ProductName,
		MaxUploadBytes:     cfg.MaxUploadBytes(),
		AllowedOrigins:     cfg.AllowedOrigins,
		OriginVerifySecret: cfg.OriginVerifySecret,
		MetricsEnabled:     cfg.MetricsEnabled,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.NewStartupLogger("gemini-vogue-serve").
		Build(commitHash, buildTime).
		Listen(srv.Addr).
		Model(svc.Model()).
		Limits(cfg.MaxUploadBytes(), cfg.TransformTimeout).
		Sessions(cfg.SessionTTL).
		Feature("metrics", cfg.MetricsEnabled).
		Feature("originVerify", cfg.OriginVerifySecret != "").
		InitDuration(time.Since(initStart)).
		Log()

	fmt.Fprintf(os.Stderr, "\n  Gemini Vogue API: http://localhost:%d/api\n\n", cfg.Port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
