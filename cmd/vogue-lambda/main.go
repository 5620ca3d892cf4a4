// Command vogue-lambda serves the outfit workflow API behind API Gateway (HTTP API, payload v2).
//
// Sessions live in the warm container's memory, so the function should run
// with reserved concurrency of 1 for a consistent session view.
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-vogue/internal/api"
	"github.com/fpang/gemini-vogue/internal/auth"
	"github.com/fpang/gemini-vogue/internal/config"
	"github.com/fpang/gemini-vogue/internal/lambdaboot"
	"github.com/fpang/gemini-vogue/internal/logging"
	"github.com/fpang/gemini-vogue/internal/metrics"
	"github.com/fpang/gemini-vogue/internal/session"
	"github.com/fpang/gemini-vogue/internal/style"
	"github.com/fpang/gemini-vogue/internal/transform"
	"github.com/fpang/gemini-vogue/internal/workflow"
)

var (
	commitHash = "dev"
	buildTime  = "unknown"
)

var handler *api.Server

func init() {
	initStart := time.Now()
	logging.Init()

	cfg := config.FromEnv()
	metrics.SetNamespace(cfg.MetricsNamespace)

	clients := lambdaboot.InitAWS()
	param, err := lambdaboot.LoadGeminiKey(context.Background(), clients.SSM)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load Gemini API key")
	}

	apiKey, err := auth.GetAPIKey()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get API key")
	}
	client, err := transform.NewGeminiClient(context.Background(), apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	svc := transform.NewGeminiService(client, cfg.ImageModel, style.SystemInstruction)

	registry := session.NewRegistry(svc, cfg.SessionTTL,
		workflow.WithTimeout(cfg.TransformTimeout),
		workflow.WithName("lambda"),
	)
	// A frozen container pauses the sweep until the next invocation.
	go registry.Run(context.Background(), 0)

	if cfg.OriginVerifySecret == "" {
		log.Warn().Msg("ORIGIN_VERIFY_SECRET not set, origin verification disabled")
	}

	handler = api.New(registry, api.Options{
		ProductName:        cfg.ProductName,
		MaxUploadBytes:     cfg.MaxUploadBytes(),
		AllowedOrigins:     cfg.AllowedOrigins,
		OriginVerifySecret: cfg.OriginVerifySecret,
		MetricsEnabled:     true,
	})

	startup := lambdaboot.StartupLog("vogue-lambda", initStart).
		Build(commitHash, buildTime).
		Model(svc.Model()).
		Limits(cfg.MaxUploadBytes(), cfg.TransformTimeout).
		Sessions(cfg.SessionTTL).
		Feature("originVerify", cfg.OriginVerifySecret != "")
	if param != "" {
		startup.Secret("geminiApiKey", "ssm:"+param)
	} else {
		startup.Secret("geminiApiKey", "env")
	}
	startup.Log()
}

func main() {
	adapter := httpadapter.NewV2(handler.Handler())
	lambda.Start(adapter.ProxyWithContext)
}
