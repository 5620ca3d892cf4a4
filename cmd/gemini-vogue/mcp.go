package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/gemini-vogue/internal/mcpserver"
	"github.com/fpang/gemini-vogue/internal/metrics"
	"github.com/fpang/gemini-vogue/internal/workflow"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the outfit workflow as MCP tools over stdio",
	Long: `MCP runs a Model Context Protocol server on stdin/stdout so an assistant can
upload a photo, list styles, transform the outfit, and export the look.

Logs go to stderr; stdout carries only protocol messages.`,
	Run: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) {
	// stdout belongs to the protocol.
	if cfg.MetricsEnabled {
		metrics.SetOutput(os.Stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctrl := workflow.New(newImageService(ctx), controllerOptions("mcp")...)
	server := mcpserver.New(ctrl, newValidator(), cfg.ProductName)
	if err := server.Run(ctx, "gemini-vogue", commitHash); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("MCP server failed")
	}
}
