package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/gemini-vogue/internal/cli"
	"github.com/fpang/gemini-vogue/internal/workflow"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive outfit studio in the terminal",
	Long: `Shell starts an interactive session: upload a photo, try styles, hold to
compare with the original, and export the looks you like.

Examples:
  gemini-vogue shell
  gemini-vogue shell --model gemini-3-pro-image-preview`,
	Run: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctrl := workflow.New(newImageService(ctx), controllerOptions("shell")...)
	sh := cli.NewShell(ctrl, newValidator(), cfg.ProductName, os.Stdin, os.Stdout)
	if err := sh.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Shell failed")
	}
}
