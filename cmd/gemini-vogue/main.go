package main

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/gemini-vogue/internal/cli"
	"github.com/fpang/gemini-vogue/internal/config"
	"github.com/fpang/gemini-vogue/internal/logging"
	"github.com/fpang/gemini-vogue/internal/media"
	"github.com/fpang/gemini-vogue/internal/metrics"
	"github.com/fpang/gemini-vogue/internal/style"
	"github.com/fpang/gemini-vogue/internal/transform"
	"github.com/fpang/gemini-vogue/internal/workflow"
)

// CLI flags shared by every subcommand.
var (
	modelFlag          string
	timeoutFlag        string
	maxUploadMBFlag    int
	skipValidationFlag bool
)

// cfg is loaded once in PersistentPreRun, with flag overrides applied.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "gemini-vogue",
	Short: "AI outfit transformation - restyle the clothing in a photo",
	Long: `Gemini Vogue takes a photo of a person and regenerates their outfit in a preset
or free-text style while keeping their face, pose, and background.

Examples:
  gemini-vogue serve --port 9090
  gemini-vogue shell
  gemini-vogue transform --photo me.jpg --style cyberpunk --out ./looks
  gemini-vogue transform -p me.jpg --prompt "a yellow raincoat"
  gemini-vogue styles
  gemini-vogue mcp`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
		cfg = loadConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Gemini image model (default from GEMINI_IMAGE_MODEL or "+config.DefaultImageModel+")")
	rootCmd.PersistentFlags().StringVar(&timeoutFlag, "timeout", "", "Per-transformation timeout, e.g. 90s (default 120s)")
	rootCmd.PersistentFlags().IntVar(&maxUploadMBFlag, "max-upload-mb", 0, "Upload size limit in MB (default 4)")
	rootCmd.PersistentFlags().BoolVar(&skipValidationFlag, "skip-validation", false, "Skip the API key check at startup")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies explicitly set flags on top.
func loadConfig(cmd *cobra.Command) *config.Config {
	c := config.Load()
	flags := cmd.Flags()

	if flags.Changed("model") && modelFlag != "" {
		c.ImageModel = modelFlag
	}
	if flags.Changed("timeout") {
		d, ok := config.ParseDuration(timeoutFlag)
		if !ok {
			log.Fatal().Str("timeout", timeoutFlag).Msg("Invalid --timeout; use a duration like 90s")
		}
		c.TransformTimeout = d
	}
	if flags.Changed("max-upload-mb") && maxUploadMBFlag > 0 {
		c.MaxUploadMB = maxUploadMBFlag
	}

	metrics.SetNamespace(c.MetricsNamespace)
	if !c.MetricsEnabled {
		metrics.SetOutput(io.Discard)
	}

	log.Debug().
		Str("model", c.ImageModel).
		Dur("timeout", c.TransformTimeout).
		Int("max_upload_mb", c.MaxUploadMB).
		Bool("metrics", c.MetricsEnabled).
		Msg("Configuration loaded")
	return c
}

// newImageService connects to Gemini and returns the transformation service.
func newImageService(ctx context.Context) *transform.GeminiService {
	client := cli.InitGeminiClient(ctx, skipValidationFlag)
	return transform.NewGeminiService(client, cfg.ImageModel, style.SystemInstruction)
}

func newValidator() *media.Validator {
	return media.NewValidator(cfg.MaxUploadBytes())
}

func controllerOptions(name string) []workflow.Option {
	return []workflow.Option{
		workflow.WithTimeout(cfg.TransformTimeout),
		workflow.WithName(name),
	}
}
