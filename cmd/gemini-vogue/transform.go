package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/gemini-vogue/internal/cli"
	"github.com/fpang/gemini-vogue/internal/media"
	"github.com/fpang/gemini-vogue/internal/style"
	"github.com/fpang/gemini-vogue/internal/view"
	"github.com/fpang/gemini-vogue/internal/workflow"
)

var (
	photoFlag  string
	styleFlag  string
	promptFlag string
	outFlag    string
	bundleFlag bool
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Restyle one photo and save the result",
	Long: `Transform runs a single outfit transformation and writes the exported image
(or a zip bundle with the original and look.json) to the output directory.

Examples:
  gemini-vogue transform --photo me.jpg --style gala
  gemini-vogue transform -p me.png --prompt "a green velvet suit" -o ./looks --bundle`,
	Run: runTransform,
}

func init() {
	transformCmd.Flags().StringVarP(&photoFlag, "photo", "p", "", "Photo to transform (JPEG, PNG, or WebP)")
	transformCmd.Flags().StringVarP(&styleFlag, "style", "s", "", "Preset style id (see: gemini-vogue styles)")
	transformCmd.Flags().StringVar(&promptFlag, "prompt", "", "Free-text outfit description instead of a preset")
	transformCmd.Flags().StringVarP(&outFlag, "out", "o", ".", "Output directory")
	transformCmd.Flags().BoolVar(&bundleFlag, "bundle", false, "Write a zip bundle instead of a single image")
	transformCmd.MarkFlagRequired("photo")
	transformCmd.MarkFlagsMutuallyExclusive("style", "prompt")
	transformCmd.MarkFlagsOneRequired("style", "prompt")
	rootCmd.AddCommand(transformCmd)
}

func runTransform(cmd *cobra.Command, args []string) {
	var req style.Request
	var err error
	if promptFlag != "" {
		req, err = style.NewCustomRequest(promptFlag)
	} else {
		req, err = style.NewPresetRequest(styleFlag)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid style")
	}

	path, err := cli.ResolvePhotoPath(photoFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid photo")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctrl := workflow.New(newImageService(ctx), controllerOptions("transform")...)

	u, closer, err := media.OpenUpload(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open photo")
	}
	err = ctrl.Accept(newValidator(), u)
	closer.Close()
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg(ctrl.Snapshot().Message)
	}

	fmt.Fprintf(os.Stderr, "%s\n", workflow.MsgProcessing)
	start := time.Now()
	st, err := ctrl.RequestTransformation(ctx, req.Prompt(), req.StyleID())
	if err != nil {
		if errors.Is(err, workflow.ErrTransformationFailed) {
			log.Fatal().Err(err).Msg(workflow.MsgTransformFailed)
		}
		log.Fatal().Err(err).Msg("Transformation did not complete")
	}

	export := view.Export
	if bundleFlag {
		export = view.ExportBundle
	}
	a, err := export(st, cfg.ProductName, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}
	out, err := a.Save(outFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	log.Info().
		Str("style_id", req.StyleID()).
		Str("path", out).
		Str("elapsed", cli.FormatDurationShort(time.Since(start))).
		Msg("Look saved")
	fmt.Println(out)
}
