package transform

import "os"

// Gemini image model IDs.
//
// | Model Name              | API Model ID                          |
// |-------------------------|---------------------------------------|
// | Gemini 2.5 Flash Image  | gemini-2.5-flash-image                |
// | Gemini 2.5 Flash Image  | gemini-2.5-flash-image-preview        |
// | Gemini 3 Pro Image      | gemini-3-pro-image-preview            |
const (
	// ModelGemini25FlashImage is the stable, fast image editing model.
	ModelGemini25FlashImage = "gemini-2.5-flash-image"

	// ModelGemini25FlashImagePreview is the preview alias of the same model.
	ModelGemini25FlashImagePreview = "gemini-2.5-flash-image-preview"

	// ModelGemini3ProImage is for advanced image generation/edit.
	ModelGemini3ProImage = "gemini-3-pro-image-preview"

	// ModelValidation is the cheap text model used to check an API key.
	ModelValidation = "gemini-2.5-flash"
)

// DefaultImageModel is used when GEMINI_IMAGE_MODEL is not set.
const DefaultImageModel = ModelGemini25FlashImage

// GetImageModel returns the image model, resolved from:
// 1. GEMINI_IMAGE_MODEL environment variable (if set)
// 2. Default: gemini-2.5-flash-image
func GetImageModel() string {
	if env := os.Getenv("GEMINI_IMAGE_MODEL"); env != "" {
		return env
	}
	return DefaultImageModel
}
