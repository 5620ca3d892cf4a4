package cli

import (
	"context"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/gemini-vogue/internal/auth"
	"github.com/fpang/gemini-vogue/internal/transform"
)

// InitGeminiClient resolves the API key, creates a Gemini client, and (unless
// skipValidation) checks the key with a minimal request. It exits fatally on
// failure.
func InitGeminiClient(ctx context.Context, skipValidation bool) *genai.Client {
	apiKey, source, err := auth.ResolveAPIKey()
	if err != nil {
		HandleValidationError(err)
	}
	log.Debug().Str("source", string(source)).Msg("API key resolved")

	client, err := transform.NewGeminiClient(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Gemini client")
	}

	log.Info().Msg("connection successful - Gemini client initialized")

	if skipValidation {
		log.Warn().Msg("API key validation skipped")
		return client
	}

	if err := auth.ValidateAPIKey(ctx, client); err != nil {
		HandleValidationError(err)
	}

	log.Info().Msg("API key validation complete - ready for operations")

	return client
}
