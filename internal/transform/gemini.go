package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/gemini-vogue/internal/media"
)

// Errors for responses that carry no usable image.
var (
	ErrNoImage = errors.New("no image returned in response")
	ErrBlocked = errors.New("request blocked by safety filters")
)

// NewGeminiClient creates a genai client for the Gemini Developer API.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// GeminiService edits photos with a Gemini image model.
type GeminiService struct {
	client            *genai.Client
	model             string
	systemInstruction string
}

// NewGeminiService creates a Service backed by the given client. An empty
// model selects GetImageModel().
func NewGeminiService(client *genai.Client, model, systemInstruction string) *GeminiService {
	if model == "" {
		model = GetImageModel()
	}
	return &GeminiService{
		client:            client,
		model:             model,
		systemInstruction: systemInstruction,
	}
}

// Model returns the model ID used for transformations.
func (s *GeminiService) Model() string {
	return s.model
}

// Transform sends the photo and prompt to Gemini and returns the first image
// in the response.
func (s *GeminiService) Transform(ctx context.Context, img media.Image, prompt string) (media.Image, error) {
	start := time.Now()
	log.Info().
		Str("model", s.model).
		Int("image_bytes", len(img.Data)).
		Str("image_mime", img.MIMEType).
		Int("prompt_length", len(prompt)).
		Msg("Sending image to Gemini for outfit transformation")

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data, img.MIMEType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	if s.systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(s.systemInstruction, genai.RoleUser)
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		return media.Image{}, fmt.Errorf("gemini generate content: %w", err)
	}

	out, err := extractImage(resp)
	if err != nil {
		return media.Image{}, err
	}

	log.Info().
		Int("output_bytes", len(out.Data)).
		Str("output_mime", out.MIMEType).
		Dur("duration", time.Since(start)).
		Msg("Gemini outfit transformation complete")

	return out, nil
}

// extractImage returns the first inline image across all candidates.
func extractImage(resp *genai.GenerateContentResponse) (media.Image, error) {
	if resp == nil {
		return media.Image{}, ErrNoImage
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return media.Image{}, fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}

	var text strings.Builder
	var finish genai.FinishReason
	for _, candidate := range resp.Candidates {
		if candidate == nil {
			continue
		}
		if finish == "" {
			finish = candidate.FinishReason
		}
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mimeType := part.InlineData.MIMEType
				if mimeType == "" {
					mimeType = media.DefaultMIMEType
				}
				return media.Image{Data: part.InlineData.Data, MIMEType: mimeType}, nil
			}
			text.WriteString(part.Text)
		}
	}

	if finish == genai.FinishReasonSafety || finish == genai.FinishReasonProhibitedContent {
		return media.Image{}, fmt.Errorf("%w: finish reason %s", ErrBlocked, finish)
	}
	return media.Image{}, fmt.Errorf("%w (finish: %s, text: %s)", ErrNoImage, finish, truncateString(text.String(), 200))
}

// truncateString keeps at most maxLen bytes of s without splitting a rune,
// appending "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
