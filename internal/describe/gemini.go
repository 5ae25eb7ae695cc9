package describe

import (
	"context"
	"fmt"

	"plant-keeper/internal/config"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// geminiGenerator produces descriptions with the Google Gemini API. It is the
// alternative Generator used when GEMINI_API_KEY is configured.
type geminiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiGenerator creates a Gemini-backed Generator.
func NewGeminiGenerator(ctx context.Context, cfg *config.Config) (Generator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := client.GenerativeModel("gemini-pro")
	return &geminiGenerator{client: client, model: model}, nil
}

// Describe asks the model for a short care description of the plant.
func (g *geminiGenerator) Describe(ctx context.Context, plantName string) (string, error) {
	prompt := fmt.Sprintf("Write a short care description (2-3 sentences) for the plant %q. "+
		"Mention light, watering and soil. Plain text only.", plantName)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate description: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no description generated")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("generated content is not text")
	}
	return string(text), nil
}
