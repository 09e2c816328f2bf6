// Package briefing turns a site's daily summaries into a short operator
// briefing using OpenAI. It is strictly optional: the engine produces and
// stores every result without it.
package briefing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/orcamet/riskengine/internal/models"
)

type Generator struct {
	client openai.Client
	model  string
}

// NewGenerator reads OPENAI_API_KEY for authentication.
func NewGenerator() (*Generator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &Generator{
		client: client,
		model:  openai.ChatModelGPT4oMini,
	}, nil
}

const systemPrompt = `You write one-paragraph weather briefings for rope-access work planners.
Be factual and direct. Lead with the overall recommendation, name the governing
weather factor per day, and never invent values not present in the data.`

// BuildPrompt renders the summaries into the user prompt. Split out so the
// rendering is testable without an API call.
func BuildPrompt(siteName string, summaries []models.DailySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Site: %s\n\nDaily forecast summaries:\n", siteName)
	for _, s := range summaries {
		fmt.Fprintf(&b, "- %s: %s, peak risk %.0f%%, peak wind %.1f m/s, peak gust %.1f m/s, peak precip %.1f mm/h, min temp %.1f°C\n",
			s.Date.Format("Mon 2 Jan"), s.Recommendation, s.PeakRisk, s.PeakWind, s.PeakGust, s.PeakPrecip, s.MinTemp)
	}
	b.WriteString("\nWrite the briefing.")
	return b.String()
}

// Generate produces the briefing text for a site's summaries.
func (g *Generator) Generate(ctx context.Context, siteName string, summaries []models.DailySummary) (string, error) {
	if len(summaries) == 0 {
		return "", errors.New("no daily summaries to brief")
	}

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(BuildPrompt(siteName, summaries)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("briefing generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion returned")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
