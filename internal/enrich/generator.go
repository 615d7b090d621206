package enrich

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/pkg/anthropic"
	"github.com/sells-group/leadgen-cli/pkg/gemini"
	"github.com/sells-group/leadgen-cli/pkg/microlink"
)

// Generator produces pitch text from a prompt and an optional screenshot.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string, shot *microlink.Screenshot) (string, error)
}

// GeminiGenerator generates pitches with Gemini.
type GeminiGenerator struct {
	client gemini.Client
}

// NewGeminiGenerator creates a GeminiGenerator.
func NewGeminiGenerator(client gemini.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

// Name implements Generator.
func (g *GeminiGenerator) Name() string { return "Gemini" }

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, shot *microlink.Screenshot) (string, error) {
	req := gemini.GenerateRequest{Prompt: prompt, JSON: true}
	if shot != nil {
		req.Images = []gemini.Image{{MIMEType: shot.MIMEType, Data: shot.Data}}
	}
	resp, err := g.client.Generate(ctx, req)
	if err != nil {
		return "", eris.Wrap(err, "pitch: gemini")
	}
	return resp.Text, nil
}

// ClaudeGenerator generates pitches with an Anthropic model.
type ClaudeGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewClaudeGenerator creates a ClaudeGenerator.
func NewClaudeGenerator(client anthropic.Client, model string, maxTokens int) *ClaudeGenerator {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &ClaudeGenerator{client: client, model: model, maxTokens: int64(maxTokens)}
}

// Name implements Generator.
func (g *ClaudeGenerator) Name() string { return "Claude" }

// Generate implements Generator.
func (g *ClaudeGenerator) Generate(ctx context.Context, prompt string, shot *microlink.Screenshot) (string, error) {
	msg := anthropic.Message{Role: "user", Content: prompt}
	if shot != nil {
		msg.Images = []anthropic.Image{{MediaType: shot.MIMEType, Data: shot.Data}}
	}
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages:  []anthropic.Message{msg},
	})
	if err != nil {
		return "", eris.Wrap(err, "pitch: claude")
	}
	resp.Usage.LogCost(g.model, StepPitch)
	return resp.Text(), nil
}
