package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiModel asks Google Gemini to describe the captured images and
// returns its answer in the fixed Output shape
type GeminiModel struct {
	apiKey      string
	model       string
	temperature float32
}

var _ Model = (*GeminiModel)(nil)

// NewGeminiModel returns a new Gemini model
func NewGeminiModel(apiKey, model string) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is not set")
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiModel{apiKey: apiKey, model: model, temperature: 0.2}, nil
}

func (g *GeminiModel) Name() string { return "gemini:" + g.model }

func (g *GeminiModel) RequiresImageData() bool { return true }

// Infer sends the images with a JSON-only prompt
func (g *GeminiModel) Infer(ctx context.Context, in Input) (Output, error) {
	if len(in.Images) == 0 {
		return Output{}, ErrNoImages
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return Output{}, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	model.SetTemperature(g.temperature)
	model.ResponseMIMEType = "application/json"

	parts := []genai.Part{genai.Text(buildPrompt(in))}
	for i, img := range in.Images {
		if len(img.Data) == 0 {
			return Output{}, fmt.Errorf("image %d has no data", i)
		}
		parts = append(parts, genai.ImageData(imageFormat(img.Data), img.Data))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return Output{}, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return Output{}, fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return Output{}, fmt.Errorf("empty content returned from Gemini")
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	return parseOutput(text.String())
}

func buildPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are assisting with a %s photo assessment. ", strings.ReplaceAll(in.SceneID, "_", " "))
	b.WriteString("Describe only what is visible. Do not diagnose.\n")
	if len(in.Fields) > 0 {
		b.WriteString("Context provided by the user:\n")
		for k, v := range in.Fields {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}
	if len(in.Findings) > 0 {
		fmt.Fprintf(&b, "Score each of these findings as a label: %s.\n", strings.Join(in.Findings, ", "))
	}
	b.WriteString(`Respond with a single JSON object:
{"labels":[{"name":"<snake_case finding>","score":<0..1>}],
 "measurements":{"<name>":<number>},
 "observations":["<short sentence>"],
 "confidence":<0..1>}`)
	return b.String()
}

// parseOutput decodes the model's JSON answer, tolerating a fenced code block
func parseOutput(text string) (Output, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var out Output
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return Output{}, fmt.Errorf("unexpected response format from Gemini: %w", err)
	}
	out.Confidence = clamp01(out.Confidence)
	for i := range out.Labels {
		out.Labels[i].Score = clamp01(out.Labels[i].Score)
	}
	return out, nil
}

// imageFormat returns the genai image format for sniffed bytes
func imageFormat(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "jpeg"
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
