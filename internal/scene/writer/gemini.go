package writer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"directorscut/internal/domain/scene"
	"directorscut/internal/scene/classify"
)

const defaultGeminiModel = "gemini-1.5-flash"

// Gemini writes scenes with the Gemini API. A client is created per request
// because the key is read per request.
type Gemini struct {
	model string
}

func NewGemini(model string) *Gemini {
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{model: model}
}

func (g *Gemini) Name() string { return BackendGemini }

func (g *Gemini) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.APIKey == "" {
		return nil, scene.NewError(scene.ErrMissingCredential, "gemini", fmt.Errorf("no API key"))
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(req.APIKey))
	if err != nil {
		return nil, classify.Google("gemini", fmt.Errorf("failed to create client: %w", err))
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	model.SetTemperature(req.Temperature)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.SystemInstruction)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.UserContent))
	if err != nil {
		return nil, classify.Google("gemini", err)
	}

	text := responseText(resp)
	logrus.WithFields(logrus.Fields{
		"model":  g.model,
		"length": len(text),
	}).Debug("Gemini scene generated")

	return &Result{Text: text}, nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}
