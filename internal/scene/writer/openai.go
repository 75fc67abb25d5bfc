package writer

import (
	"context"
	"fmt"
	"math"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"directorscut/internal/domain/scene"
	"directorscut/internal/scene/classify"
)

const defaultOpenAIModel = openai.GPT4oMini

// OpenAI writes scenes with the Chat Completions API.
type OpenAI struct {
	model   string
	baseURL string
}

// NewOpenAI creates the backend. An empty baseURL targets api.openai.com.
func NewOpenAI(model, baseURL string) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{model: model, baseURL: baseURL}
}

func (o *OpenAI) Name() string { return BackendOpenAI }

func (o *OpenAI) client(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.APIKey == "" {
		return nil, scene.NewError(scene.ErrMissingCredential, "openai", fmt.Errorf("no API key"))
	}

	temperature := req.Temperature
	if temperature == 0 {
		// go-openai drops a zero temperature from the request body
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := o.client(req.APIKey).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: req.UserContent},
		},
	})
	if err != nil {
		return nil, classify.OpenAI("openai", err)
	}

	if len(resp.Choices) == 0 {
		return &Result{}, nil
	}

	text := resp.Choices[0].Message.Content
	logrus.WithFields(logrus.Fields{
		"model":  o.model,
		"length": len(text),
	}).Debug("OpenAI scene generated")

	return &Result{Text: text}, nil
}
