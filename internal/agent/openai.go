package agent

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const systemPrompt = "You are a poetry agent. Reply with a single JSON object and nothing else."

// OpenAIAgent talks to any chat-completions compatible endpoint.
type OpenAIAgent struct {
	model string
	opts  []option.RequestOption
}

func NewOpenAIAgent(apiKey, model, baseURL string) (*OpenAIAgent, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key missing; set OPENAI_API_KEY")
	}
	if model == "" {
		return nil, errors.New("openai model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIAgent{model: model, opts: opts}, nil
}

func (o *OpenAIAgent) Provider() string { return "openai" }

func (o *OpenAIAgent) Call(ctx context.Context, prompt string) (string, error) {
	client := openai.NewClient(o.opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	// No choices is an empty reply, not a transport failure.
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
