package openai

import (
	"context"
	"errors"
	"lyrik/pkg/ai"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

var _ ai.AiInterface = (*openAi)(nil)

type openAi struct {
	model  string
	client *openai.Client
}

func NewOpenAi(apiKey, modelName, baseURL string) *openAi {
	openai_config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		openai_config.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(openai_config)
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	return &openAi{model: modelName, client: client}
}

func (o *openAi) Name() string {
	return "openai"
}

func (o *openAi) HandleText(ctx context.Context, msg string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: msg,
			},
		},
		MaxTokens: 2000,
	})
	if err != nil {
		log.Error().Err(err).Msg("could not get response from openai")
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
