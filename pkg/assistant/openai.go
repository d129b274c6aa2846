package assistant

import (
	"context"
	"fmt"

	"github.com/a4sr3s/voxpipe/internal/config"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openAIResponder struct {
	client openai.Client
}

// Respond implements Responder.
func (o openAIResponder) Respond(ctx context.Context, msgs []Message) (string, error) {
	convertedMsgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		convertedMsgs = append(convertedMsgs, convertToOpenaiMsg(msg))
	}
	chatCompletion, err := o.client.Chat.Completions.New(
		ctx,
		openai.ChatCompletionNewParams{
			Messages: convertedMsgs,
			Model:    openai.ChatModelGPT4oMini,
		},
	)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	if len(chatCompletion.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return chatCompletion.Choices[0].Message.Content, nil
}

func convertToOpenaiMsg(msg Message) openai.ChatCompletionMessageParamUnion {
	switch msg.MsgRole {
	case ASSISTANT:
		return openai.AssistantMessage(msg.Content)
	case USER:
		return openai.UserMessage(msg.Content)
	case SYSTEM:
		return openai.SystemMessage(msg.Content)
	}
	return openai.UserMessage(msg.Content)
}

func NewResponder(assistantCfg config.AssistantKeysObj) Responder {
	return openAIResponder{
		client: openai.NewClient(
			option.WithAPIKey(
				assistantCfg.OpenAiApiKey,
			),
		),
	}
}
