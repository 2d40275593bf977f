package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sashabaranov/go-openai"

	"zenith/internal/advisor"
	"zenith/internal/log"
)

// OpenAI streams chat completions from any OpenAI-compatible endpoint.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	hasKey  bool
	logger  *log.Logger
}

func NewOpenAI(apiKey, baseURL, model string, timeout time.Duration, logger *log.Logger) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OpenAI{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
		hasKey:  apiKey != "",
		logger:  logger.WithComponent(log.ComponentLLM),
	}
}

func (o *OpenAI) Name() string { return "openai" }

// Available reports whether a key and model are configured. It does not
// call the API.
func (o *OpenAI) Available(context.Context) bool {
	return o.hasKey && o.model != ""
}

func (o *OpenAI) GenerateStream(ctx context.Context, prompt string, opts advisor.GenerateOptions) (advisor.TokenStream, error) {
	var messages []openai.ChatCompletionMessage
	if opts.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		Stream:      true,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("openai stream: %w", err)
	}

	o.logger.DebugContext(ctx, "OpenAI stream started", log.FieldOperation, log.OpGenerate, "model", o.model)
	return &openAIStream{stream: stream, cancel: cancel}, nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
	cancel context.CancelFunc
}

func (s *openAIStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("openai stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if tok := resp.Choices[0].Delta.Content; tok != "" {
			return tok, nil
		}
		if resp.Choices[0].FinishReason != "" {
			return "", io.EOF
		}
	}
}

func (s *openAIStream) Close() error {
	defer s.cancel()
	return s.stream.Close()
}
