package adk

import (
	"context"
	"iter"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"tripmind/pkg/errors"
	"tripmind/pkg/logger"
)

// OpenAIModel adapts OpenAI chat completions to ADK's model.LLM interface.
// Only text parts are forwarded; tool declarations are not advertised to the
// model, so handlers on this backend answer without function calls.
type OpenAIModel struct {
	client    openai.Client
	modelName string
	log       *logger.Logger
}

// NewOpenAIModel creates an OpenAI-backed ADK model
func NewOpenAIModel(apiKey, modelName string, opts ...option.RequestOption) (*OpenAIModel, error) {
	if apiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "openai API key is required")
	}
	if modelName == "" {
		modelName = string(openai.ChatModelGPT4oMini)
	}

	return &OpenAIModel{
		client:    openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
		modelName: modelName,
		log:       logger.Get().With("component", "openai_model", "model", modelName),
	}, nil
}

// Name returns the model name.
func (m *OpenAIModel) Name() string {
	return m.modelName
}

// GenerateContent implements the ADK model.LLM interface. With stream set it
// yields one partial response per delta followed by the aggregated response.
func (m *OpenAIModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		params := m.buildParams(req)

		s := m.client.Chat.Completions.NewStreaming(ctx, params)
		defer s.Close()

		var (
			full   strings.Builder
			finish string
			usage  openai.CompletionUsage
		)
		for s.Next() {
			chunk := s.Current()
			if chunk.Usage.TotalTokens > 0 {
				usage = chunk.Usage
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			if choice.FinishReason != "" {
				finish = choice.FinishReason
			}
			delta := choice.Delta.Content
			if delta == "" {
				continue
			}
			full.WriteString(delta)

			if stream {
				resp := &model.LLMResponse{
					Content: genai.NewContentFromText(delta, genai.RoleModel),
					Partial: true,
				}
				if !yield(resp, nil) {
					return
				}
			}
		}
		if err := s.Err(); err != nil {
			m.log.Warnw("openai stream failed", "error", err)
			yield(nil, errors.Wrap(err, "openai chat completion failed"))
			return
		}

		yield(&model.LLMResponse{
			Content:      genai.NewContentFromText(full.String(), genai.RoleModel),
			TurnComplete: true,
			FinishReason: finishReason(finish),
			UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
				PromptTokenCount:     int32(usage.PromptTokens),
				CandidatesTokenCount: int32(usage.CompletionTokens),
				TotalTokenCount:      int32(usage.TotalTokens),
			},
		}, nil)
	}
}

func (m *OpenAIModel) buildParams(req *model.LLMRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(m.modelName),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}

	if cfg := req.Config; cfg != nil {
		if cfg.SystemInstruction != nil {
			if text := joinText(cfg.SystemInstruction); text != "" {
				params.Messages = append(params.Messages, openai.SystemMessage(text))
			}
		}
		if cfg.Temperature != nil {
			params.Temperature = openai.Float(float64(*cfg.Temperature))
		}
		if cfg.TopP != nil {
			params.TopP = openai.Float(float64(*cfg.TopP))
		}
		if cfg.MaxOutputTokens > 0 {
			params.MaxCompletionTokens = openai.Int(int64(cfg.MaxOutputTokens))
		}
	}

	for _, content := range req.Contents {
		text := joinText(content)
		if text == "" {
			continue
		}
		switch content.Role {
		case genai.RoleModel:
			params.Messages = append(params.Messages, openai.AssistantMessage(text))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(text))
		}
	}

	return params
}

func joinText(content *genai.Content) string {
	if content == nil {
		return ""
	}
	parts := make([]string, 0, len(content.Parts))
	for _, part := range content.Parts {
		if part != nil && part.Text != "" {
			parts = append(parts, part.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func finishReason(reason string) genai.FinishReason {
	switch reason {
	case "length":
		return genai.FinishReasonMaxTokens
	case "content_filter":
		return genai.FinishReasonSafety
	case "", "stop", "tool_calls":
		return genai.FinishReasonStop
	default:
		return genai.FinishReasonOther
	}
}

var _ model.LLM = (*OpenAIModel)(nil)
