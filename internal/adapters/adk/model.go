package adk

import (
	"context"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"tripmind/internal/adapters/config"
	"tripmind/pkg/errors"
)

// NewModel builds the language model selected by MODEL_PROVIDER
func NewModel(ctx context.Context, cfg config.ModelConfig) (model.LLM, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIModel(cfg.OpenAIKey, cfg.OpenAIModel)

	case "gemini", "":
		clientCfg := &genai.ClientConfig{
			APIKey:  cfg.GoogleAPIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if cfg.UseVertexAI {
			clientCfg = &genai.ClientConfig{
				Backend:  genai.BackendVertexAI,
				Project:  cfg.Project,
				Location: cfg.Location,
			}
		}
		m, err := gemini.NewModel(ctx, cfg.Name, clientCfg)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create gemini model %s", cfg.Name)
		}
		return m, nil

	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown model provider %q", cfg.Provider)
	}
}
