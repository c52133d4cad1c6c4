package agents

import (
	"context"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	adkmodel "google.golang.org/adk/model"
	adktool "google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
	"google.golang.org/genai"

	"tripmind/internal/agents/callbacks"
	"tripmind/pkg/errors"
)

// SearchFunc runs a web search and returns a pre-formatted text block
type SearchFunc func(ctx context.Context, query string) (string, error)

// GenerationConfig holds sampling parameters shared by all handler agents
type GenerationConfig struct {
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int32
}

// FactoryDeps gathers external dependencies needed to instantiate agents.
type FactoryDeps struct {
	Registry   *Registry
	Model      adkmodel.LLM
	Search     SearchFunc
	Generation GenerationConfig
}

// Factory creates one model agent per handler.
type Factory struct {
	registry   *Registry
	model      adkmodel.LLM
	search     SearchFunc
	generation GenerationConfig
}

// NewFactory builds an agent factory with required dependencies.
func NewFactory(deps FactoryDeps) (*Factory, error) {
	if deps.Model == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "model is required")
	}

	if deps.Registry == nil {
		deps.Registry = NewRegistry(nil)
	}

	return &Factory{
		registry:   deps.Registry,
		model:      deps.Model,
		search:     deps.Search,
		generation: deps.Generation,
	}, nil
}

// CreateAgent constructs the model agent for a handler.
func (f *Factory) CreateAgent(id HandlerID) (agent.Agent, error) {
	cfg, ok := f.registry.Get(id)
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "handler not registered: %s", id)
	}

	instruction, err := f.registry.Instruction(id)
	if err != nil {
		return nil, err
	}

	agentTools := make([]adktool.Tool, 0, len(cfg.Tools))
	for _, name := range cfg.Tools {
		switch name {
		case ToolSearchWeb:
			if f.search == nil {
				continue
			}
			t, err := newSearchTool(f.search)
			if err != nil {
				return nil, errors.Wrapf(err, "create %s tool for %s", name, id)
			}
			agentTools = append(agentTools, t)
		default:
			return nil, errors.Wrapf(errors.ErrNotFound, "tool not found: %s", name)
		}
	}

	return llmagent.New(llmagent.Config{
		Name:                  cfg.Name,
		Description:           cfg.Description,
		Model:                 f.model,
		Tools:                 agentTools,
		Instruction:           instruction,
		OutputKey:             string(cfg.ResponseKey),
		GenerateContentConfig: f.contentConfig(),
		BeforeToolCallbacks: []llmagent.BeforeToolCallback{
			callbacks.RecordToolStartTimeBeforeToolCallback(),
		},
		AfterToolCallbacks: []llmagent.AfterToolCallback{
			callbacks.MetricsAfterToolCallback(),
			callbacks.AuditLogAfterToolCallback(),
			callbacks.ErrorAsResultCallback(),
		},
		AfterModelCallbacks: []llmagent.AfterModelCallback{
			callbacks.TokenCountingCallback(),
		},
	})
}

// CreateAll builds an agent for every registered handler.
func (f *Factory) CreateAll() (map[HandlerID]agent.Agent, error) {
	out := make(map[HandlerID]agent.Agent)
	for _, id := range f.registry.List() {
		ag, err := f.CreateAgent(id)
		if err != nil {
			return nil, err
		}
		out[id] = ag
	}
	return out, nil
}

func (f *Factory) contentConfig() *genai.GenerateContentConfig {
	g := f.generation
	if g == (GenerationConfig{}) {
		return nil
	}
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.Temperature),
		TopP:            genai.Ptr(g.TopP),
		TopK:            genai.Ptr(g.TopK),
		MaxOutputTokens: g.MaxOutputTokens,
	}
}

type searchArgs struct {
	Query string `json:"query" jsonschema:"search query, written in Thai when the destination is in Thailand"`
}

type searchResult struct {
	Status  string `json:"status"`
	Results string `json:"results"`
}

func newSearchTool(search SearchFunc) (adktool.Tool, error) {
	return functiontool.New(
		functiontool.Config{
			Name:        ToolSearchWeb,
			Description: "Search the web for up-to-date travel information such as attractions, opening hours and prices",
		},
		func(ctx adktool.Context, args searchArgs) (searchResult, error) {
			if args.Query == "" {
				return searchResult{Status: "error", Results: "query is required"}, nil
			}
			text, err := search(ctx, args.Query)
			if err != nil {
				return searchResult{}, err
			}
			return searchResult{Status: "success", Results: text}, nil
		})
}
