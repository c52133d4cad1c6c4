package agents

import (
	"sync"

	"tripmind/internal/extract"
	"tripmind/pkg/errors"
	"tripmind/pkg/templates"
)

const (
	systemTemplate    = "prompts/system"
	directiveTemplate = "prompts/directive"
)

// Excerpt is an earlier handler's answer passed to the trip planner
type Excerpt struct {
	Title string
	Text  string
}

// PromptInput is the data available to handler prompt templates.
// Enrichment is spliced in verbatim and never parsed.
type PromptInput struct {
	Query      string
	Fields     extract.Fields
	Context    string
	Enrichment string
	Excerpts   []Excerpt
	Marker     string
}

// Registry maps handler identities to their configuration and renders prompts
type Registry struct {
	handlers  map[HandlerID]HandlerConfig
	prompts   *templates.Prompts
	mu        sync.RWMutex
}

// NewRegistry builds a registry over the given configs; with none it uses
// DefaultHandlerConfigs.
func NewRegistry(prompts *templates.Prompts, configs ...HandlerConfig) *Registry {
	if prompts == nil {
		prompts = templates.Default()
	}

	r := &Registry{handlers: make(map[HandlerID]HandlerConfig), prompts: prompts}
	if len(configs) == 0 {
		for _, id := range AllHandlers {
			configs = append(configs, DefaultHandlerConfigs[id])
		}
	}
	for _, cfg := range configs {
		r.Register(cfg)
	}
	return r
}

// Register adds or replaces a handler entry.
func (r *Registry) Register(cfg HandlerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[cfg.ID] = cfg
}

// Get retrieves a handler config by ID.
func (r *Registry) Get(id HandlerID) (HandlerConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.handlers[id]
	return cfg, ok
}

// List returns registered handlers in AllHandlers order followed by any
// custom handlers.
func (r *Registry) List() []HandlerID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]HandlerID, 0, len(r.handlers))
	seen := make(map[HandlerID]bool, len(r.handlers))
	for _, id := range AllHandlers {
		if _, ok := r.handlers[id]; ok {
			res = append(res, id)
			seen[id] = true
		}
	}
	for id := range r.handlers {
		if !seen[id] {
			res = append(res, id)
		}
	}
	return res
}

// BuildPrompt renders the handler's prompt template
func (r *Registry) BuildPrompt(id HandlerID, in PromptInput) (string, error) {
	cfg, ok := r.Get(id)
	if !ok {
		return "", errors.Wrapf(errors.ErrNotFound, "handler %s", id)
	}

	in.Marker = cfg.Marker
	out, err := r.prompts.Render(cfg.PromptTemplate, in)
	if err != nil {
		return "", errors.Wrapf(err, "render prompt for %s", id)
	}
	return out, nil
}

// BuildDirective wraps an earlier prompt in the forced re-invocation directive
func (r *Registry) BuildDirective(id HandlerID, prompt string) (string, error) {
	cfg, ok := r.Get(id)
	if !ok {
		return "", errors.Wrapf(errors.ErrNotFound, "handler %s", id)
	}

	out, err := r.prompts.Render(directiveTemplate, map[string]string{
		"Prompt": prompt,
		"Marker": cfg.Marker,
	})
	if err != nil {
		return "", errors.Wrapf(err, "render directive for %s", id)
	}
	return out, nil
}

// Instruction renders the system instruction for the handler's model agent
func (r *Registry) Instruction(id HandlerID) (string, error) {
	cfg, ok := r.Get(id)
	if !ok {
		return "", errors.Wrapf(errors.ErrNotFound, "handler %s", id)
	}

	out, err := r.prompts.Render(systemTemplate, struct {
		Name        string
		Description string
		Marker      string
		HasSearch   bool
	}{
		Name:        cfg.Name,
		Description: cfg.Description,
		Marker:      cfg.Marker,
		HasSearch:   cfg.HasTool(ToolSearchWeb),
	})
	if err != nil {
		return "", errors.Wrapf(err, "render instruction for %s", id)
	}
	return out, nil
}
