package intent

import (
	_ "embed"
	"os"

	"gopkg.in/yaml.v3"

	"tripmind/internal/agents"
	"tripmind/pkg/errors"
)

//go:embed tables.yaml
var defaultTables []byte

// Keyword is a scored term. Weight 0 means the length-based default.
type Keyword struct {
	Term   string `yaml:"term"`
	Weight int    `yaml:"weight"`
}

// UnmarshalYAML accepts either a bare string or a {term, weight} mapping
func (k *Keyword) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		k.Term = node.Value
		k.Weight = 0
		return nil
	}

	type plain Keyword
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*k = Keyword(p)
	return nil
}

// Boost adds Weight when any of the terms is present
type Boost struct {
	Any    []string `yaml:"any"`
	Weight int      `yaml:"weight"`
}

// HandlerTable is the scoring table of one handler.
// A strong signal is a list of terms that must all be present.
type HandlerTable struct {
	Keywords      []Keyword  `yaml:"keywords"`
	Phrases       []string   `yaml:"phrases"`
	StrongSignals [][]string `yaml:"strong_signals"`
	Boosts        []Boost    `yaml:"boosts"`
}

// Tables is the full classification policy
type Tables struct {
	MinScore           int                                `yaml:"min_score"`
	LongKeywordRunes   int                                `yaml:"long_keyword_runes"`
	PhraseWeight       int                                `yaml:"phrase_weight"`
	StrongSignalWeight int                                `yaml:"strong_signal_weight"`
	ShortMessageTokens int                                `yaml:"short_message_tokens"`
	FullPlanPhrases    []string                           `yaml:"full_plan_phrases"`
	FollowupMarkers    []string                           `yaml:"followup_markers"`
	Handlers           map[agents.HandlerID]HandlerTable `yaml:"handlers"`
}

// DefaultTables returns the built-in policy
func DefaultTables() (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(defaultTables, &t); err != nil {
		return nil, errors.Wrap(err, "parse embedded intent tables")
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadTables returns the built-in policy overlaid with the YAML file at path.
// Top-level values present in the file replace the defaults; a handler listed
// in the file replaces that handler's table entirely. An empty path yields the
// defaults.
func LoadTables(path string) (*Tables, error) {
	t, err := DefaultTables()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read intent tables %s", path)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "parse intent tables %s: %v", path, err)
	}
	if err := t.validate(); err != nil {
		return nil, errors.Wrapf(err, "intent tables %s", path)
	}
	return t, nil
}

func (t *Tables) validate() error {
	for id := range t.Handlers {
		if _, ok := agents.ParseHandlerID(string(id)); !ok {
			return errors.Wrapf(errors.ErrInvalidInput, "unknown handler %q", id)
		}
	}
	if t.MinScore < 0 || t.ShortMessageTokens < 0 {
		return errors.Wrap(errors.ErrInvalidInput, "min_score and short_message_tokens must not be negative")
	}
	return nil
}
