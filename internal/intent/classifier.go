package intent

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"

	"tripmind/internal/agents"
	"tripmind/internal/domain/session"
	"tripmind/pkg/logger"
)

// Classifier routes a user message to a handler using weighted keyword tables
// and a conversation-continuity override.
type Classifier struct {
	tables *Tables
	log    *logger.Logger
}

// NewClassifier creates a classifier; nil tables means the built-in policy
func NewClassifier(tables *Tables) (*Classifier, error) {
	if tables == nil {
		t, err := DefaultTables()
		if err != nil {
			return nil, err
		}
		tables = t
	}
	return &Classifier{
		tables: tables,
		log:    logger.Get().With("component", "intent"),
	}, nil
}

// Classify picks the handler for text given the session history.
// It never fails; anything ambiguous resolves to general.
func (c *Classifier) Classify(text string, history []session.Message) agents.HandlerID {
	lower := strings.ToLower(text)

	if prev, ok := c.continuation(lower, history); ok {
		c.log.Debugw("continuity override", "handler", prev)
		return prev
	}

	scores := c.Scores(text)
	best, second := topTwo(scores)
	c.log.Debugw("intent scores", "scores", scores, "best", best.id)

	if best.score < c.tables.MinScore || best.score == second.score {
		return agents.HandlerGeneral
	}
	return best.id
}

// IsFullPlanRequest reports whether text asks for a complete trip plan
func (c *Classifier) IsFullPlanRequest(text string) bool {
	lower := strings.ToLower(text)
	return lo.SomeBy(c.tables.FullPlanPhrases, func(p string) bool {
		return containsTerm(lower, p)
	})
}

// Scores returns the score of every handler that has a table
func (c *Classifier) Scores(text string) map[agents.HandlerID]int {
	lower := strings.ToLower(text)
	scores := make(map[agents.HandlerID]int, len(c.tables.Handlers))

	for id, table := range c.tables.Handlers {
		score := 0
		for _, sig := range table.StrongSignals {
			if matchesAll(lower, sig) {
				score += c.tables.StrongSignalWeight
			}
		}
		for _, kw := range table.Keywords {
			if containsTerm(lower, kw.Term) {
				score += c.keywordWeight(kw)
			}
		}
		for _, p := range table.Phrases {
			if containsTerm(lower, p) {
				score += c.tables.PhraseWeight
			}
		}
		for _, b := range table.Boosts {
			if lo.SomeBy(b.Any, func(term string) bool { return containsTerm(lower, term) }) {
				score += b.Weight
			}
		}
		scores[id] = score
	}
	return scores
}

func (c *Classifier) continuation(lower string, history []session.Message) (agents.HandlerID, bool) {
	last, ok := session.LastAssistant(history)
	if !ok {
		return "", false
	}
	prev, ok := agents.ParseHandlerID(last.Handler)
	if !ok || prev == agents.HandlerGeneral {
		return "", false
	}

	followUp := len(strings.Fields(lower)) <= c.tables.ShortMessageTokens ||
		lo.SomeBy(c.tables.FollowupMarkers, func(m string) bool { return containsTerm(lower, m) })
	if !followUp || c.hasStrongSignal(lower) {
		return "", false
	}
	return prev, true
}

func (c *Classifier) hasStrongSignal(lower string) bool {
	for _, table := range c.tables.Handlers {
		for _, sig := range table.StrongSignals {
			if matchesAll(lower, sig) {
				return true
			}
		}
	}
	return false
}

func (c *Classifier) keywordWeight(kw Keyword) int {
	if kw.Weight != 0 {
		return kw.Weight
	}
	if utf8.RuneCountInString(kw.Term) > c.tables.LongKeywordRunes {
		return 2
	}
	return 1
}

type scored struct {
	id    agents.HandlerID
	score int
}

// topTwo walks handlers in AllHandlers order so results do not depend on map
// iteration.
func topTwo(scores map[agents.HandlerID]int) (scored, scored) {
	var best, second scored
	for _, id := range agents.AllHandlers {
		s, ok := scores[id]
		if !ok {
			continue
		}
		switch {
		case best.id == "" || s > best.score:
			second = best
			best = scored{id, s}
		case second.id == "" || s > second.score:
			second = scored{id, s}
		}
	}
	return best, second
}

func matchesAll(lower string, terms []string) bool {
	return len(terms) > 0 && lo.EveryBy(terms, func(t string) bool { return containsTerm(lower, t) })
}

// containsTerm matches Thai terms as substrings (Thai has no word
// separators) and ASCII terms on word boundaries.
func containsTerm(lower, term string) bool {
	term = strings.ToLower(term)
	if term == "" {
		return false
	}
	if !isASCII(term) {
		return strings.Contains(lower, term)
	}

	for from := 0; from < len(lower); {
		i := strings.Index(lower[from:], term)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(term)
		if boundaryBefore(lower, start) && boundaryAfter(lower, end) {
			return true
		}
		from = start + 1
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	// plural "restaurants", "attractions"
	if r == 's' {
		return boundaryAfter(s, i+1)
	}
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
