package chatbot

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed intents.json
var defaultIntents []byte

// Intent is a canned reply triggered by any of its keywords.
type Intent struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
	Response string   `json:"response"`
}

type intentFile struct {
	Intents []Intent `json:"intents"`
}

// LoadIntents decodes an intents document.
func LoadIntents(data []byte) ([]Intent, error) {
	var f intentFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode intents: %w", err)
	}
	for i := range f.Intents {
		for j, kw := range f.Intents[i].Keywords {
			f.Intents[i].Keywords[j] = normalize(kw)
		}
	}
	return f.Intents, nil
}

// DefaultIntents returns the built-in intents.
func DefaultIntents() []Intent {
	intents, err := LoadIntents(defaultIntents)
	if err != nil {
		panic(err)
	}
	return intents
}

// normalize lowercases s, turns punctuation into spaces and collapses
// whitespace, so keywords can be matched on word boundaries.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '?', '!', '.', ',', ';', ':', '"', '\'', '(', ')':
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// containsPhrase reports whether phrase occurs in text as whole words.
// Both must be normalized.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}

func containsAny(text string, phrases ...string) bool {
	for _, p := range phrases {
		if containsPhrase(text, p) {
			return true
		}
	}
	return false
}

func match(intents []Intent, text string) (Intent, bool) {
	for _, in := range intents {
		for _, kw := range in.Keywords {
			if containsPhrase(text, kw) {
				return in, true
			}
		}
	}
	return Intent{}, false
}
