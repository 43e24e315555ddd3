package chatbot

import (
	"fmt"
	"strings"
)

// DefaultContextWindow is how many characters of document text a grounded prompt embeds.
const DefaultContextWindow = 2000

const (
	DefaultPersona         = "You are Mwanga, a helpful assistant for product inquiries."
	DefaultFallbackPersona = "You are a highly knowledgeable assistant."
)

// Prompter builds the grounded and fallback prompts.
type Prompter struct {
	Persona         string
	FallbackPersona string
	ContextWindow   int
}

// NewPrompter fills empty fields with defaults.
func NewPrompter(persona, fallbackPersona string, contextWindow int) Prompter {
	if strings.TrimSpace(persona) == "" {
		persona = DefaultPersona
	}
	if strings.TrimSpace(fallbackPersona) == "" {
		fallbackPersona = DefaultFallbackPersona
	}
	if contextWindow <= 0 {
		contextWindow = DefaultContextWindow
	}
	return Prompter{Persona: persona, FallbackPersona: fallbackPersona, ContextWindow: contextWindow}
}

// Grounded embeds the persona, the verbatim query and the first ContextWindow characters of text.
func (p Prompter) Grounded(query, text string) string {
	excerpt, truncated := truncate(text, p.ContextWindow)
	if truncated {
		excerpt += "..."
	}
	return fmt.Sprintf(`%s The user is asking: '%s'.
Use the following document content for context:

Document Content (first %d characters):
%s

Answer the query based on the above information.`, p.Persona, query, p.ContextWindow, excerpt)
}

// Fallback embeds only the fallback persona and the verbatim query.
func (p Prompter) Fallback(query string) string {
	return fmt.Sprintf(`%s The user is asking: '%s'.
Since the provided document content doesn't have enough information, provide a general and accurate response.`, p.FallbackPersona, query)
}

// truncate limits s to n runes.
func truncate(s string, n int) (string, bool) {
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]), true
}
