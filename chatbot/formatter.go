package chatbot

import (
	"errors"
	"math/rand/v2"
)

// DefaultIntroPhrases open every reply.
var DefaultIntroPhrases = []string{
	"Here's what I found for you 😊:",
	"Ah, I think I have the perfect answer! 👀",
	"Let me break it down for you 📚:",
	"Got it! Here's what I learned 🧠:",
	"Sure thing! Let me explain ✨:",
}

// DefaultSymbols follow the intro phrase.
var DefaultSymbols = []string{"😄", "😊", "🤖", "📄", "✨", "💬", "📚", "👍", "🤔", "✅", "👀", "🤓"}

// Rand picks an index in [0, n).
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// GlobalRand is the goroutine-safe top-level math/rand/v2 source.
var GlobalRand Rand = globalRand{}

// Formatter wraps answers in a friendly intro phrase and symbol.
type Formatter struct {
	intros  []string
	symbols []string
	rnd     Rand
}

// NewFormatter returns a Formatter. Both sets must be non-empty; a nil rnd uses GlobalRand.
func NewFormatter(intros, symbols []string, rnd Rand) (*Formatter, error) {
	if len(intros) == 0 {
		return nil, errors.New("formatter: no intro phrases")
	}
	if len(symbols) == 0 {
		return nil, errors.New("formatter: no symbols")
	}
	if rnd == nil {
		rnd = GlobalRand
	}
	return &Formatter{
		intros:  append([]string(nil), intros...),
		symbols: append([]string(nil), symbols...),
		rnd:     rnd,
	}, nil
}

// DefaultFormatter uses the default phrase and symbol sets with GlobalRand.
func DefaultFormatter() *Formatter {
	f, _ := NewFormatter(DefaultIntroPhrases, DefaultSymbols, nil)
	return f
}

// Format returns "<intro> <symbol>\n\n<body>".
func (f *Formatter) Format(body string) string {
	intro := f.intros[f.rnd.IntN(len(f.intros))]
	symbol := f.symbols[f.rnd.IntN(len(f.symbols))]
	return intro + " " + symbol + "\n\n" + body
}

// Intros returns a copy of the intro phrase set.
func (f *Formatter) Intros() []string {
	return append([]string(nil), f.intros...)
}
