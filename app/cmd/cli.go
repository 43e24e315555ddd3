package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"mwanga/chatbot"
	"mwanga/loader"
)

const (
	filePrompt  = "Enter the path to the PDF file: "
	notFoundMsg = "Hmm, I can't seem to find that file. Can you double-check the path? 🤔"
	readyMsg    = "Mwanga is ready to chat! Ask me anything about the products in your catalog 📄. Type 'exit' to quit."
	goodbyeMsg  = "Goodbye! 👋 Take care!"
	userPrompt  = "You: "
	botPrefix   = "Mwanga: "
)

func newIngestor(l *zap.Logger) *loader.Ingestor {
	return loader.NewIngestor(l)
}

// Answerer resolves one turn.
type Answerer interface {
	Resolve(ctx context.Context, doc loader.Text, query string) chatbot.Answer
}

// runAsk runs the terminal chat loop. The document is ingested once before the loop.
func runAsk(ctx context.Context, in io.Reader, out io.Writer, file string, ingestor *loader.Ingestor, r Answerer) error {
	ctx = contextOrBackground(ctx)
	scanner := bufio.NewScanner(in)

	if file == "" {
		fmt.Fprint(out, filePrompt)
		if !scanner.Scan() {
			return scanner.Err()
		}
		file = strings.TrimSpace(scanner.Text())
	}

	doc, err := ingestor.IngestFile(ctx, file)
	if errors.Is(err, loader.ErrNotFound) {
		fmt.Fprintln(out, notFoundMsg)
		return nil
	}

	fmt.Fprintln(out, readyMsg)
	for {
		fmt.Fprint(out, userPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		query := scanner.Text()
		switch strings.ToLower(strings.TrimSpace(query)) {
		case "exit", "quit":
			fmt.Fprintln(out, goodbyeMsg)
			return nil
		}

		ans := r.Resolve(ctx, doc, query)
		fmt.Fprintln(out, botPrefix+ans.Text)
	}
}

// runIngest prints the extracted pages of path.
func runIngest(ctx context.Context, out io.Writer, path string, ingestor *loader.Ingestor) error {
	doc, err := ingestor.IngestFile(contextOrBackground(ctx), path)
	if err != nil {
		return err
	}
	for i, page := range doc.Pages {
		fmt.Fprintf(out, "--- page %d ---\n%s\n", i+1, page)
	}
	return nil
}
