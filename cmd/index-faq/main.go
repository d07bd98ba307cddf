// Command index-faq builds the on-disk FAQ index consumed by the bot's ask
// handler. It reads a JSON array of {id, question, answer} entries and writes
// a fresh Bleve index; run it whenever the FAQ corpus changes.
package main

import (
	"encoding/json"
	"log/slog"
	"os"

	"trakii-bot/internal/knowledge"
)

func main() {
	faqPath := mustEnv("FAQ_PATH")
	indexPath := mustEnv("FAQ_INDEX_PATH")

	raw, err := os.ReadFile(faqPath)
	if err != nil {
		slog.Error("failed to read FAQ file", "path", faqPath, "err", err)
		os.Exit(1)
	}

	var entries []knowledge.FAQEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		slog.Error("failed to parse FAQ file", "path", faqPath, "err", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		slog.Error("FAQ file contains no entries", "path", faqPath)
		os.Exit(1)
	}

	idx, err := knowledge.Create(indexPath)
	if err != nil {
		slog.Error("failed to create index", "path", indexPath, "err", err)
		os.Exit(1)
	}
	defer func() { _ = idx.Close() }()

	if err := idx.IndexEntries(entries); err != nil {
		slog.Error("failed to index FAQ entries", "err", err)
		os.Exit(1)
	}

	slog.Info("FAQ index built", "path", indexPath, "entries", len(entries))
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}
