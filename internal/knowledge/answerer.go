package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"trakii-bot/internal/domain"
)

const defaultTopK = 3

// ErrOutOfScope marks a question the FAQ corpus cannot ground an answer for.
var ErrOutOfScope = errors.New("knowledge: question out of scope")

// ErrNoMatches marks a question for which retrieval found nothing at all.
var ErrNoMatches = errors.New("knowledge: no matching FAQ entries")

// Searcher retrieves the FAQ entries most relevant to a question.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]FAQEntry, error)
}

// ChatCompleter composes a grounded answer from prompt messages. The raw
// content must follow the grounded-answer JSON contract.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

type groundedAnswer struct {
	InScope bool   `json:"in_scope"`
	Answer  string `json:"answer"`
}

// Answerer answers free-form questions from the FAQ corpus: retrieve top-k
// entries, then have the LLM compose an answer restricted to those excerpts.
type Answerer struct {
	search Searcher
	llm    ChatCompleter
	topK   int
}

// NewAnswerer wires the retrieval collaborator.
func NewAnswerer(search Searcher, llm ChatCompleter, topK int) (*Answerer, error) {
	if search == nil {
		return nil, errors.New("knowledge: searcher must not be nil")
	}
	if llm == nil {
		return nil, errors.New("knowledge: chat completer must not be nil")
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Answerer{search: search, llm: llm, topK: topK}, nil
}

// Answer returns a grounded answer for the question, or an error the caller
// recovers into its fixed apology reply.
func (a *Answerer) Answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("knowledge: question must not be empty")
	}

	entries, err := a.search.Search(ctx, question, a.topK)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", ErrNoMatches
	}

	raw, err := a.llm.Complete(ctx, buildAnswerMessages(entries, question))
	if err != nil {
		return "", err
	}

	answer, err := parseGroundedAnswer(raw)
	if err != nil {
		return "", err
	}
	if !answer.InScope {
		return "", ErrOutOfScope
	}
	return answer.Answer, nil
}

func buildAnswerMessages(entries []FAQEntry, question string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildAnswerPolicyPrompt()},
		{Role: domain.RoleSystem, Content: buildExcerptPrompt(entries)},
		{Role: domain.RoleUser, Content: question},
	}
}

func buildAnswerPolicyPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You are TrakiiBot, the assistant for the Trakii GPS tracking service.",
		"",
		"Task:",
		"Determine whether the current question can be answered from the FAQ excerpts provided in this request.",
		"If it can, answer using only those excerpts.",
		"If it cannot, return out of scope.",
		"",
		"Behavior Rules:",
		"1) Answer only the current user question in this request.",
		"2) Use only the FAQ excerpts in this request as sources.",
		"3) Keep responses helpful and concise.",
		"4) When the question is in Spanish, answer in Spanish.",
		"",
		"Output Contract:",
		"Return JSON only with keys in_scope (boolean) and answer (string). " +
			"If out of scope, return in_scope=false and answer=\"\". " +
			"If in scope, return in_scope=true and provide the final user-facing answer in answer.",
	}, "\n")
}

func buildExcerptPrompt(entries []FAQEntry) string {
	lines := []string{"FAQ Excerpts:"}
	for _, e := range entries {
		lines = append(lines, "", "Q: "+strings.TrimSpace(e.Question), "A: "+strings.TrimSpace(e.Answer))
	}
	return strings.Join(lines, "\n")
}

func parseGroundedAnswer(raw string) (groundedAnswer, error) {
	var out groundedAnswer
	dec := json.NewDecoder(bytes.NewBufferString(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return groundedAnswer{}, fmt.Errorf("knowledge: decode grounded answer: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return groundedAnswer{}, errors.New("knowledge: decode grounded answer: multiple JSON values")
		}
		return groundedAnswer{}, fmt.Errorf("knowledge: decode grounded answer trailing data: %w", err)
	}
	if out.InScope && strings.TrimSpace(out.Answer) == "" {
		return groundedAnswer{}, errors.New("knowledge: grounded answer missing answer for in-scope question")
	}
	return out, nil
}
