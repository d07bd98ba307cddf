package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"trakii-bot/internal/domain"
	"trakii-bot/internal/profile"
)

const defaultMaxMessage = 1000

// IntentClassifier sends the rendered triage prompt pair to a hosted model
// and returns its structured decision.
type IntentClassifier interface {
	Classify(ctx context.Context, messages []domain.ChatMessage) (domain.Classification, error)
}

// TrackingClient reads devices and positions from the Traccar API using the
// turn's credential bundle.
type TrackingClient interface {
	Devices(ctx context.Context, creds domain.Credentials) ([]domain.Device, error)
	Positions(ctx context.Context, creds domain.Credentials, positionID int64) ([]domain.Position, error)
}

// KnowledgeAnswerer is the retrieval collaborator behind the ask handler.
type KnowledgeAnswerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// TurnWriter persists the audit record of a completed turn.
type TurnWriter interface {
	SaveCompletedTurn(ctx context.Context, conversationID, userID, message, label, reply string) error
}

// TurnState is the terminal state of one dispatch.
type TurnState string

const (
	// TurnDone means a handler ran and produced the reply.
	TurnDone TurnState = "done"
	// TurnFailed means classification failed; the reply is the fixed apology
	// and no handler was invoked.
	TurnFailed TurnState = "failed"
)

// Turn is the per-invocation conversation state: the ordered role-tagged
// message sequence for a single incoming message. It is created at turn start
// and discarded at turn end; nothing survives across turns.
type Turn struct {
	Messages []domain.ChatMessage
}

func newTurn(message string) *Turn {
	return &Turn{Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: message}}}
}

func (t *Turn) append(role, content string) {
	t.Messages = append(t.Messages, domain.ChatMessage{Role: role, Content: content})
}

// userMessage returns the most recent user-role message, lower-cased for the
// device-matching heuristic.
func (t *Turn) userMessage() string {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Role == domain.RoleUser {
			return strings.ToLower(t.Messages[i].Content)
		}
	}
	return ""
}

// lastAssistant returns the most recently appended assistant message.
func (t *Turn) lastAssistant() (domain.ChatMessage, bool) {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Role == domain.RoleAssistant {
			return t.Messages[i], true
		}
	}
	return domain.ChatMessage{}, false
}

// TriageService is the dispatch engine: one classification call, one routed
// handler, exactly one assistant reply per turn.
type TriageService struct {
	classifier IntentClassifier
	tracking   TrackingClient
	knowledge  KnowledgeAnswerer
	turns      TurnWriter
	profile    profile.Profile
	maxMessage int
}

// TurnInput is one incoming user message plus its caller-owned credentials.
type TurnInput struct {
	UserID         string
	Message        string
	ConversationID string
	Credentials    domain.Credentials
}

// TurnOutput is the single result of a turn.
type TurnOutput struct {
	Reply          domain.ChatMessage
	Label          Label
	ConversationID string
	State          TurnState
}

// NewTriageService wires the dispatch engine. All collaborators are required;
// there is no ambient fallback for any of them.
func NewTriageService(c IntentClassifier, t TrackingClient, k KnowledgeAnswerer, w TurnWriter, p profile.Profile, maxMessageLen int) (*TriageService, error) {
	if c == nil {
		return nil, errors.New("usecase: intent classifier must not be nil")
	}
	if t == nil {
		return nil, errors.New("usecase: tracking client must not be nil")
	}
	if k == nil {
		return nil, errors.New("usecase: knowledge answerer must not be nil")
	}
	if w == nil {
		return nil, errors.New("usecase: turn writer must not be nil")
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessage
	}
	return &TriageService{
		classifier: c,
		tracking:   t,
		knowledge:  k,
		turns:      w,
		profile:    p,
		maxMessage: maxMessageLen,
	}, nil
}

// RunTurn executes one triage turn to completion:
//
//	START → CLASSIFYING → (routed handler) → DONE
//
// Classification failure is the only fatal path: the turn terminates in
// TurnFailed carrying the fixed apology, and no handler runs. Every failure
// below a handler boundary is recovered inside that handler as a normal reply
// message. Either way the caller receives exactly one assistant message.
func (s *TriageService) RunTurn(ctx context.Context, in TurnInput) (TurnOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return TurnOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(message) > s.maxMessage {
		return TurnOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	convID := strings.TrimSpace(in.ConversationID)
	if convID == "" {
		convID = newUUID()
	}

	turn := newTurn(message)

	label, err := s.classify(ctx, message)
	if err != nil {
		slog.Error("triage classification failed", "conversation_id", convID, "err", err)
		return TurnOutput{
			Reply:          domain.ChatMessage{Role: domain.RoleAssistant, Content: replyTurnFailed},
			ConversationID: convID,
			State:          TurnFailed,
		}, nil
	}

	s.route(label)(ctx, turn, in.Credentials)
	reply := replyOrPlaceholder(turn)

	if err := s.turns.SaveCompletedTurn(ctx, convID, in.UserID, message, string(label), reply.Content); err != nil {
		// The audit trail is best-effort; a write failure never fails the turn.
		slog.Error("turn audit write failed", "conversation_id", convID, "err", err)
	}

	slog.Info("turn completed", "conversation_id", convID, "label", label)
	return TurnOutput{
		Reply:          reply,
		Label:          label,
		ConversationID: convID,
		State:          TurnDone,
	}, nil
}

// classify renders the triage prompts, invokes the classifier, and validates
// the returned label against the closed set. An out-of-enum label is treated
// the same as a failed call.
func (s *TriageService) classify(ctx context.Context, message string) (Label, error) {
	decision, err := s.classifier.Classify(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildTriageSystemPrompt(s.profile)},
		{Role: domain.RoleUser, Content: buildTriageUserPrompt(message)},
	})
	if err != nil {
		return "", err
	}
	label, err := ParseLabel(decision.Label)
	if err != nil {
		return "", err
	}
	slog.Info("triage classified", "label", label, "reasoning", decision.Reasoning)
	return label, nil
}

// replyOrPlaceholder returns the turn's last assistant message, or the fixed
// placeholder if a handler somehow appended nothing. A turn never ends with
// zero replies.
func replyOrPlaceholder(turn *Turn) domain.ChatMessage {
	reply, ok := turn.lastAssistant()
	if !ok || strings.TrimSpace(reply.Content) == "" {
		return domain.ChatMessage{Role: domain.RoleAssistant, Content: replyPlaceholder}
	}
	return reply
}

var newUUID = func() string {
	return uuid.NewString()
}
