// Package handler is the transport boundary: it adapts API Gateway requests
// from the chat webhook into triage turns, resolving the sender's Traccar
// credential bundle before the dispatcher runs.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"trakii-bot/internal/domain"
	"trakii-bot/internal/integrations/paramstore"
	"trakii-bot/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// TriageRunner is the dispatch engine entry point consumed by the handler.
type TriageRunner interface {
	RunTurn(ctx context.Context, in usecase.TurnInput) (usecase.TurnOutput, error)
}

type turnRequest struct {
	UserID         string `json:"userId"`
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

type turnResponse struct {
	Reply          string `json:"reply"`
	Label          string `json:"label"`
	State          string `json:"state"`
	ConversationID string `json:"conversationId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// credentialPayload is the expected JSON shape of a per-user credential
// parameter in SSM.
type credentialPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Handler serves triage turns over API Gateway.
type Handler struct {
	triage      TriageRunner
	params      paramstore.Getter
	paramPrefix string
}

// NewHandler wires the transport handler.
func NewHandler(triage TriageRunner, params paramstore.Getter, paramPrefix string) (*Handler, error) {
	if triage == nil {
		return nil, errors.New("handler: triage runner must not be nil")
	}
	if params == nil {
		return nil, errors.New("handler: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("handler: parameter prefix must not be empty")
	}
	return &Handler{triage: triage, params: params, paramPrefix: paramPrefix}, nil
}

// Handle processes one incoming chat message end to end.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(event.Headers)

	var req turnRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		return jsonResponse(http.StatusBadRequest, corrID, errorResponse{Error: string(usecase.ErrorInvalidInput)}), nil
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return jsonResponse(http.StatusBadRequest, corrID, errorResponse{Error: string(usecase.ErrorInvalidInput)}), nil
	}

	slog.Info("turn received", "user_id", userID, "correlation_id", corrID)

	out, err := h.triage.RunTurn(ctx, usecase.TurnInput{
		UserID:         userID,
		Message:        req.Message,
		ConversationID: req.ConversationID,
		Credentials:    h.resolveCredentials(ctx, userID),
	})
	if err != nil {
		status, code := mapError(err)
		slog.Error("turn rejected", "user_id", userID, "correlation_id", corrID, "err", err)
		return jsonResponse(status, corrID, errorResponse{Error: code}), nil
	}

	if out.State == usecase.TurnFailed {
		slog.Error("turn failed", "user_id", userID, "correlation_id", corrID, "conversation_id", out.ConversationID)
	}

	// A reply is always a chat message to the user, never a transport error;
	// failed turns still respond 200 with the apology text.
	return jsonResponse(http.StatusOK, corrID, turnResponse{
		Reply:          out.Reply.Content,
		Label:          string(out.Label),
		State:          string(out.State),
		ConversationID: out.ConversationID,
	}), nil
}

// resolveCredentials loads the sender's Traccar credential bundle from SSM.
// A user with no stored bundle (or an unreadable one) proceeds with an empty
// bundle; the credentialed handlers soft-fail with their fixed reply.
func (h *Handler) resolveCredentials(ctx context.Context, userID string) domain.Credentials {
	name := fmt.Sprintf("%s/users/%s/traccar", h.paramPrefix, userID)
	raw, err := h.params.GetParameter(ctx, name)
	if err != nil {
		if !errors.Is(err, paramstore.ErrParameterNotFound) {
			slog.Error("credential lookup failed", "user_id", userID, "err", err)
		}
		return domain.Credentials{}
	}
	var payload credentialPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		slog.Error("credential payload malformed", "user_id", userID, "err", err)
		return domain.Credentials{}
	}
	return domain.Credentials{Username: payload.Username, Password: payload.Password}
}

func mapError(err error) (int, string) {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		switch ucErr.Code {
		case usecase.ErrorInvalidInput:
			return http.StatusBadRequest, string(ucErr.Code)
		default:
			return http.StatusInternalServerError, string(ucErr.Code)
		}
	}
	return http.StatusInternalServerError, string(usecase.ErrorInternal)
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return uuid.NewString()
}

func jsonResponse(status int, corrID string, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte(`{"error":"INTERNAL_ERROR"}`)
		status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(raw),
	}
}
