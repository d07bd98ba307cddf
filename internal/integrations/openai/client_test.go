package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"trakii-bot/internal/domain"
)

type fakeGetter struct {
	value string
	err   error
	calls atomic.Int64
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	f.calls.Add(1)
	return f.value, f.err
}

func tokenGetter() *fakeGetter {
	return &fakeGetter{value: `{"token":"test-key"}`}
}

func chatServer(t *testing.T, content string, capture *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		fmt.Fprintf(w, `{"id":"chatcmpl-1","choices":[{"index":0,"message":{"role":"assistant","content":%q}}]}`, content)
	}))
}

func TestClassify(t *testing.T) {
	var captured chatRequest
	srv := chatServer(t, `{"reasoning":"asks for coordinates","classification":"location"}`, &captured)
	defer srv.Close()

	c, err := NewClient(tokenGetter(), "/trakii", WithBaseURL(srv.URL))
	require.NoError(t, err)

	decision, err := c.Classify(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "classify"},
		{Role: domain.RoleUser, Content: "where is truck 5"},
	})
	require.NoError(t, err)
	require.Equal(t, "location", decision.Label)
	require.Equal(t, "asks for coordinates", decision.Reasoning)

	require.Equal(t, defaultModel, captured.Model)
	require.Len(t, captured.Messages, 2)
	require.NotNil(t, captured.ResponseFormat)
	require.Equal(t, "json_schema", captured.ResponseFormat.Type)
	require.Equal(t, "triage_decision", captured.ResponseFormat.JSONSchema.Name)
	require.True(t, captured.ResponseFormat.JSONSchema.Strict)
}

func TestClassify_MissingLabel(t *testing.T) {
	srv := chatServer(t, `{"reasoning":"unsure","classification":""}`, nil)
	defer srv.Close()

	c, err := NewClient(tokenGetter(), "/trakii", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hola"}})
	require.ErrorContains(t, err, "missing classification")
}

func TestClassify_RejectsUnknownFields(t *testing.T) {
	srv := chatServer(t, `{"reasoning":"r","classification":"ask","confidence":0.9}`, nil)
	defer srv.Close()

	c, err := NewClient(tokenGetter(), "/trakii", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hola"}})
	require.ErrorContains(t, err, "decode triage decision")
}

func TestComplete_UsesGroundedAnswerFormat(t *testing.T) {
	var captured chatRequest
	srv := chatServer(t, `{"in_scope":true,"answer":"Trakii es una plataforma GPS."}`, &captured)
	defer srv.Close()

	c, err := NewClient(tokenGetter(), "/trakii", WithBaseURL(srv.URL))
	require.NoError(t, err)

	raw, err := c.Complete(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "quien es trakii"}})
	require.NoError(t, err)
	require.Equal(t, `{"in_scope":true,"answer":"Trakii es una plataforma GPS."}`, raw)
	require.Equal(t, "grounded_answer", captured.ResponseFormat.JSONSchema.Name)
}

func TestClient_FetchesTokenOnce(t *testing.T) {
	getter := tokenGetter()
	srv := chatServer(t, `{"reasoning":"r","classification":"ignore"}`, nil)
	defer srv.Close()

	c, err := NewClient(getter, "/trakii", WithBaseURL(srv.URL))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = c.Classify(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hola"}})
		require.NoError(t, err)
	}
	require.Equal(t, int64(1), getter.calls.Load())
}

func TestClient_TokenFetchFailure(t *testing.T) {
	getter := &fakeGetter{err: errors.New("access denied")}
	c, err := NewClient(getter, "/trakii")
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hola"}})
	require.ErrorContains(t, err, "fetch token from paramstore")
}

func TestClient_MalformedTokenPayload(t *testing.T) {
	getter := &fakeGetter{value: "sk-plain-token"}
	c, err := NewClient(getter, "/trakii")
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hola"}})
	require.ErrorContains(t, err, "unmarshal paramstore token value")
}

func TestClient_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient(tokenGetter(), "/trakii", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hola"}})
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil, "/trakii")
	require.Error(t, err)

	_, err = NewClient(tokenGetter(), "   ")
	require.Error(t, err)
}

func TestChatURL(t *testing.T) {
	require.Equal(t, "https://api.openai.com/v1/chat/completions", chatURL(""))
	require.Equal(t, "https://api.openai.com/v1/chat/completions", chatURL("https://api.openai.com/v1"))
	require.Equal(t, "https://proxy.internal/v1/chat/completions", chatURL("https://proxy.internal/"))
}
