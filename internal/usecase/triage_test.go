package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"trakii-bot/internal/domain"
	"trakii-bot/internal/profile"
)

type fakeClassifier struct {
	decision domain.Classification
	err      error
	calls    int
}

func (f *fakeClassifier) Classify(_ context.Context, _ []domain.ChatMessage) (domain.Classification, error) {
	f.calls++
	return f.decision, f.err
}

type fakeTracking struct {
	devices        []domain.Device
	devErr         error
	devCalls       int
	positions      []domain.Position
	posErr         error
	posCalls       int
	lastPositionID int64
}

func (f *fakeTracking) Devices(_ context.Context, _ domain.Credentials) ([]domain.Device, error) {
	f.devCalls++
	return f.devices, f.devErr
}

func (f *fakeTracking) Positions(_ context.Context, _ domain.Credentials, positionID int64) ([]domain.Position, error) {
	f.posCalls++
	f.lastPositionID = positionID
	return f.positions, f.posErr
}

type fakeKnowledge struct {
	answer       string
	err          error
	lastQuestion string
}

func (f *fakeKnowledge) Answer(_ context.Context, question string) (string, error) {
	f.lastQuestion = question
	return f.answer, f.err
}

type fakeTurns struct {
	saved          bool
	conversationID string
	userID         string
	message        string
	label          string
	reply          string
	err            error
}

func (f *fakeTurns) SaveCompletedTurn(_ context.Context, conversationID, userID, message, label, reply string) error {
	f.saved = true
	f.conversationID = conversationID
	f.userID = userID
	f.message = message
	f.label = label
	f.reply = reply
	return f.err
}

func classifierFor(label string) *fakeClassifier {
	return &fakeClassifier{decision: domain.Classification{Reasoning: "test reasoning", Label: label}}
}

func testCreds() domain.Credentials {
	return domain.Credentials{Username: "fleet", Password: "secret"}
}

func newTestService(t *testing.T, c IntentClassifier, tr TrackingClient, k KnowledgeAnswerer, w TurnWriter) *TriageService {
	t.Helper()
	svc, err := NewTriageService(c, tr, k, w, profile.Default(), 1000)
	require.NoError(t, err)
	return svc
}

func TestNewTriageService_ValidatesDependencies(t *testing.T) {
	c := classifierFor("ignore")
	tr := &fakeTracking{}
	k := &fakeKnowledge{}
	w := &fakeTurns{}

	_, err := NewTriageService(nil, tr, k, w, profile.Default(), 0)
	require.Error(t, err)
	_, err = NewTriageService(c, nil, k, w, profile.Default(), 0)
	require.Error(t, err)
	_, err = NewTriageService(c, tr, nil, w, profile.Default(), 0)
	require.Error(t, err)
	_, err = NewTriageService(c, tr, k, nil, profile.Default(), 0)
	require.Error(t, err)
}

func TestRunTurn_EmptyMessage(t *testing.T) {
	svc := newTestService(t, classifierFor("ignore"), &fakeTracking{}, &fakeKnowledge{}, &fakeTurns{})

	_, err := svc.RunTurn(context.Background(), TurnInput{UserID: "u1", Message: "   "})
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorInvalidInput, ucErr.Code)
	require.Equal(t, "empty_message", ucErr.Reason)
}

func TestRunTurn_MessageTooLong(t *testing.T) {
	c := classifierFor("ignore")
	svc, err := NewTriageService(c, &fakeTracking{}, &fakeKnowledge{}, &fakeTurns{}, profile.Default(), 10)
	require.NoError(t, err)

	_, err = svc.RunTurn(context.Background(), TurnInput{UserID: "u1", Message: "this message is definitely too long"})
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorInvalidInput, ucErr.Code)
	require.Equal(t, 0, c.calls)
}

func TestRunTurn_GeneratesConversationID(t *testing.T) {
	svc := newTestService(t, classifierFor("ignore"), &fakeTracking{}, &fakeKnowledge{}, &fakeTurns{})

	out, err := svc.RunTurn(context.Background(), TurnInput{UserID: "u1", Message: "hola"})
	require.NoError(t, err)
	require.NotEmpty(t, out.ConversationID)

	out2, err := svc.RunTurn(context.Background(), TurnInput{UserID: "u1", Message: "hola", ConversationID: "conv-7"})
	require.NoError(t, err)
	require.Equal(t, "conv-7", out2.ConversationID)
}

func TestRunTurn_LocationScenario(t *testing.T) {
	tr := &fakeTracking{
		devices:   []domain.Device{{ID: 5, Name: "Truck 5", PositionID: 100}},
		positions: []domain.Position{{Latitude: 10.1, Longitude: -66.9}},
	}
	svc := newTestService(t, classifierFor("location"), tr, &fakeKnowledge{}, &fakeTurns{})

	out, err := svc.RunTurn(context.Background(), TurnInput{
		UserID:      "u1",
		Message:     "where is truck 5",
		Credentials: testCreds(),
	})
	require.NoError(t, err)
	require.Equal(t, TurnDone, out.State)
	require.Equal(t, LabelLocation, out.Label)
	require.Equal(t, domain.RoleAssistant, out.Reply.Role)
	require.Contains(t, out.Reply.Content, "Latitud: 10.1, Longitud: -66.9")
	require.Contains(t, out.Reply.Content, "https://www.google.com/maps?q=10.1,-66.9")
	require.Equal(t, 1, tr.posCalls)
	require.Equal(t, int64(100), tr.lastPositionID)
}

func TestRunTurn_SpeedNoMatchingDevice(t *testing.T) {
	tr := &fakeTracking{devices: []domain.Device{{ID: 8, Name: "Truck 5", PositionID: 100}}}
	svc := newTestService(t, classifierFor("speed"), tr, &fakeKnowledge{}, &fakeTurns{})

	out, err := svc.RunTurn(context.Background(), TurnInput{
		UserID:      "u1",
		Message:     "velocidad del camion",
		Credentials: testCreds(),
	})
	require.NoError(t, err)
	require.Equal(t, replyDeviceNotFound, out.Reply.Content)
	require.Equal(t, 0, tr.posCalls, "positions endpoint must not be called without a match")
}

func TestRunTurn_ClassificationFailure(t *testing.T) {
	c := &fakeClassifier{err: errors.New("upstream timeout")}
	tr := &fakeTracking{}
	w := &fakeTurns{}
	svc := newTestService(t, c, tr, &fakeKnowledge{}, w)

	out, err := svc.RunTurn(context.Background(), TurnInput{UserID: "u1", Message: "where is truck 5"})
	require.NoError(t, err)
	require.Equal(t, TurnFailed, out.State)
	require.Equal(t, replyTurnFailed, out.Reply.Content)
	require.Equal(t, 0, tr.devCalls, "no handler may run when classification fails")
	require.False(t, w.saved)
}

func TestRunTurn_OutOfEnumLabel(t *testing.T) {
	svc := newTestService(t, classifierFor("banana"), &fakeTracking{}, &fakeKnowledge{}, &fakeTurns{})

	out, err := svc.RunTurn(context.Background(), TurnInput{UserID: "u1", Message: "hola"})
	require.NoError(t, err)
	require.Equal(t, TurnFailed, out.State)
	require.Equal(t, replyTurnFailed, out.Reply.Content)
}

func TestRunTurn_ListEmptyDevices(t *testing.T) {
	svc := newTestService(t, classifierFor("list"), &fakeTracking{}, &fakeKnowledge{}, &fakeTurns{})

	out, err := svc.RunTurn(context.Background(), TurnInput{
		UserID:      "u1",
		Message:     "lista de dispositivos",
		Credentials: testCreds(),
	})
	require.NoError(t, err)
	require.Equal(t, replyNoDevices, out.Reply.Content)
}

func TestRunTurn_ListRendersOnePerDevice(t *testing.T) {
	tr := &fakeTracking{devices: []domain.Device{
		{ID: 5, Name: "Truck 5", PositionID: 100},
		{ID: 9, Name: "Van 9", PositionID: 101},
	}}
	svc := newTestService(t, classifierFor("list"), tr, &fakeKnowledge{}, &fakeTurns{})

	out, err := svc.RunTurn(context.Background(), TurnInput{
		UserID:      "u1",
		Message:     "lista de dispositivos",
		Credentials: testCreds(),
	})
	require.NoError(t, err)
	require.Contains(t, out.Reply.Content, "- Truck 5 (ID: 5)")
	require.Contains(t, out.Reply.Content, "- Van 9 (ID: 9)")
}

func TestRunTurn_StatusWithoutCredentials(t *testing.T) {
	tr := &fakeTracking{devices: []domain.Device{{ID: 5, Name: "Truck 5", PositionID: 100}}}
	svc := newTestService(t, classifierFor("status"), tr, &fakeKnowledge{}, &fakeTurns{})

	out, err := svc.RunTurn(context.Background(), TurnInput{UserID: "u1", Message: "estado del truck 5"})
	require.NoError(t, err)
	require.Equal(t, TurnDone, out.State)
	require.Equal(t, replyNoCredentials, out.Reply.Content)
	require.Equal(t, 0, tr.devCalls, "no HTTP calls may be made without credentials")
}

func TestRunTurn_StatusRendersDefaultsWithoutAttributes(t *testing.T) {
	tr := &fakeTracking{
		devices:   []domain.Device{{ID: 5, Name: "Truck 5", PositionID: 100}},
		positions: []domain.Position{{Latitude: 1, Longitude: 2}},
	}
	svc := newTestService(t, classifierFor("status"), tr, &fakeKnowledge{}, &fakeTurns{})

	out, err := svc.RunTurn(context.Background(), TurnInput{
		UserID:      "u1",
		Message:     "estado del truck 5",
		Credentials: testCreds(),
	})
	require.NoError(t, err)
	require.Contains(t, out.Reply.Content, "🕒 Fix Time               No disponible")
	require.Contains(t, out.Reply.Content, "📍 Distancia              0.00 km")
	require.Contains(t, out.Reply.Content, "🔋 Nivel de la batería    No disponible%")
	require.Contains(t, out.Reply.Content, "🔋 Voltaje de la batería  No disponible V")
	require.Contains(t, out.Reply.Content, "🚗 Movimiento             🔴 Detenido")
}

func TestRunTurn_StatusRendersAttributes(t *testing.T) {
	tr := &fakeTracking{
		devices: []domain.Device{{ID: 5, Name: "Truck 5", PositionID: 100}},
		positions: []domain.Position{{
			FixTime: "2026-03-15T18:04:05Z",
			Attributes: map[string]any{
				"batteryLevel":  float64(85),
				"battery":       3.97,
				"totalDistance": float64(123456),
				"motion":        true,
			},
		}},
	}
	svc := newTestService(t, classifierFor("status"), tr, &fakeKnowledge{}, &fakeTurns{})

	out, err := svc.RunTurn(context.Background(), TurnInput{
		UserID:      "u1",
		Message:     "estado del truck 5",
		Credentials: testCreds(),
	})
	require.NoError(t, err)
	require.Contains(t, out.Reply.Content, "🕒 Fix Time               03/15/2026, 06:04:05 PM")
	require.Contains(t, out.Reply.Content, "📍 Distancia              123.46 km")
	require.Contains(t, out.Reply.Content, "🔋 Nivel de la batería    85%")
	require.Contains(t, out.Reply.Content, "🔋 Voltaje de la batería  3.97 V")
	require.Contains(t, out.Reply.Content, "🚗 Movimiento             🟢 En movimiento")
}

func TestRunTurn_SpeedConversionIsDeterministic(t *testing.T) {
	tr := &fakeTracking{
		devices:   []domain.Device{{ID: 5, Name: "Truck 5", PositionID: 100}},
		positions: []domain.Position{{Speed: 13.5}},
	}
	svc := newTestService(t, classifierFor("speed"), tr, &fakeKnowledge{}, &fakeTurns{})
	in := TurnInput{UserID: "u1", Message: "velocidad del truck 5", Credentials: testCreds()}

	first, err := svc.RunTurn(context.Background(), in)
	require.NoError(t, err)
	second, err := svc.RunTurn(context.Background(), in)
	require.NoError(t, err)

	require.Equal(t, first.Reply.Content, second.Reply.Content)
	require.Contains(t, first.Reply.Content, "25.0 km/h")
}

func TestRunTurn_LocationDeviceFetchError(t *testing.T) {
	tr := &fakeTracking{devErr: errors.New("connection refused")}
	svc := newTestService(t, classifierFor("location"), tr, &fakeKnowledge{}, &fakeTurns{})

	out, err := svc.RunTurn(context.Background(), TurnInput{
		UserID:      "u1",
		Message:     "donde esta el truck 5",
		Credentials: testCreds(),
	})
	require.NoError(t, err)
	require.Equal(t, TurnDone, out.State)
	require.Equal(t, replyLocationError, out.Reply.Content)
}

func TestRunTurn_LocationMissingPosition(t *testing.T) {
	tr := &fakeTracking{devices: []domain.Device{{ID: 5, Name: "Truck 5", PositionID: 100}}}
	svc := newTestService(t, classifierFor("location"), tr, &fakeKnowledge{}, &fakeTurns{})

	out, err := svc.RunTurn(context.Background(), TurnInput{
		UserID:      "u1",
		Message:     "donde esta el truck 5",
		Credentials: testCreds(),
	})
	require.NoError(t, err)
	require.Equal(t, replyLocationError, out.Reply.Content)
}

func TestRunTurn_AskDelegatesOriginalQuestion(t *testing.T) {
	k := &fakeKnowledge{answer: "Trakii es una plataforma de rastreo GPS."}
	svc := newTestService(t, classifierFor("ask"), &fakeTracking{}, k, &fakeTurns{})

	out, err := svc.RunTurn(context.Background(), TurnInput{UserID: "u1", Message: "Quién es Trakii?"})
	require.NoError(t, err)
	require.Equal(t, k.answer, out.Reply.Content)
	require.Equal(t, "Quién es Trakii?", k.lastQuestion, "ask must receive the original-cased question")
}

func TestRunTurn_AskFailureIsRecovered(t *testing.T) {
	k := &fakeKnowledge{err: errors.New("index unavailable")}
	svc := newTestService(t, classifierFor("ask"), &fakeTracking{}, k, &fakeTurns{})

	out, err := svc.RunTurn(context.Background(), TurnInput{UserID: "u1", Message: "Quién es Trakii?"})
	require.NoError(t, err)
	require.Equal(t, TurnDone, out.State)
	require.Equal(t, replyAskError, out.Reply.Content)
}

func TestRunTurn_IgnoreIsFixedMessage(t *testing.T) {
	tr := &fakeTracking{}
	svc := newTestService(t, classifierFor("ignore"), tr, &fakeKnowledge{}, &fakeTurns{})

	out, err := svc.RunTurn(context.Background(), TurnInput{UserID: "u1", Message: "cuentame un chiste"})
	require.NoError(t, err)
	require.Equal(t, replyIgnore, out.Reply.Content)
	require.Equal(t, 0, tr.devCalls)
}

func TestRunTurn_EveryLabelProducesExactlyOneReply(t *testing.T) {
	for _, label := range Labels() {
		t.Run(string(label), func(t *testing.T) {
			tr := &fakeTracking{
				devices:   []domain.Device{{ID: 5, Name: "Truck 5", PositionID: 100}},
				positions: []domain.Position{{Latitude: 1, Longitude: 2, Speed: 3}},
			}
			k := &fakeKnowledge{answer: "respuesta"}
			svc := newTestService(t, classifierFor(string(label)), tr, k, &fakeTurns{})

			out, err := svc.RunTurn(context.Background(), TurnInput{
				UserID:      "u1",
				Message:     "truck 5",
				Credentials: testCreds(),
			})
			require.NoError(t, err)
			require.Equal(t, TurnDone, out.State)
			require.Equal(t, domain.RoleAssistant, out.Reply.Role)
			require.NotEmpty(t, out.Reply.Content)
		})
	}
}

func TestRunTurn_AuditWriteFailureDoesNotFailTurn(t *testing.T) {
	w := &fakeTurns{err: errors.New("throttled")}
	svc := newTestService(t, classifierFor("ignore"), &fakeTracking{}, &fakeKnowledge{}, w)

	out, err := svc.RunTurn(context.Background(), TurnInput{UserID: "u1", Message: "hola"})
	require.NoError(t, err)
	require.Equal(t, TurnDone, out.State)
	require.True(t, w.saved)
}

func TestRunTurn_SavesAuditRecord(t *testing.T) {
	w := &fakeTurns{}
	svc := newTestService(t, classifierFor("ignore"), &fakeTracking{}, &fakeKnowledge{}, w)

	out, err := svc.RunTurn(context.Background(), TurnInput{UserID: "u7", Message: "hola", ConversationID: "conv-1"})
	require.NoError(t, err)
	require.True(t, w.saved)
	require.Equal(t, "conv-1", w.conversationID)
	require.Equal(t, "u7", w.userID)
	require.Equal(t, "hola", w.message)
	require.Equal(t, "ignore", w.label)
	require.Equal(t, out.Reply.Content, w.reply)
}

func TestReplyOrPlaceholder(t *testing.T) {
	turn := newTurn("hola")
	reply := replyOrPlaceholder(turn)
	require.Equal(t, replyPlaceholder, reply.Content)
	require.Equal(t, domain.RoleAssistant, reply.Role)

	turn.append(domain.RoleAssistant, "respuesta real")
	reply = replyOrPlaceholder(turn)
	require.Equal(t, "respuesta real", reply.Content)
}
