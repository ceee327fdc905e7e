package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"workflow-agent-be/internal/dto"
	"workflow-agent-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatService struct {
	startFn    func(ctx context.Context, req *dto.ChatStartRequest) (*dto.ChatResponse, error)
	continueFn func(ctx context.Context, req *dto.ChatContinueRequest) (*dto.ChatResponse, error)
	invokeFn   func(ctx context.Context, req *dto.InvokeRequest) (*dto.ChatResponse, error)
	historyFn  func(ctx context.Context, sessionID string) (*dto.ChatHistoryResponse, error)
	deleteFn   func(ctx context.Context, sessionID string) error
}

func (f *fakeChatService) Start(ctx context.Context, req *dto.ChatStartRequest) (*dto.ChatResponse, error) {
	return f.startFn(ctx, req)
}

func (f *fakeChatService) Continue(ctx context.Context, req *dto.ChatContinueRequest) (*dto.ChatResponse, error) {
	return f.continueFn(ctx, req)
}

func (f *fakeChatService) Invoke(ctx context.Context, req *dto.InvokeRequest) (*dto.ChatResponse, error) {
	return f.invokeFn(ctx, req)
}

func (f *fakeChatService) History(ctx context.Context, sessionID string) (*dto.ChatHistoryResponse, error) {
	return f.historyFn(ctx, sessionID)
}

func (f *fakeChatService) Delete(ctx context.Context, sessionID string) error {
	return f.deleteFn(ctx, sessionID)
}

func newChatTestApp(svc *fakeChatService) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api")
	NewChatController(svc).RegisterRoutes(api)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	return res
}

func decodeEnvelope(t *testing.T, res *http.Response) serverutils.BaseResponse[json.RawMessage] {
	t.Helper()
	var env serverutils.BaseResponse[json.RawMessage]
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	return env
}

func TestStartEndpoint(t *testing.T) {
	sessionID := uuid.New().String()
	svc := &fakeChatService{
		startFn: func(ctx context.Context, req *dto.ChatStartRequest) (*dto.ChatResponse, error) {
			assert.Equal(t, "build me a workflow", req.Query)
			return &dto.ChatResponse{
				SessionID:    sessionID,
				Message:      "What should trigger it?",
				CurrentStage: "REQUIREMENTS",
				CurrentAgent: "requirements_analyst",
			}, nil
		},
	}
	app := newChatTestApp(svc)

	res := postJSON(t, app, "/api/chat/v1/start", dto.ChatStartRequest{Query: "build me a workflow"})
	assert.Equal(t, http.StatusOK, res.StatusCode)

	env := decodeEnvelope(t, res)
	assert.True(t, env.Success)

	var body dto.ChatResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, sessionID, body.SessionID)
	assert.Equal(t, "What should trigger it?", body.Message)
}

func TestStartRejectsEmptyQuery(t *testing.T) {
	svc := &fakeChatService{
		startFn: func(ctx context.Context, req *dto.ChatStartRequest) (*dto.ChatResponse, error) {
			t.Fatal("service must not be reached on validation failure")
			return nil, nil
		},
	}
	app := newChatTestApp(svc)

	res := postJSON(t, app, "/api/chat/v1/start", dto.ChatStartRequest{Query: ""})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	env := decodeEnvelope(t, res)
	assert.False(t, env.Success)
}

func TestContinueUnknownSessionMapsTo404(t *testing.T) {
	sessionID := uuid.New().String()
	svc := &fakeChatService{
		continueFn: func(ctx context.Context, req *dto.ChatContinueRequest) (*dto.ChatResponse, error) {
			return nil, &dto.SessionNotFoundError{SessionID: req.SessionID}
		},
	}
	app := newChatTestApp(svc)

	res := postJSON(t, app, "/api/chat/v1/continue", dto.ChatContinueRequest{
		SessionID: sessionID,
		Message:   "hello again",
	})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestContinueBusySessionMapsTo409(t *testing.T) {
	sessionID := uuid.New().String()
	svc := &fakeChatService{
		continueFn: func(ctx context.Context, req *dto.ChatContinueRequest) (*dto.ChatResponse, error) {
			return nil, &dto.SessionBusyError{SessionID: req.SessionID}
		},
	}
	app := newChatTestApp(svc)

	res := postJSON(t, app, "/api/chat/v1/continue", dto.ChatContinueRequest{
		SessionID: sessionID,
		Message:   "double-submit",
	})
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	env := decodeEnvelope(t, res)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, sessionID)
}

func TestContinueRejectsMalformedSessionID(t *testing.T) {
	svc := &fakeChatService{
		continueFn: func(ctx context.Context, req *dto.ChatContinueRequest) (*dto.ChatResponse, error) {
			t.Fatal("service must not be reached on validation failure")
			return nil, nil
		},
	}
	app := newChatTestApp(svc)

	res := postJSON(t, app, "/api/chat/v1/continue", dto.ChatContinueRequest{
		SessionID: "not-a-uuid",
		Message:   "hello",
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestHistoryEndpoint(t *testing.T) {
	sessionID := uuid.New().String()
	svc := &fakeChatService{
		historyFn: func(ctx context.Context, id string) (*dto.ChatHistoryResponse, error) {
			assert.Equal(t, sessionID, id)
			return &dto.ChatHistoryResponse{
				SessionID:    sessionID,
				CurrentStage: "COMPLETE",
				Messages: []dto.ChatMessageResponse{
					{Role: "user", Content: "hi"},
				},
			}, nil
		},
	}
	app := newChatTestApp(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/v1/"+sessionID+"/history", nil)
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	env := decodeEnvelope(t, res)
	var body dto.ChatHistoryResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "COMPLETE", body.CurrentStage)
	require.Len(t, body.Messages, 1)
}

func TestDeleteEndpoint(t *testing.T) {
	sessionID := uuid.New().String()
	deleted := ""
	svc := &fakeChatService{
		deleteFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	app := newChatTestApp(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/chat/v1/"+sessionID, nil)
	res, err := app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, sessionID, deleted)
}
